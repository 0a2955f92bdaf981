package iobuf

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/wippyai/hyphen/errors"
)

// MaxStringSize bounds a decoded string length prefix (16 MB).
const MaxStringSize = 16 << 20

// Buffer implements IO over a Storage with position tracking.
type Buffer struct {
	st     Storage
	pos    int
	high   int
	closed bool
}

// New creates a Buffer over st.
func New(st Storage) *Buffer {
	return &Buffer{st: st}
}

// NewHeap creates a fixed-size heap buffer. Writes past size fail.
func NewHeap(size int) *Buffer {
	return New(&heapStorage{data: make([]byte, size)})
}

// NewArray creates a growable buffer with the given initial capacity.
func NewArray(capacity int) *Buffer {
	return New(&arrayStorage{data: make([]byte, 0, capacity)})
}

// Wrap creates a fixed-size buffer over data without copying.
func Wrap(data []byte) *Buffer {
	return &Buffer{st: &heapStorage{data: data}, high: len(data)}
}

// Position returns the current byte position.
func (b *Buffer) Position() int {
	return b.pos
}

// Rewind seeks back to the start.
func (b *Buffer) Rewind() {
	b.pos = 0
}

// Len returns the high-water mark of bytes written or wrapped.
func (b *Buffer) Len() int {
	return b.high
}

// Bytes returns a copy of the bytes up to the high-water mark.
func (b *Buffer) Bytes() []byte {
	if b.closed || b.high == 0 {
		return nil
	}
	view, err := b.st.Window(0, b.high)
	if err != nil {
		return nil
	}
	out := make([]byte, len(view))
	copy(out, view)
	return out
}

// Close releases the storage. The buffer is unusable afterwards.
func (b *Buffer) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	return b.st.Release()
}

// take returns a view of the next n bytes for reading and advances.
func (b *Buffer) take(n int) ([]byte, error) {
	if b.closed {
		return nil, errClosed()
	}
	if n < 0 || b.pos+n > b.st.Len() {
		return nil, errors.OutOfBounds(errors.PhaseIO, b.pos, n, b.st.Len())
	}
	view, err := b.st.Window(b.pos, n)
	if err != nil {
		return nil, err
	}
	b.pos += n
	return view, nil
}

// reserve returns a view of the next n bytes for writing, growing the
// storage if needed, and advances.
func (b *Buffer) reserve(n int) ([]byte, error) {
	if b.closed {
		return nil, errClosed()
	}
	end := b.pos + n
	if end > b.st.Len() {
		if err := b.st.Grow(end); err != nil {
			return nil, err
		}
	}
	view, err := b.st.Window(b.pos, n)
	if err != nil {
		return nil, err
	}
	b.pos = end
	if end > b.high {
		b.high = end
	}
	return view, nil
}

func errClosed() error {
	return errors.New(errors.PhaseIO, errors.KindClosed).Detail("buffer is closed").Build()
}

func (b *Buffer) GetBool() (bool, error) {
	v, err := b.take(1)
	if err != nil {
		return false, err
	}
	return v[0] == 1, nil
}

func (b *Buffer) GetInt8() (int8, error) {
	v, err := b.GetUint8()
	return int8(v), err
}

func (b *Buffer) GetUint8() (uint8, error) {
	v, err := b.take(1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

func (b *Buffer) GetInt16() (int16, error) {
	v, err := b.GetUint16()
	return int16(v), err
}

func (b *Buffer) GetUint16() (uint16, error) {
	v, err := b.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(v), nil
}

func (b *Buffer) GetInt32() (int32, error) {
	v, err := b.GetUint32()
	return int32(v), err
}

func (b *Buffer) GetUint32() (uint32, error) {
	v, err := b.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(v), nil
}

func (b *Buffer) GetInt64() (int64, error) {
	v, err := b.GetUint64()
	return int64(v), err
}

func (b *Buffer) GetUint64() (uint64, error) {
	v, err := b.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(v), nil
}

func (b *Buffer) GetFloat32() (float32, error) {
	v, err := b.GetUint32()
	return math.Float32frombits(v), err
}

func (b *Buffer) GetFloat64() (float64, error) {
	v, err := b.GetUint64()
	return math.Float64frombits(v), err
}

// GetString reads an int32 byte length followed by UTF-8 bytes.
func (b *Buffer) GetString() (string, error) {
	start := b.pos
	n, err := b.GetInt32()
	if err != nil {
		return "", err
	}
	if n < 0 || n > MaxStringSize {
		b.pos = start
		return "", errors.New(errors.PhaseIO, errors.KindInvalidData).
			Value(n).
			Detail("string length %d at position %d out of range", n, start).
			Build()
	}
	data, err := b.take(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", errors.New(errors.PhaseIO, errors.KindInvalidData).
			Detail("invalid UTF-8 in string at position %d", start).
			Build()
	}
	return string(data), nil
}

func (b *Buffer) PutBool(v bool) error {
	dst, err := b.reserve(1)
	if err != nil {
		return err
	}
	if v {
		dst[0] = 1
	} else {
		dst[0] = 0
	}
	return nil
}

func (b *Buffer) PutInt8(v int8) error {
	return b.PutUint8(uint8(v))
}

func (b *Buffer) PutUint8(v uint8) error {
	dst, err := b.reserve(1)
	if err != nil {
		return err
	}
	dst[0] = v
	return nil
}

func (b *Buffer) PutInt16(v int16) error {
	return b.PutUint16(uint16(v))
}

func (b *Buffer) PutUint16(v uint16) error {
	dst, err := b.reserve(2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(dst, v)
	return nil
}

func (b *Buffer) PutInt32(v int32) error {
	return b.PutUint32(uint32(v))
}

func (b *Buffer) PutUint32(v uint32) error {
	dst, err := b.reserve(4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(dst, v)
	return nil
}

func (b *Buffer) PutInt64(v int64) error {
	return b.PutUint64(uint64(v))
}

func (b *Buffer) PutUint64(v uint64) error {
	dst, err := b.reserve(8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(dst, v)
	return nil
}

func (b *Buffer) PutFloat32(v float32) error {
	return b.PutUint32(math.Float32bits(v))
}

func (b *Buffer) PutFloat64(v float64) error {
	return b.PutUint64(math.Float64bits(v))
}

// PutString writes an int32 byte length followed by the string bytes.
func (b *Buffer) PutString(v string) error {
	if len(v) > math.MaxInt32 {
		return errors.New(errors.PhaseIO, errors.KindInvalidData).
			Detail("string of %d bytes exceeds length prefix", len(v)).
			Build()
	}
	if !utf8.ValidString(v) {
		return errors.New(errors.PhaseIO, errors.KindInvalidData).
			Detail("invalid UTF-8 in string at position %d", b.pos).
			Build()
	}
	dst, err := b.reserve(4 + len(v))
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(dst, uint32(len(v)))
	copy(dst[4:], v)
	return nil
}
