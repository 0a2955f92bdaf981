package iobuf

import (
	"encoding/binary"
	"math"
)

// Counted array variants. The caller writes the length prefix; these
// move only the elements.

func getArray[T any](b *Buffer, n, width int, read func([]byte) T) ([]T, error) {
	if n < 0 {
		return nil, errNegativeLength(n)
	}
	data, err := b.take(n * width)
	if err != nil {
		return nil, err
	}
	out := make([]T, n)
	for i := range out {
		out[i] = read(data[i*width:])
	}
	return out, nil
}

func putArray[T any](b *Buffer, v []T, width int, write func([]byte, T)) error {
	dst, err := b.reserve(len(v) * width)
	if err != nil {
		return err
	}
	for i, x := range v {
		write(dst[i*width:], x)
	}
	return nil
}

func (b *Buffer) GetBoolArray(n int) ([]bool, error) {
	return getArray(b, n, 1, func(p []byte) bool { return p[0] == 1 })
}

func (b *Buffer) GetInt8Array(n int) ([]int8, error) {
	return getArray(b, n, 1, func(p []byte) int8 { return int8(p[0]) })
}

func (b *Buffer) GetUint8Array(n int) ([]uint8, error) {
	return getArray(b, n, 1, func(p []byte) uint8 { return p[0] })
}

func (b *Buffer) GetInt16Array(n int) ([]int16, error) {
	return getArray(b, n, 2, func(p []byte) int16 { return int16(binary.LittleEndian.Uint16(p)) })
}

func (b *Buffer) GetUint16Array(n int) ([]uint16, error) {
	return getArray(b, n, 2, binary.LittleEndian.Uint16)
}

func (b *Buffer) GetInt32Array(n int) ([]int32, error) {
	return getArray(b, n, 4, func(p []byte) int32 { return int32(binary.LittleEndian.Uint32(p)) })
}

func (b *Buffer) GetUint32Array(n int) ([]uint32, error) {
	return getArray(b, n, 4, binary.LittleEndian.Uint32)
}

func (b *Buffer) GetInt64Array(n int) ([]int64, error) {
	return getArray(b, n, 8, func(p []byte) int64 { return int64(binary.LittleEndian.Uint64(p)) })
}

func (b *Buffer) GetUint64Array(n int) ([]uint64, error) {
	return getArray(b, n, 8, binary.LittleEndian.Uint64)
}

func (b *Buffer) GetFloat32Array(n int) ([]float32, error) {
	return getArray(b, n, 4, func(p []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(p)) })
}

func (b *Buffer) GetFloat64Array(n int) ([]float64, error) {
	return getArray(b, n, 8, func(p []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(p)) })
}

// GetStringArray reads n length-prefixed strings.
func (b *Buffer) GetStringArray(n int) ([]string, error) {
	if n < 0 {
		return nil, errNegativeLength(n)
	}
	// Each string needs at least its 4-byte prefix.
	if b.pos+4*n > b.st.Len() {
		return nil, errOutOfBounds(b, 4*n)
	}
	out := make([]string, n)
	for i := range out {
		s, err := b.GetString()
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func (b *Buffer) PutBoolArray(v []bool) error {
	return putArray(b, v, 1, func(p []byte, x bool) {
		if x {
			p[0] = 1
		} else {
			p[0] = 0
		}
	})
}

func (b *Buffer) PutInt8Array(v []int8) error {
	return putArray(b, v, 1, func(p []byte, x int8) { p[0] = byte(x) })
}

func (b *Buffer) PutUint8Array(v []uint8) error {
	dst, err := b.reserve(len(v))
	if err != nil {
		return err
	}
	copy(dst, v)
	return nil
}

func (b *Buffer) PutInt16Array(v []int16) error {
	return putArray(b, v, 2, func(p []byte, x int16) { binary.LittleEndian.PutUint16(p, uint16(x)) })
}

func (b *Buffer) PutUint16Array(v []uint16) error {
	return putArray(b, v, 2, binary.LittleEndian.PutUint16)
}

func (b *Buffer) PutInt32Array(v []int32) error {
	return putArray(b, v, 4, func(p []byte, x int32) { binary.LittleEndian.PutUint32(p, uint32(x)) })
}

func (b *Buffer) PutUint32Array(v []uint32) error {
	return putArray(b, v, 4, binary.LittleEndian.PutUint32)
}

func (b *Buffer) PutInt64Array(v []int64) error {
	return putArray(b, v, 8, func(p []byte, x int64) { binary.LittleEndian.PutUint64(p, uint64(x)) })
}

func (b *Buffer) PutUint64Array(v []uint64) error {
	return putArray(b, v, 8, binary.LittleEndian.PutUint64)
}

func (b *Buffer) PutFloat32Array(v []float32) error {
	return putArray(b, v, 4, func(p []byte, x float32) { binary.LittleEndian.PutUint32(p, math.Float32bits(x)) })
}

func (b *Buffer) PutFloat64Array(v []float64) error {
	return putArray(b, v, 8, func(p []byte, x float64) { binary.LittleEndian.PutUint64(p, math.Float64bits(x)) })
}

func (b *Buffer) PutStringArray(v []string) error {
	for _, s := range v {
		if err := b.PutString(s); err != nil {
			return err
		}
	}
	return nil
}
