// Package wasmio provides an off-heap iobuf backend over WebAssembly linear
// memory. Bytes live outside the Go heap in a wazero memory, so buffers can
// be shared with guest code or reused across many encode calls without
// allocation.
package wasmio

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/hyphen/errors"
	"github.com/wippyai/hyphen/iobuf"
)

const pageSize = 65536

// Storage implements iobuf.Storage over a wazero linear memory region
// starting at a base offset.
type Storage struct {
	mem     api.Memory
	closeFn func() error
	base    uint32
	size    int
	closed  bool
}

// New instantiates a private memory-only module sized to hold at least size
// bytes and returns a Buffer over it. Closing the buffer closes the runtime.
func New(ctx context.Context, size int) (*iobuf.Buffer, error) {
	st, err := NewStorage(ctx, size)
	if err != nil {
		return nil, err
	}
	return iobuf.New(st), nil
}

// NewStorage is New without the Buffer wrapper.
func NewStorage(ctx context.Context, size int) (*Storage, error) {
	if size < 0 {
		return nil, errors.New(errors.PhaseIO, errors.KindInvalidData).
			Value(size).
			Detail("negative memory size %d", size).
			Build()
	}
	pages := uint32((size + pageSize - 1) / pageSize)
	if pages == 0 {
		pages = 1
	}

	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig())
	mod, err := rt.Instantiate(ctx, memoryModule(pages))
	if err != nil {
		_ = rt.Close(ctx)
		return nil, errors.Wrap(errors.PhaseIO, errors.KindUnsupported, err, "instantiate memory module")
	}

	mem := mod.Memory()
	if mem == nil {
		_ = rt.Close(ctx)
		return nil, errors.Unsupported(errors.PhaseIO, nil, "memory module exports no memory")
	}

	return &Storage{
		mem:     mem,
		size:    size,
		closeFn: func() error { return rt.Close(context.Background()) },
	}, nil
}

// FromMemory wraps a region of a caller-owned memory. The caller keeps
// ownership: Release does not close the module.
func FromMemory(mem api.Memory, base uint32, size int) *iobuf.Buffer {
	return iobuf.New(&Storage{mem: mem, base: base, size: size})
}

// Window returns a view of n bytes at off, relative to the base.
func (s *Storage) Window(off, n int) ([]byte, error) {
	if s.closed {
		return nil, errors.New(errors.PhaseIO, errors.KindClosed).Detail("memory released").Build()
	}
	if off < 0 || n < 0 || off+n > s.size {
		return nil, errors.OutOfBounds(errors.PhaseIO, off, n, s.size)
	}
	view, ok := s.mem.Read(s.base+uint32(off), uint32(n))
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseIO, int(s.base)+off, n, int(s.mem.Size()))
	}
	return view, nil
}

// Grow extends the addressable region, growing the linear memory by whole
// pages when the region would run past it.
func (s *Storage) Grow(size int) error {
	if s.closed {
		return errors.New(errors.PhaseIO, errors.KindClosed).Detail("memory released").Build()
	}
	if size <= s.size {
		return nil
	}
	end := uint64(s.base) + uint64(size)
	have := uint64(s.mem.Size())
	if end > have {
		delta := uint32((end - have + pageSize - 1) / pageSize)
		if _, ok := s.mem.Grow(delta); !ok {
			return errors.OutOfBounds(errors.PhaseIO, s.size, size-s.size, int(have))
		}
	}
	s.size = size
	return nil
}

// Len returns the size of the addressable region.
func (s *Storage) Len() int {
	return s.size
}

// Release closes the owning runtime, if this storage created it.
func (s *Storage) Release() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closeFn != nil {
		return s.closeFn()
	}
	return nil
}

// memoryModule assembles a module that declares and exports a single
// memory "mem" with the given minimum page count.
func memoryModule(pages uint32) []byte {
	limits := append([]byte{0x00}, leb128(pages)...)
	memSec := append([]byte{0x01}, limits...)

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = append(out, 0x05)
	out = append(out, leb128(uint32(len(memSec)))...)
	out = append(out, memSec...)
	out = append(out, 0x07, 0x07, 0x01, 0x03, 'm', 'e', 'm', 0x02, 0x00)
	return out
}

func leb128(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}
