package iobuf

import (
	"github.com/wippyai/hyphen/errors"
)

// maxArrayStorage caps growable storage at 1 GB.
const maxArrayStorage = 1 << 30

// heapStorage is a fixed-size byte slice.
type heapStorage struct {
	data     []byte
	released bool
}

func (h *heapStorage) Window(off, n int) ([]byte, error) {
	if h.released {
		return nil, errClosed()
	}
	if off < 0 || n < 0 || off+n > len(h.data) {
		return nil, errors.OutOfBounds(errors.PhaseIO, off, n, len(h.data))
	}
	return h.data[off : off+n : off+n], nil
}

func (h *heapStorage) Grow(size int) error {
	if size <= len(h.data) {
		return nil
	}
	return errors.OutOfBounds(errors.PhaseIO, len(h.data), size-len(h.data), len(h.data))
}

func (h *heapStorage) Len() int {
	return len(h.data)
}

func (h *heapStorage) Release() error {
	h.data = nil
	h.released = true
	return nil
}

// arrayStorage grows by doubling, like append.
type arrayStorage struct {
	data     []byte
	released bool
}

func (a *arrayStorage) Window(off, n int) ([]byte, error) {
	if a.released {
		return nil, errClosed()
	}
	if off < 0 || n < 0 || off+n > len(a.data) {
		return nil, errors.OutOfBounds(errors.PhaseIO, off, n, len(a.data))
	}
	return a.data[off : off+n : off+n], nil
}

func (a *arrayStorage) Grow(size int) error {
	if a.released {
		return errClosed()
	}
	if size <= len(a.data) {
		return nil
	}
	if size > maxArrayStorage {
		return errors.OutOfBounds(errors.PhaseIO, len(a.data), size-len(a.data), maxArrayStorage)
	}
	if size <= cap(a.data) {
		a.data = a.data[:size]
		return nil
	}
	newCap := cap(a.data) * 2
	if newCap < size {
		newCap = size
	}
	grown := make([]byte, size, newCap)
	copy(grown, a.data)
	a.data = grown
	return nil
}

func (a *arrayStorage) Len() int {
	return len(a.data)
}

func (a *arrayStorage) Release() error {
	a.data = nil
	a.released = true
	return nil
}

func errNegativeLength(n int) error {
	return errors.New(errors.PhaseIO, errors.KindInvalidData).
		Value(n).
		Detail("negative array length %d", n).
		Build()
}

func errOutOfBounds(b *Buffer, n int) error {
	return errors.OutOfBounds(errors.PhaseIO, b.pos, n, b.st.Len())
}
