package emit

import (
	"reflect"
	"sync"
)

const (
	// Pool limits to prevent memory bloat
	framePoolMaxInts = 256
	framePoolMaxVals = 1024
)

// frame carries the slot storage of one routine invocation.
type frame struct {
	ints []int
	vals []reflect.Value
}

var framePool = sync.Pool{
	New: func() any {
		return &frame{}
	},
}

func getFrame(ints, vals int) *frame {
	f := framePool.Get().(*frame)
	if cap(f.ints) < ints {
		f.ints = make([]int, ints)
	}
	f.ints = f.ints[:ints]
	if cap(f.vals) < vals {
		f.vals = make([]reflect.Value, vals)
	}
	f.vals = f.vals[:vals]
	return f
}

func putFrame(f *frame) {
	if f == nil || cap(f.ints) > framePoolMaxInts || cap(f.vals) > framePoolMaxVals {
		return // reject oversized
	}
	clear(f.vals)
	framePool.Put(f)
}
