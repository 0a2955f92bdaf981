package iobuf

// IO is the primitive get/put surface generated routines are written against.
// Backends are interchangeable; routines never depend on a concrete type.
type IO interface {
	GetBool() (bool, error)
	GetInt8() (int8, error)
	GetUint8() (uint8, error)
	GetInt16() (int16, error)
	GetUint16() (uint16, error)
	GetInt32() (int32, error)
	GetUint32() (uint32, error)
	GetInt64() (int64, error)
	GetUint64() (uint64, error)
	GetFloat32() (float32, error)
	GetFloat64() (float64, error)
	GetString() (string, error)

	PutBool(v bool) error
	PutInt8(v int8) error
	PutUint8(v uint8) error
	PutInt16(v int16) error
	PutUint16(v uint16) error
	PutInt32(v int32) error
	PutUint32(v uint32) error
	PutInt64(v int64) error
	PutUint64(v uint64) error
	PutFloat32(v float32) error
	PutFloat64(v float64) error
	PutString(v string) error

	GetBoolArray(n int) ([]bool, error)
	GetInt8Array(n int) ([]int8, error)
	GetUint8Array(n int) ([]uint8, error)
	GetInt16Array(n int) ([]int16, error)
	GetUint16Array(n int) ([]uint16, error)
	GetInt32Array(n int) ([]int32, error)
	GetUint32Array(n int) ([]uint32, error)
	GetInt64Array(n int) ([]int64, error)
	GetUint64Array(n int) ([]uint64, error)
	GetFloat32Array(n int) ([]float32, error)
	GetFloat64Array(n int) ([]float64, error)
	GetStringArray(n int) ([]string, error)

	PutBoolArray(v []bool) error
	PutInt8Array(v []int8) error
	PutUint8Array(v []uint8) error
	PutInt16Array(v []int16) error
	PutUint16Array(v []uint16) error
	PutInt32Array(v []int32) error
	PutUint32Array(v []uint32) error
	PutInt64Array(v []int64) error
	PutUint64Array(v []uint64) error
	PutFloat32Array(v []float32) error
	PutFloat64Array(v []float64) error
	PutStringArray(v []string) error

	// Position returns the current byte offset.
	Position() int
	// Rewind moves the position back to zero.
	Rewind()
	// Close releases the backing storage. Further calls fail.
	Close() error
}

// Storage is a contiguous byte region a Buffer reads and writes through.
type Storage interface {
	// Window returns a writable view of n bytes at off.
	Window(off, n int) ([]byte, error)
	// Grow makes at least size bytes addressable.
	Grow(size int) error
	// Len returns the number of addressable bytes.
	Len() int
	// Release frees the region.
	Release() error
}
