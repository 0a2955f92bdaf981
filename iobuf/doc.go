// Package iobuf provides the byte-level I/O boundary consumed by generated
// routines.
//
// The IO interface exposes little-endian get/put operations for every scalar
// kind, counted array variants, length-prefixed UTF-8 strings, and a small
// lifecycle (Position, Rewind, Close). Buffer implements IO on top of a
// Storage, so backends differ only in where the bytes live:
//
//	NewHeap(size)      fixed-size heap slice, overflow is an error
//	NewArray(capacity) growable slice, grows on write
//	Wrap(data)         read or overwrite an existing slice
//	wasmio.New(...)    wasm linear memory (off-heap), see package wasmio
//
// # Wire Layout
//
//	Kind            Size
//	─────────────────────────
//	bool            1 (1 = true)
//	i8/u8           1
//	i16/u16         2
//	i32/u32/f32     4
//	i64/u64/f64     8
//	string          4 + len(utf8)
//
// Array variants write only the elements. The caller writes the count.
//
// # Thread Safety
//
// A Buffer is owned by one in-flight call at a time. Routines never close
// or retain a Buffer; the caller creates it, uses it, and releases it.
package iobuf
