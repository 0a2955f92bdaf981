// Package emit lowers codec programs into executable routines.
//
// Each distinct program signature yields one Routine with three entry
// points sharing one lowered structure:
//
//	Encode(v, io)   - writes v through the IO boundary
//	Decode(io)      - reads one value, never returning a partial result
//	Measure(v)      - counts the bytes Encode would write
//
// # Inlining
//
// Scalars, arrays, nullable wrappers, pointers, skipped members and fatal
// placeholders are lowered into the enclosing routine. Composites,
// polymorphic dispatch and custom codecs get routines of their own, called
// indirectly so recursive programs terminate.
//
// # Variables
//
// Routine locals live in a frame. A Scope hands out frame slots in block
// order: arrays open a block holding their length and index, composites
// open one holding decoded member values. Names are deduplicated among
// live variables (length, length1, ...) unless compact mode names them all
// "_". Listing() renders the lowered bodies with those names.
//
// # Wire Form
//
//	scalar       little-endian fixed width, string as i32 length + UTF-8
//	array        i32 count, then elements
//	nullable     u8 presence (0 or 1), then the value
//	polymorphic  u8/u16/u32 discriminator by candidate count, then the value
//	skip         nothing; decodes as the zero value
package emit
