// Package descriptor is the canonical type model routines are compiled from.
//
// A Descriptor is one of five shapes: scalar, array, composite,
// polymorphic, or pointer. A sixth, unknown, is a placeholder left by a
// lenient scan. Descriptors are interned in a Table by structural key:
//
//	scalar       kind and Go type
//	array        element identity, Go array length, Go type
//	pointer      target identity, Go type
//	composite    class, bound generic arguments, Go type
//	polymorphic  candidate identities in order, Go type
//	annotated    base identity and nullable/stale/codec options
//
// Two structurally equal shapes are therefore the same pointer, which is
// what the program and routine caches key on.
//
// Composites are interned as shells before their members are resolved so
// that self-referential types terminate.
package descriptor
