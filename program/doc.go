// Package program compiles canonical descriptors into codec programs.
//
// A program is a tree of tagged nodes (scalar, array, composite,
// polymorphic, nullable, skip, pointer, custom, fatal) that drives routine
// emission. Programs are memoized per descriptor and carry a structural
// signature; structurally equal programs share a signature and therefore
// one emitted routine.
package program
