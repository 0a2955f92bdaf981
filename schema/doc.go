// Package schema declares the type graph that routines are compiled from.
//
// A Registry holds classes. Each class has ordered members, optional type
// parameters, and an optional Go binding. Members reference types through
// TypeRef values:
//
//	Prim      wire scalar (i32, string, ...)
//	Named     declared class, with arguments for generic classes
//	Var       type parameter of the enclosing class
//	Array     counted sequence
//	GoType    Go type, resolved through the registry or derived
//	Annotated options on a nested position
//
// Member options (nullable, stale, subclass set, custom codec) come from
// Options values, `hyphen:"..."` struct tags, or schema files. Unknown keys
// and contradictory combinations are configuration errors.
//
// Classes without a Go binding are dynamic; their runtime values are
// *Record.
package schema
