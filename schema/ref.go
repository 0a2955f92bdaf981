package schema

import (
	"reflect"
	"strings"
)

// TypeRef is a reference to a type as written in a class declaration.
type TypeRef interface {
	String() string
	isTypeRef()
}

// Prim references a wire scalar.
type Prim struct {
	Kind Kind
}

// Named references a declared class, with type arguments for generic classes.
type Named struct {
	Name string
	Args []TypeRef
}

// Var references a type parameter of the enclosing class.
type Var struct {
	Name string
}

// Array references a counted sequence of Elem. Nest for more dimensions.
type Array struct {
	Elem TypeRef
}

// GoType references a Go type directly. Structs resolve through the
// registry binding for that type, or are derived from the struct layout.
type GoType struct {
	Type reflect.Type
}

// Annotated attaches member options to a nested position, such as the
// element of an array.
type Annotated struct {
	Ref     TypeRef
	Options Options
}

var (
	Bool    = Prim{KindBool}
	Int8    = Prim{KindI8}
	Uint8   = Prim{KindU8}
	Int16   = Prim{KindI16}
	Uint16  = Prim{KindU16}
	Int32   = Prim{KindI32}
	Uint32  = Prim{KindU32}
	Int64   = Prim{KindI64}
	Uint64  = Prim{KindU64}
	Float32 = Prim{KindF32}
	Float64 = Prim{KindF64}
	String  = Prim{KindString}
)

func (Prim) isTypeRef()      {}
func (Named) isTypeRef()     {}
func (Var) isTypeRef()       {}
func (Array) isTypeRef()     {}
func (GoType) isTypeRef()    {}
func (Annotated) isTypeRef() {}

func (p Prim) String() string { return p.Kind.String() }

func (n Named) String() string {
	if len(n.Args) == 0 {
		return n.Name
	}
	parts := make([]string, len(n.Args))
	for i, a := range n.Args {
		parts[i] = RefString(a)
	}
	return n.Name + "<" + strings.Join(parts, ", ") + ">"
}

func (v Var) String() string { return v.Name }

func (a Array) String() string { return "[]" + RefString(a.Elem) }

func (g GoType) String() string {
	if g.Type == nil {
		return "go(nil)"
	}
	return "go(" + g.Type.String() + ")"
}

func (a Annotated) String() string {
	if tag := a.Options.String(); tag != "" {
		return RefString(a.Ref) + " `" + tag + "`"
	}
	return RefString(a.Ref)
}

// RefString renders r, tolerating nil.
func RefString(r TypeRef) string {
	if r == nil {
		return "<nil>"
	}
	return r.String()
}

// Of returns a GoType reference for T.
func Of[T any]() GoType {
	return GoType{Type: reflect.TypeOf((*T)(nil)).Elem()}
}

// Ref binds a Named reference to arguments.
func Ref(name string, args ...TypeRef) Named {
	return Named{Name: name, Args: args}
}

// ArrayOf wraps elem in dims array levels.
func ArrayOf(elem TypeRef, dims int) TypeRef {
	for range dims {
		elem = Array{Elem: elem}
	}
	return elem
}
