package schema

import (
	"reflect"

	"github.com/wippyai/hyphen/iobuf"
)

// Field is one member of a class, in wire order.
type Field struct {
	// Type is the declared type. Nil means use the bound Go field's type.
	Type TypeRef
	Name string
	// GoName selects the Go struct field explicitly.
	GoName  string
	Options Options
}

// Instance binds one argument list of a generic class to a Go type.
type Instance struct {
	Go   reflect.Type
	Args []TypeRef
}

// Class is a declared composite type.
//
// A class with neither Go nor Instances is dynamic: its values are
// *Record at runtime.
type Class struct {
	// Go is the struct type bound to a non-generic class.
	Go reflect.Type
	// Constructor optionally builds values on decode. It must be a func
	// taking every field in declared order and returning the bound type,
	// optionally followed by an error.
	Constructor any
	Name        string
	Params      []string
	Fields      []Field
	Instances   []Instance
	// Derived marks classes built from a Go struct layout.
	Derived bool
}

// Generic reports whether the class declares type parameters.
func (c *Class) Generic() bool {
	return len(c.Params) > 0
}

// Dynamic reports whether the class has no Go binding.
func (c *Class) Dynamic() bool {
	return c.Go == nil && len(c.Instances) == 0
}

// Field returns the member with the given name.
func (c *Class) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Record is the runtime value of a dynamic class.
type Record struct {
	Fields map[string]any
	Type   string
}

// NewRecord creates a record of class typ from alternating name, value pairs.
func NewRecord(typ string, kv ...any) *Record {
	r := &Record{Type: typ, Fields: make(map[string]any, len(kv)/2)}
	for i := 0; i+1 < len(kv); i += 2 {
		name, _ := kv[i].(string)
		r.Fields[name] = kv[i+1]
	}
	return r
}

// Get returns a member value.
func (r *Record) Get(name string) any {
	if r == nil {
		return nil
	}
	return r.Fields[name]
}

// Set stores a member value.
func (r *Record) Set(name string, v any) {
	if r.Fields == nil {
		r.Fields = make(map[string]any)
	}
	r.Fields[name] = v
}

// RecordType is the Go type of dynamic class values.
var RecordType = reflect.TypeOf((*Record)(nil))

// Codec is a hand-written override for one member's wire form. Measure
// must agree with the number of bytes Encode writes.
type Codec interface {
	Encode(v reflect.Value, w iobuf.IO) error
	Decode(r iobuf.IO, t reflect.Type) (reflect.Value, error)
	Measure(v reflect.Value) (int, error)
}
