package descriptor

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/wippyai/hyphen/errors"
	"github.com/wippyai/hyphen/schema"
)

// Shape is the structural category of a descriptor.
type Shape uint8

const (
	ShapeScalar Shape = iota
	ShapeArray
	ShapeComposite
	ShapePolymorphic
	ShapePointer
	ShapeUnknown
)

var shapeNames = [...]string{
	ShapeScalar:      "scalar",
	ShapeArray:       "array",
	ShapeComposite:   "composite",
	ShapePolymorphic: "polymorphic",
	ShapePointer:     "pointer",
	ShapeUnknown:     "unknown",
}

func (s Shape) String() string {
	if int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return "invalid"
}

// Field is one composite member bound to its accessor.
type Field struct {
	Type *Descriptor
	Name string
	// Index is the Go struct field index. Nil for dynamic classes.
	Index []int
}

// Descriptor is a canonical, immutable description of one type shape.
// Descriptors are created and interned by a Table; structurally equal
// shapes are the same *Descriptor.
//
// A descriptor carrying member options wraps an option-free base that
// holds the shape; accessors read through to the base.
type Descriptor struct {
	goType     reflect.Type
	base       *Descriptor
	elem       *Descriptor
	generics   *GenericContext
	class      *schema.Class
	ctor       reflect.Value
	key        string
	name       string
	reason     string
	fields     []Field
	candidates []*Descriptor
	entries    []errors.Entry
	options    schema.Options
	id         int
	fixed      int
	shape      Shape
	kind       schema.Kind
	dynamic    bool
	complete   bool
}

func (d *Descriptor) plain() *Descriptor {
	if d.base != nil {
		return d.base
	}
	return d
}

// ID is unique within the owning Table.
func (d *Descriptor) ID() int { return d.id }

// Key is the structural identity the Table interns by.
func (d *Descriptor) Key() string { return d.key }

// Base returns the option-free descriptor, or d itself.
func (d *Descriptor) Base() *Descriptor { return d.plain() }

// Annotated reports whether d carries member options over a base.
func (d *Descriptor) Annotated() bool { return d.base != nil }

func (d *Descriptor) Shape() Shape { return d.plain().shape }

// Name is the readable type name, such as "i32", "[]Pair" or "Box<i32>".
func (d *Descriptor) Name() string { return d.plain().name }

// Go is the Go type of values this descriptor describes.
func (d *Descriptor) Go() reflect.Type { return d.plain().goType }

// Options returns the member options. Always zero on a base descriptor.
func (d *Descriptor) Options() schema.Options { return d.options }

// Kind is the wire scalar of a scalar descriptor.
func (d *Descriptor) Kind() schema.Kind { return d.plain().kind }

// Elem is the element of an array or the target of a pointer.
func (d *Descriptor) Elem() *Descriptor { return d.plain().elem }

// Fixed is the Go array length, or -1 for slices.
func (d *Descriptor) Fixed() int { return d.plain().fixed }

// Dims counts nested array levels.
func (d *Descriptor) Dims() int {
	n := 0
	for cur := d; cur.Shape() == ShapeArray; cur = cur.Elem() {
		n++
	}
	return n
}

// Fields returns composite members in wire order.
func (d *Descriptor) Fields() []Field { return d.plain().fields }

// Field returns a composite member by name.
func (d *Descriptor) Field(name string) (Field, bool) {
	for _, f := range d.Fields() {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Generics is the context a parameterized composite was resolved in.
func (d *Descriptor) Generics() *GenericContext { return d.plain().generics }

// Class is the declaring class of a composite.
func (d *Descriptor) Class() *schema.Class { return d.plain().class }

// Dynamic reports whether a composite is represented by *schema.Record.
func (d *Descriptor) Dynamic() bool { return d.plain().dynamic }

// Constructor returns the designated constructor, if any.
func (d *Descriptor) Constructor() (reflect.Value, bool) {
	c := d.plain().ctor
	return c, c.IsValid()
}

// Candidates returns polymorphic candidates in discriminator order.
func (d *Descriptor) Candidates() []*Descriptor { return d.plain().candidates }

// Reason explains an unknown placeholder.
func (d *Descriptor) Reason() string { return d.plain().reason }

// Entries returns the diagnostic context of an unknown placeholder.
func (d *Descriptor) Entries() []errors.Entry { return d.plain().entries }

// Complete reports whether a composite's members have been filled in.
func (d *Descriptor) Complete() bool {
	p := d.plain()
	return p.shape != ShapeComposite || p.complete
}

func (d *Descriptor) String() string {
	var b strings.Builder
	b.WriteString(d.Name())
	if !d.options.IsZero() {
		b.WriteString(" [")
		b.WriteString(d.options.String())
		b.WriteByte(']')
	}
	return b.String()
}

// Describe renders the descriptor tree, one node per line. Composites
// already printed are referenced by name.
func Describe(d *Descriptor) string {
	var b strings.Builder
	describe(&b, d, "", 0, make(map[*Descriptor]bool))
	return b.String()
}

func describe(b *strings.Builder, d *Descriptor, label string, depth int, seen map[*Descriptor]bool) {
	b.WriteString(strings.Repeat("  ", depth))
	if label != "" {
		b.WriteString(label)
		b.WriteString(": ")
	}
	b.WriteString(d.String())
	b.WriteString(" (")
	b.WriteString(d.Shape().String())
	if g := d.Go(); g != nil {
		b.WriteString(", go ")
		b.WriteString(g.String())
	}
	b.WriteString(")\n")

	base := d.Base()
	switch d.Shape() {
	case ShapeArray, ShapePointer:
		describe(b, d.Elem(), "elem", depth+1, seen)
	case ShapeComposite:
		if seen[base] {
			return
		}
		seen[base] = true
		for _, f := range d.Fields() {
			describe(b, f.Type, f.Name, depth+1, seen)
		}
	case ShapePolymorphic:
		for i, c := range d.Candidates() {
			describe(b, c, strconv.Itoa(i), depth+1, seen)
		}
	}
}
