package descriptor

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/wippyai/hyphen/errors"
	"github.com/wippyai/hyphen/schema"
)

// Table interns descriptors by structural key. It belongs to one compiler
// session and is not safe for concurrent mutation.
type Table struct {
	byKey  map[string]*Descriptor
	goIDs  map[reflect.Type]int
	all    []*Descriptor
	nextID int
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		byKey: make(map[string]*Descriptor),
		goIDs: make(map[reflect.Type]int),
	}
}

// Len returns the number of interned descriptors.
func (t *Table) Len() int { return len(t.all) }

// Lookup returns the descriptor interned under key.
func (t *Table) Lookup(key string) (*Descriptor, bool) {
	d, ok := t.byKey[key]
	return d, ok
}

// Mark returns a position for Rollback.
func (t *Table) Mark() int { return len(t.all) }

// Rollback drops every descriptor interned after mark. Used when a scan
// fails part-way and leaves incomplete composites behind.
func (t *Table) Rollback(mark int) {
	if mark < 0 || mark >= len(t.all) {
		return
	}
	for _, d := range t.all[mark:] {
		delete(t.byKey, d.key)
	}
	clear(t.all[mark:])
	t.all = t.all[:mark]
}

func (t *Table) typeKey(rt reflect.Type) string {
	if rt == nil {
		return "-"
	}
	id, ok := t.goIDs[rt]
	if !ok {
		id = len(t.goIDs) + 1
		t.goIDs[rt] = id
	}
	return "g" + itoa(id)
}

// Intern returns the canonical descriptor structurally equal to d,
// registering d if it is the first of its shape.
func (t *Table) Intern(d *Descriptor) *Descriptor {
	key := t.keyOf(d)
	if existing, ok := t.byKey[key]; ok {
		return existing
	}
	t.nextID++
	d.id = t.nextID
	d.key = key
	t.byKey[key] = d
	t.all = append(t.all, d)
	return d
}

func (t *Table) keyOf(d *Descriptor) string {
	var b strings.Builder
	if d.base != nil {
		b.WriteString("O")
		b.WriteString(itoa(d.base.id))
		b.WriteByte(':')
		b.WriteString(optionsKey(d.options))
		return b.String()
	}
	switch d.shape {
	case ShapeScalar:
		b.WriteString("S")
		b.WriteString(d.kind.String())
	case ShapeArray:
		b.WriteString("A")
		b.WriteString(itoa(d.elem.id))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(d.fixed))
	case ShapePointer:
		b.WriteString("P")
		b.WriteString(itoa(d.elem.id))
	case ShapeComposite:
		b.WriteString("C")
		b.WriteString(d.class.Name)
		b.WriteByte('[')
		b.WriteString(d.generics.key())
		b.WriteByte(']')
	case ShapePolymorphic:
		b.WriteString("V")
		for i, c := range d.candidates {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(itoa(c.id))
		}
	case ShapeUnknown:
		b.WriteString("U")
		b.WriteString(d.reason)
	}
	b.WriteByte('@')
	b.WriteString(t.typeKey(d.goType))
	return b.String()
}

func optionsKey(o schema.Options) string {
	var b strings.Builder
	if o.Nullable {
		b.WriteString("n")
	}
	if o.Stale {
		b.WriteString("s")
	}
	if o.Codec != "" {
		b.WriteString("c=")
		b.WriteString(o.Codec)
	}
	return b.String()
}

// Scalar interns a scalar of kind carried by Go type goType.
func (t *Table) Scalar(kind schema.Kind, goType reflect.Type) *Descriptor {
	return t.Intern(&Descriptor{shape: ShapeScalar, kind: kind, goType: goType, name: kind.String()})
}

// Array interns an array of elem. fixed is the Go array length, or -1.
func (t *Table) Array(elem *Descriptor, goType reflect.Type, fixed int) *Descriptor {
	name := "[]" + elem.Name()
	if fixed >= 0 {
		name = "[" + strconv.Itoa(fixed) + "]" + elem.Name()
	}
	return t.Intern(&Descriptor{shape: ShapeArray, elem: elem, goType: goType, fixed: fixed, name: name})
}

// Pointer interns a pointer to elem.
func (t *Table) Pointer(elem *Descriptor, goType reflect.Type) *Descriptor {
	return t.Intern(&Descriptor{shape: ShapePointer, elem: elem, goType: goType, name: "*" + elem.Name()})
}

// Polymorphic interns a closed candidate set carried by an interface type.
func (t *Table) Polymorphic(goType reflect.Type, candidates []*Descriptor) *Descriptor {
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.String()
	}
	return t.Intern(&Descriptor{
		shape:      ShapePolymorphic,
		goType:     goType,
		candidates: append([]*Descriptor(nil), candidates...),
		name:       "(" + strings.Join(names, " | ") + ")",
	})
}

// Unknown interns a placeholder for a type that could not be resolved.
// Routines lower it to a fatal path carrying entries.
func (t *Table) Unknown(goType reflect.Type, reason string, entries []errors.Entry) *Descriptor {
	return t.Intern(&Descriptor{
		shape:   ShapeUnknown,
		goType:  goType,
		reason:  reason,
		entries: append([]errors.Entry(nil), entries...),
		name:    "?",
	})
}

// Stale interns an excluded member carried by goType. Only the Go type is
// recorded; the member's shape is never resolved.
func (t *Table) Stale(goType reflect.Type) *Descriptor {
	base := t.Intern(&Descriptor{
		shape:  ShapeUnknown,
		goType: goType,
		reason: "stale member",
		name:   "~",
	})
	return t.Annotate(base, schema.Options{Stale: true})
}

// CompositeSpec identifies a composite before its members are resolved.
type CompositeSpec struct {
	Go       reflect.Type
	Class    *schema.Class
	Generics *GenericContext
	Name     string
	Dynamic  bool
}

// Composite interns a composite shell. fresh reports whether this call
// created it; the caller must then fill members with Complete. Interning
// the shell first lets self-referential members resolve to it.
func (t *Table) Composite(spec CompositeSpec) (d *Descriptor, fresh bool) {
	shell := &Descriptor{
		shape:    ShapeComposite,
		goType:   spec.Go,
		class:    spec.Class,
		generics: spec.Generics,
		name:     spec.Name,
		dynamic:  spec.Dynamic,
	}
	d = t.Intern(shell)
	return d, d == shell
}

// Complete fills a composite shell's members and constructor.
func (t *Table) Complete(d *Descriptor, fields []Field, ctor reflect.Value) error {
	if d.shape != ShapeComposite || d.base != nil {
		return errors.New(errors.PhaseScan, errors.KindUnsupported).
			Detail("Complete called on %s descriptor", d.Shape()).
			Build()
	}
	if d.complete {
		return errors.New(errors.PhaseScan, errors.KindUnsupported).
			Detail("composite %s already complete", d.name).
			Build()
	}
	d.fields = append([]Field(nil), fields...)
	d.ctor = ctor
	d.complete = true
	return nil
}

// Annotate interns base with member options. Subclass options are part of
// the shape and are dropped here. Zero options return base.
func (t *Table) Annotate(base *Descriptor, opts schema.Options) *Descriptor {
	base = base.plain()
	opts.Subclasses = nil
	opts.SubclassSet = ""
	if opts.IsZero() {
		return base
	}
	return t.Intern(&Descriptor{base: base, options: opts})
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
