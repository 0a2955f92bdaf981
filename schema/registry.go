package schema

import (
	"reflect"

	"github.com/wippyai/hyphen/errors"
)

// Registry holds declared classes, named subclass sets and custom codecs.
// It is populated at setup time and read by the scanner; it is not safe
// for concurrent mutation.
type Registry struct {
	classes map[string]*Class
	byGo    map[reflect.Type]*Class
	derived map[reflect.Type]*Class
	sets    map[string][]TypeRef
	codecs  map[string]Codec
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		classes: make(map[string]*Class),
		byGo:    make(map[reflect.Type]*Class),
		derived: make(map[reflect.Type]*Class),
		sets:    make(map[string][]TypeRef),
		codecs:  make(map[string]Codec),
	}
}

// Declare adds a class.
func (r *Registry) Declare(c *Class) error {
	if c == nil || c.Name == "" {
		return errors.InvalidConfig(nil, "class must have a name")
	}
	path := []string{c.Name}
	if _, dup := r.classes[c.Name]; dup {
		return errors.InvalidConfig(path, "class %q already declared", c.Name)
	}

	params := make(map[string]bool, len(c.Params))
	for _, p := range c.Params {
		if p == "" || params[p] {
			return errors.InvalidConfig(path, "invalid or repeated type parameter %q", p)
		}
		params[p] = true
	}

	names := make(map[string]bool, len(c.Fields))
	for _, f := range c.Fields {
		fpath := []string{c.Name, f.Name}
		if f.Name == "" || names[f.Name] {
			return errors.InvalidConfig(fpath, "invalid or repeated member name %q", f.Name)
		}
		names[f.Name] = true
		if f.Type == nil && c.Dynamic() && !f.Options.Polymorphic() {
			return errors.InvalidConfig(fpath, "member of a dynamic class needs a declared type")
		}
		if err := f.Options.Validate(fpath); err != nil {
			return err
		}
	}

	if c.Go != nil {
		if c.Generic() {
			return errors.InvalidConfig(path, "generic class binds Go types per instance, not through Go")
		}
		if err := r.bindGo(c, c.Go); err != nil {
			return err
		}
	}
	for _, inst := range c.Instances {
		if !c.Generic() {
			return errors.InvalidConfig(path, "instances declared on a class without type parameters")
		}
		if len(inst.Args) != len(c.Params) {
			return errors.InvalidConfig(path, "instance has %d arguments, class declares %d", len(inst.Args), len(c.Params))
		}
		if err := r.bindGo(c, inst.Go); err != nil {
			return err
		}
	}
	if c.Constructor != nil {
		if c.Dynamic() {
			return errors.InvalidConfig(path, "constructor requires a Go binding")
		}
		if reflect.TypeOf(c.Constructor).Kind() != reflect.Func {
			return errors.InvalidConfig(path, "constructor must be a func, got %T", c.Constructor)
		}
	}

	r.classes[c.Name] = c
	r.order = append(r.order, c.Name)
	return nil
}

func (r *Registry) bindGo(c *Class, t reflect.Type) error {
	if t == nil || t.Kind() != reflect.Struct {
		return errors.InvalidConfig([]string{c.Name}, "Go binding must be a struct type, got %v", t)
	}
	if prev, ok := r.byGo[t]; ok {
		return errors.InvalidConfig([]string{c.Name}, "Go type %v already bound to class %q", t, prev.Name)
	}
	r.byGo[t] = c
	return nil
}

// MustDeclare is Declare that panics on error, for static setup.
func (r *Registry) MustDeclare(c *Class) *Registry {
	if err := r.Declare(c); err != nil {
		panic(err)
	}
	return r
}

// Class returns a declared class by name.
func (r *Registry) Class(name string) (*Class, bool) {
	c, ok := r.classes[name]
	return c, ok
}

// Classes returns declared classes in declaration order.
func (r *Registry) Classes() []*Class {
	out := make([]*Class, len(r.order))
	for i, name := range r.order {
		out[i] = r.classes[name]
	}
	return out
}

// ClassOf returns the class bound to a Go struct type, deriving one from
// the struct layout when none was declared.
func (r *Registry) ClassOf(t reflect.Type) (*Class, error) {
	if c, ok := r.byGo[t]; ok {
		return c, nil
	}
	if c, ok := r.derived[t]; ok {
		return c, nil
	}
	c, err := Derive(t)
	if err != nil {
		return nil, err
	}
	r.derived[t] = c
	return c, nil
}

// DefineSubclasses registers a named, ordered candidate set for use with
// the subclasses=<set> option.
func (r *Registry) DefineSubclasses(name string, refs ...TypeRef) error {
	if name == "" {
		return errors.InvalidConfig(nil, "subclass set must have a name")
	}
	if _, dup := r.sets[name]; dup {
		return errors.InvalidConfig(nil, "subclass set %q already defined", name)
	}
	if len(refs) == 0 {
		return errors.InvalidConfig(nil, "subclass set %q is empty", name)
	}
	for i, ref := range refs {
		if ref == nil {
			return errors.InvalidConfig(nil, "subclass set %q candidate %d is nil", name, i)
		}
	}
	r.sets[name] = append([]TypeRef(nil), refs...)
	return nil
}

// Subclasses returns a named candidate set.
func (r *Registry) Subclasses(name string) ([]TypeRef, bool) {
	refs, ok := r.sets[name]
	return refs, ok
}

// RegisterCodec registers a custom codec for the codec=<name> option.
func (r *Registry) RegisterCodec(name string, c Codec) error {
	if name == "" || c == nil {
		return errors.InvalidConfig(nil, "codec needs a name and an implementation")
	}
	if _, dup := r.codecs[name]; dup {
		return errors.InvalidConfig(nil, "codec %q already registered", name)
	}
	r.codecs[name] = c
	return nil
}

// Codec returns a registered codec.
func (r *Registry) Codec(name string) (Codec, bool) {
	c, ok := r.codecs[name]
	return c, ok
}

// Derive builds a class from a Go struct: exported fields in declaration
// order, options from `hyphen` tags.
func Derive(t reflect.Type) (*Class, error) {
	if t.Kind() != reflect.Struct {
		return nil, errors.Unsupported(errors.PhaseScan, nil, "cannot derive a class from "+t.String())
	}
	c := &Class{Name: t.String(), Go: t, Derived: true}
	names := make(map[string]bool)
	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		path := []string{c.Name, sf.Name}
		tag, err := ParseTag(sf.Tag.Get(TagName), path)
		if err != nil {
			return nil, err
		}
		if tag.Skip {
			continue
		}
		name := sf.Name
		if tag.Name != "" {
			name = tag.Name
		}
		if names[name] {
			return nil, errors.InvalidConfig(path, "member name %q used twice", name)
		}
		names[name] = true
		c.Fields = append(c.Fields, Field{Name: name, GoName: sf.Name, Options: tag.Options})
	}
	return c, nil
}
