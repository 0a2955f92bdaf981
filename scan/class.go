package scan

import (
	"reflect"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/wippyai/hyphen/descriptor"
	"github.com/wippyai/hyphen/errors"
	"github.com/wippyai/hyphen/schema"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func (s *Scanner) resolveClass(class *schema.Class, ctx *descriptor.GenericContext, binds map[string]binding, goType reflect.Type, name string, e *env) (*descriptor.Descriptor, error) {
	d, fresh := s.tab.Composite(descriptor.CompositeSpec{
		Name:     name,
		Go:       goType,
		Class:    class,
		Generics: ctx,
		Dynamic:  goType == schema.RecordType,
	})
	if !fresh {
		if entry, active := s.active[d]; active && entry == s.guards {
			return nil, errors.New(errors.PhaseScan, errors.KindRecursiveType).
				Path(e.at(name)...).
				Detail("%s contains itself with no nullable, array or subclass step", name).
				Entry("source class", e.source()).
				Entry("failing class", name).
				Build()
		}
		return d, nil
	}

	s.active[d] = s.guards
	defer delete(s.active, d)

	inner := &env{ctx: ctx, binds: binds, owner: name, path: e.at(name)}
	dynamic := d.Dynamic()
	fields := make([]descriptor.Field, 0, len(class.Fields))
	settable := true

	for _, f := range class.Fields {
		member := &env{
			ctx:    ctx,
			binds:  binds,
			owner:  name,
			member: f.Name + ": " + schema.RefString(f.Type),
			path:   inner.at(f.Name),
		}

		var goField reflect.Type
		var index []int
		if !dynamic {
			sf, ok := findGoField(goType, f)
			if !ok {
				return nil, errors.MissingAccessor(member.path, name, f.Name)
			}
			if !sf.IsExported() {
				settable = false
			}
			goField = sf.Type
			index = sf.Index
		}

		fd, err := s.resolve(f.Type, goField, f.Options, member)
		if err != nil {
			return nil, err
		}
		fields = append(fields, descriptor.Field{Name: f.Name, Type: fd, Index: index})
	}

	var ctor reflect.Value
	if class.Constructor != nil {
		c, err := checkConstructor(class, goType, fields, inner)
		if err != nil {
			return nil, err
		}
		ctor = c
	} else if !settable {
		for i, f := range class.Fields {
			if sf := goType.FieldByIndex(fields[i].Index); !sf.IsExported() {
				return nil, errors.New(errors.PhaseScan, errors.KindMissingAccessor).
					Path(inner.at(f.Name)...).
					GoType(goType.String()).
					Detail("unexported field %s needs a constructor", sf.Name).
					Entry("class", name).
					Entry("member", f.Name).
					Build()
			}
		}
	}

	if err := s.tab.Complete(d, fields, ctor); err != nil {
		return nil, err
	}
	s.log.Debug("resolved composite",
		zap.String("class", name),
		zap.Int("fields", len(fields)),
		zap.Bool("dynamic", dynamic))
	return d, nil
}

// findGoField binds a member to a struct field: explicit GoName, then a
// matching hyphen tag name, then exact, case-insensitive and finally
// separator-insensitive name matches.
func findGoField(t reflect.Type, f schema.Field) (reflect.StructField, bool) {
	if f.GoName != "" {
		return t.FieldByName(f.GoName)
	}
	for i := range t.NumField() {
		sf := t.Field(i)
		if tag, _, _ := strings.Cut(sf.Tag.Get(schema.TagName), ","); tag == f.Name {
			return sf, true
		}
	}
	if sf, ok := t.FieldByName(f.Name); ok {
		return sf, true
	}
	for i := range t.NumField() {
		if sf := t.Field(i); strings.EqualFold(sf.Name, f.Name) {
			return sf, true
		}
	}
	want := normalize(f.Name)
	for i := range t.NumField() {
		if sf := t.Field(i); normalize(sf.Name) == want {
			return sf, true
		}
	}
	return reflect.StructField{}, false
}

func normalize(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r == '_' || r == '-' {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// checkConstructor validates a designated constructor: one parameter per
// member in declared order, returning the bound type or a pointer to it,
// optionally followed by an error.
func checkConstructor(class *schema.Class, goType reflect.Type, fields []descriptor.Field, e *env) (reflect.Value, error) {
	fn := reflect.ValueOf(class.Constructor)
	ft := fn.Type()
	fail := func(format string, args ...any) error {
		return errors.New(errors.PhaseScan, errors.KindMissingAccessor).
			Path(e.path...).
			GoType(ft.String()).
			Detail(format, args...).
			Entry("class", class.Name).
			Entry("member", "constructor").
			Build()
	}

	if ft.IsVariadic() || ft.NumIn() != len(fields) {
		return reflect.Value{}, fail("constructor takes %d parameters, class has %d members", ft.NumIn(), len(fields))
	}
	for i, f := range fields {
		in := ft.In(i)
		if g := f.Type.Go(); !g.AssignableTo(in) {
			return reflect.Value{}, fail("parameter %d is %v, member %s decodes as %v", i, in, f.Name, g)
		}
	}
	switch ft.NumOut() {
	case 1:
	case 2:
		if ft.Out(1) != errorType {
			return reflect.Value{}, fail("second result must be error, got %v", ft.Out(1))
		}
	default:
		return reflect.Value{}, fail("constructor must return the value, optionally with an error")
	}
	if out := ft.Out(0); out != goType && out != reflect.PointerTo(goType) {
		return reflect.Value{}, fail("constructor returns %v, want %v", out, goType)
	}
	return fn, nil
}

func (s *Scanner) resolvePolymorphic(goType reflect.Type, opts schema.Options, e *env) (*descriptor.Descriptor, error) {
	refs := opts.Subclasses
	if opts.SubclassSet != "" {
		set, ok := s.reg.Subclasses(opts.SubclassSet)
		if !ok {
			return nil, errors.InvalidConfig(e.path, "subclass set %q is not defined", opts.SubclassSet)
		}
		refs = set
	}
	if len(refs) == 0 {
		return nil, errors.InvalidConfig(e.path, "empty subclass set")
	}

	iface := goType
	if iface == nil {
		iface = anyType
	}
	if iface.Kind() != reflect.Interface {
		return nil, errors.InvalidConfig(e.path, "subclasses require an interface-typed member, got %v", iface)
	}

	s.guards++
	defer func() { s.guards-- }()

	cands := make([]*descriptor.Descriptor, 0, len(refs))
	for i, ref := range refs {
		cand, err := s.resolve(ref, nil, schema.Options{}, e)
		if err != nil {
			return nil, err
		}
		if g := cand.Go(); !g.AssignableTo(iface) {
			if !reflect.PointerTo(g).AssignableTo(iface) {
				return nil, errors.New(errors.PhaseScan, errors.KindTypeMismatch).
					Path(e.path...).
					GoType(g.String()).
					Detail("candidate %d does not implement %v", i, iface).
					Entry("candidate", cand.String()).
					Build()
			}
			cand = s.tab.Pointer(cand, reflect.PointerTo(g))
		}
		for _, prev := range cands {
			if indistinguishable(prev, cand) {
				return nil, errors.AmbiguousSubclass(e.path, prev.String(), cand.String())
			}
		}
		cands = append(cands, cand)
	}
	return s.tab.Polymorphic(iface, cands), nil
}

// indistinguishable reports whether a runtime value could match both
// candidates. Values are matched by concrete Go type, and dynamic records
// additionally by class name.
func indistinguishable(a, b *descriptor.Descriptor) bool {
	if a == b {
		return true
	}
	if a.Go() != b.Go() {
		return false
	}
	ca, cb := recordClass(a), recordClass(b)
	if ca == nil || cb == nil {
		return true
	}
	return ca.Name == cb.Name
}

func recordClass(d *descriptor.Descriptor) *schema.Class {
	if d.Shape() == descriptor.ShapeComposite && d.Dynamic() {
		return d.Class()
	}
	return nil
}
