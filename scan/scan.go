package scan

import (
	"reflect"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/hyphen/descriptor"
	"github.com/wippyai/hyphen/errors"
	"github.com/wippyai/hyphen/schema"
)

var anyType = reflect.TypeOf((*any)(nil)).Elem()

// Option configures a Scanner.
type Option func(*Scanner)

// WithLenient turns unresolvable type variables and interface members
// without a subclass set into unknown placeholders instead of errors.
func WithLenient(lenient bool) Option {
	return func(s *Scanner) { s.lenient = lenient }
}

// WithLogger sets the scanner's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.log = l
		}
	}
}

type rootKey struct {
	goType reflect.Type
	ref    string
}

// Stats counts root lookups.
type Stats struct {
	Lookups int
	Hits    int
}

// Scanner resolves type references against a Registry into canonical
// descriptors. Roots are memoized by (reference, Go type).
type Scanner struct {
	reg     *schema.Registry
	tab     *descriptor.Table
	log     *zap.Logger
	roots   map[rootKey]*descriptor.Descriptor
	active  map[*descriptor.Descriptor]int
	stats   Stats
	guards  int
	lenient bool
}

// New creates a Scanner that interns into tab.
func New(reg *schema.Registry, tab *descriptor.Table, opts ...Option) *Scanner {
	s := &Scanner{
		reg:    reg,
		tab:    tab,
		log:    Logger(),
		roots:  make(map[rootKey]*descriptor.Descriptor),
		active: make(map[*descriptor.Descriptor]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stats returns root cache statistics.
func (s *Scanner) Stats() Stats {
	return s.stats
}

// Scan resolves a root type. ref may be nil to derive the shape from
// goType; goType may be nil to use the natural Go representation of ref
// (bound struct, *schema.Record for dynamic classes, []T, scalar types).
//
// On failure nothing from the attempt stays interned.
func (s *Scanner) Scan(ref schema.TypeRef, goType reflect.Type) (*descriptor.Descriptor, error) {
	if ref == nil && goType == nil {
		return nil, errors.New(errors.PhaseScan, errors.KindUnsupported).
			Detail("scan needs a type reference or a Go type").
			Build()
	}

	key := rootKey{goType: goType}
	if g, ok := ref.(schema.GoType); ok && goType == nil {
		key.goType = g.Type
	} else if ref != nil {
		key.ref = ref.String()
	}

	s.stats.Lookups++
	if d, ok := s.roots[key]; ok {
		s.stats.Hits++
		return d, nil
	}

	mark := s.tab.Mark()
	d, err := s.resolve(ref, goType, schema.Options{}, &env{})
	if err != nil {
		s.tab.Rollback(mark)
		clear(s.active)
		s.guards = 0
		return nil, err
	}

	s.roots[key] = d
	s.log.Debug("scanned root",
		zap.String("type", d.String()),
		zap.Int("descriptors", s.tab.Len()))
	return d, nil
}

// env is the lexical environment of one resolution step.
type env struct {
	ctx    *descriptor.GenericContext
	binds  map[string]binding
	owner  string
	member string
	path   []string
}

// binding remembers where a type argument was written so a variable can
// be re-resolved against a different Go carrier.
type binding struct {
	ref schema.TypeRef
	env *env
}

func (e *env) at(elems ...string) []string {
	out := make([]string, 0, len(e.path)+len(elems))
	out = append(out, e.path...)
	return append(out, elems...)
}

func (e *env) source() string {
	if e.owner == "" {
		return "<root>"
	}
	return e.owner
}

func (e *env) failing(fallback string) string {
	if e.member != "" {
		return e.member
	}
	return fallback
}

func (s *Scanner) resolve(ref schema.TypeRef, goType reflect.Type, opts schema.Options, e *env) (*descriptor.Descriptor, error) {
	for {
		a, ok := ref.(schema.Annotated)
		if !ok {
			break
		}
		opts = opts.Merge(a.Options)
		ref = a.Ref
	}
	if err := opts.Validate(e.path); err != nil {
		return nil, err
	}

	if opts.Stale {
		return s.tab.Stale(staleGo(ref, goType)), nil
	}

	if opts.Nullable {
		s.guards++
		defer func() { s.guards-- }()
	}

	if opts.Polymorphic() {
		if elem, ok := pushDown(ref, goType, opts); ok {
			opts.Subclasses, opts.SubclassSet = nil, ""
			ref = elem
		} else {
			d, err := s.resolvePolymorphic(goType, opts, e)
			if err != nil {
				return nil, err
			}
			return s.annotate(d, opts, goType == nil, e)
		}
	}

	d, err := s.resolveShape(ref, goType, e)
	if err != nil {
		return nil, err
	}
	if d.Annotated() {
		opts = d.Options().Merge(opts)
		if err := opts.Validate(e.path); err != nil {
			return nil, err
		}
		d = d.Base()
	}
	return s.annotate(d, opts, goType == nil, e)
}

// staleGo is the Go type a stale member decodes to. Dynamic members take
// it from a scalar or Go type reference and fall back to any.
func staleGo(ref schema.TypeRef, goType reflect.Type) reflect.Type {
	if goType != nil {
		return goType
	}
	switch r := ref.(type) {
	case schema.Prim:
		return r.Kind.GoType()
	case schema.GoType:
		if r.Type != nil {
			return r.Type
		}
	}
	return anyType
}

// pushDown moves a subclass set declared on an array member onto its
// elements.
func pushDown(ref schema.TypeRef, goType reflect.Type, opts schema.Options) (schema.TypeRef, bool) {
	poly := schema.Options{Subclasses: opts.Subclasses, SubclassSet: opts.SubclassSet}
	if a, ok := ref.(schema.Array); ok {
		return schema.Array{Elem: schema.Annotated{Ref: a.Elem, Options: poly}}, true
	}
	if ref == nil && goType != nil && (goType.Kind() == reflect.Slice || goType.Kind() == reflect.Array) {
		return schema.Array{Elem: schema.Annotated{Options: poly}}, true
	}
	return nil, false
}

func (s *Scanner) annotate(d *descriptor.Descriptor, opts schema.Options, dynamic bool, e *env) (*descriptor.Descriptor, error) {
	if opts.Nullable && !nilable(d.Go()) {
		if !dynamic {
			return nil, errors.InvalidConfig(e.path, "nullable requires a pointer, interface or slice Go type, got %v", d.Go())
		}
		d = s.tab.Pointer(d, reflect.PointerTo(d.Go()))
	}
	if opts.Codec != "" {
		if _, ok := s.reg.Codec(opts.Codec); !ok {
			return nil, errors.InvalidConfig(e.path, "codec %q is not registered", opts.Codec)
		}
	}
	return s.tab.Annotate(d, opts), nil
}

func nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
		return true
	}
	return false
}

func (s *Scanner) resolveShape(ref schema.TypeRef, goType reflect.Type, e *env) (*descriptor.Descriptor, error) {
	if ref == nil {
		if goType == nil {
			return nil, errors.New(errors.PhaseScan, errors.KindUnsupported).
				Path(e.path...).
				Detail("member has neither a declared type nor a Go type").
				Build()
		}
		return s.resolveGo(goType, e)
	}
	if g, ok := ref.(schema.GoType); ok {
		if g.Type == nil {
			return nil, errors.Unsupported(errors.PhaseScan, e.path, "GoType reference with nil type")
		}
		if goType != nil && goType != g.Type {
			return nil, errors.TypeMismatch(errors.PhaseScan, e.path, goType.String(), g.Type.String())
		}
		return s.resolveGo(g.Type, e)
	}

	if goType != nil && goType.Kind() == reflect.Pointer && goType != schema.RecordType {
		elem, err := s.resolveShape(ref, goType.Elem(), e)
		if err != nil {
			return nil, err
		}
		return s.tab.Pointer(elem, goType), nil
	}

	switch r := ref.(type) {
	case schema.Prim:
		if goType == nil {
			return s.tab.Scalar(r.Kind, r.Kind.GoType()), nil
		}
		if !r.Kind.Accepts(goType) {
			return nil, errors.TypeMismatch(errors.PhaseScan, e.path, goType.String(), r.Kind.String())
		}
		return s.tab.Scalar(r.Kind, goType), nil

	case schema.Var:
		return s.resolveVar(r, goType, e)

	case schema.Array:
		return s.resolveArray(r, goType, e)

	case schema.Named:
		return s.resolveNamed(r, goType, e)
	}

	return nil, errors.Unsupported(errors.PhaseScan, e.path, "unsupported type reference "+schema.RefString(ref))
}

func (s *Scanner) resolveVar(v schema.Var, goType reflect.Type, e *env) (*descriptor.Descriptor, error) {
	d, ok := e.ctx.Lookup(v.Name)
	if !ok {
		if s.lenient {
			return s.placeholder(goType, "unresolved type variable "+v.Name, e,
				errors.Entry{Label: "source class", Value: e.source()},
				errors.Entry{Label: "failing class", Value: e.failing(v.Name)},
				errors.Entry{Label: "type variable", Value: v.Name},
			), nil
		}
		return nil, errors.UnknownType(e.path, e.source(), e.failing(v.Name), v.Name)
	}
	if goType == nil || goType == d.Go() {
		return d, nil
	}
	b, ok := e.binds[v.Name]
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseScan, e.path, goType.String(), d.Go().String())
	}
	return s.resolve(b.ref, goType, schema.Options{}, b.env)
}

func (s *Scanner) resolveArray(a schema.Array, goType reflect.Type, e *env) (*descriptor.Descriptor, error) {
	var elemGo reflect.Type
	fixed := -1
	if goType != nil {
		switch goType.Kind() {
		case reflect.Slice:
			elemGo = goType.Elem()
		case reflect.Array:
			elemGo = goType.Elem()
			fixed = goType.Len()
		default:
			return nil, errors.TypeMismatch(errors.PhaseScan, e.path, goType.String(), "slice or array")
		}
	}

	s.guards++
	elem, err := s.resolve(a.Elem, elemGo, schema.Options{}, e)
	s.guards--
	if err != nil {
		return nil, err
	}
	if goType == nil {
		goType = reflect.SliceOf(elem.Go())
	}
	return s.tab.Array(elem, goType, fixed), nil
}

func (s *Scanner) resolveGo(t reflect.Type, e *env) (*descriptor.Descriptor, error) {
	if t == schema.RecordType {
		return nil, errors.Unsupported(errors.PhaseScan, e.path, "*schema.Record needs a declared class")
	}
	if k, ok := schema.KindOf(t); ok {
		return s.tab.Scalar(k, t), nil
	}

	switch t.Kind() {
	case reflect.Pointer:
		elem, err := s.resolveGo(t.Elem(), e)
		if err != nil {
			return nil, err
		}
		return s.tab.Pointer(elem, t), nil

	case reflect.Slice, reflect.Array:
		fixed := -1
		if t.Kind() == reflect.Array {
			fixed = t.Len()
		}
		s.guards++
		elem, err := s.resolve(nil, t.Elem(), schema.Options{}, e)
		s.guards--
		if err != nil {
			return nil, err
		}
		return s.tab.Array(elem, t, fixed), nil

	case reflect.Struct:
		class, err := s.reg.ClassOf(t)
		if err != nil {
			return nil, err
		}
		ctx, binds, err := s.instanceContext(class, t, e)
		if err != nil {
			return nil, err
		}
		return s.resolveClass(class, ctx, binds, t, instanceName(class, ctx), e)

	case reflect.Interface:
		if s.lenient {
			return s.placeholder(t, "interface member without subclass set", e,
				errors.Entry{Label: "source class", Value: e.source()},
				errors.Entry{Label: "failing class", Value: t.String()},
			), nil
		}
		return nil, errors.New(errors.PhaseScan, errors.KindUnsupported).
			Path(e.path...).
			GoType(t.String()).
			Detail("interface member needs a subclass set").
			Build()
	}

	return nil, errors.New(errors.PhaseScan, errors.KindUnsupported).
		Path(e.path...).
		GoType(t.String()).
		Detail("Go kind %s has no wire form", t.Kind()).
		Build()
}

// instanceContext binds the generic parameters of a class reached through
// one of its Go instance types.
func (s *Scanner) instanceContext(class *schema.Class, t reflect.Type, e *env) (*descriptor.GenericContext, map[string]binding, error) {
	if !class.Generic() {
		return nil, nil, nil
	}
	for _, inst := range class.Instances {
		if inst.Go != t {
			continue
		}
		root := &env{path: e.path}
		args := make([]*descriptor.Descriptor, len(inst.Args))
		binds := make(map[string]binding, len(inst.Args))
		for i, a := range inst.Args {
			d, err := s.resolve(a, nil, schema.Options{}, root)
			if err != nil {
				return nil, nil, err
			}
			args[i] = d
			binds[class.Params[i]] = binding{ref: a, env: root}
		}
		return descriptor.NewContext(class.Params, args), binds, nil
	}
	return nil, nil, errors.MissingAccessor(e.path, class.Name, "Go binding for "+t.String())
}

func (s *Scanner) resolveNamed(n schema.Named, goType reflect.Type, e *env) (*descriptor.Descriptor, error) {
	class, ok := s.reg.Class(n.Name)
	if !ok {
		return nil, errors.New(errors.PhaseScan, errors.KindUnknownType).
			Path(e.path...).
			Detail("class %q is not declared", n.Name).
			Entry("source class", e.source()).
			Entry("failing class", n.Name).
			Build()
	}
	if len(n.Args) > 0 && len(n.Args) != len(class.Params) {
		return nil, errors.InvalidConfig(e.path, "%s takes %d type arguments, got %d", class.Name, len(class.Params), len(n.Args))
	}
	if len(n.Args) > 0 && !class.Generic() {
		return nil, errors.InvalidConfig(e.path, "%s is not generic", class.Name)
	}

	args := make([]*descriptor.Descriptor, len(n.Args))
	binds := make(map[string]binding, len(n.Args))
	for i, a := range n.Args {
		d, err := s.resolve(a, nil, schema.Options{}, e)
		if err != nil {
			return nil, err
		}
		args[i] = d
		binds[class.Params[i]] = binding{ref: a, env: e}
	}
	var ctx *descriptor.GenericContext
	if class.Generic() {
		ctx = descriptor.NewContext(class.Params, args)
	}

	bound, err := s.boundGo(class, args, e)
	if err != nil && goType == nil {
		return nil, err
	}
	switch {
	case goType == nil:
		goType = bound
	case err != nil:
		return nil, err
	case goType != bound:
		return nil, errors.TypeMismatch(errors.PhaseScan, e.path, goType.String(), bound.String())
	}

	return s.resolveClass(class, ctx, binds, goType, instanceName(class, ctx), e)
}

// boundGo picks the Go representation of a class under resolved arguments.
func (s *Scanner) boundGo(class *schema.Class, args []*descriptor.Descriptor, e *env) (reflect.Type, error) {
	if class.Dynamic() {
		return schema.RecordType, nil
	}
	if !class.Generic() {
		return class.Go, nil
	}
	for _, inst := range class.Instances {
		if len(args) != len(inst.Args) {
			continue
		}
		match := true
		root := &env{path: e.path}
		for i, a := range inst.Args {
			d, err := s.resolve(a, nil, schema.Options{}, root)
			if err != nil {
				return nil, err
			}
			if d != args[i] {
				match = false
				break
			}
		}
		if match {
			return inst.Go, nil
		}
	}
	return nil, errors.MissingAccessor(e.path, class.Name, "Go binding for "+instanceName(class, descriptor.NewContext(class.Params, args)))
}

func instanceName(class *schema.Class, ctx *descriptor.GenericContext) string {
	if ctx.Len() == 0 {
		return class.Name
	}
	parts := make([]string, ctx.Len())
	for i, d := range ctx.Types() {
		if d == nil {
			parts[i] = ctx.Names()[i]
		} else {
			parts[i] = d.String()
		}
	}
	return class.Name + "<" + strings.Join(parts, ", ") + ">"
}

func (s *Scanner) placeholder(goType reflect.Type, reason string, e *env, entries ...errors.Entry) *descriptor.Descriptor {
	if goType == nil {
		goType = anyType
	}
	s.log.Warn("unresolved member lowered to fatal path",
		zap.Strings("path", e.path),
		zap.String("reason", reason))
	return s.tab.Unknown(goType, reason, entries)
}
