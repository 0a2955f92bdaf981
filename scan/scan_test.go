package scan

import (
	"reflect"
	"testing"

	"github.com/wippyai/hyphen/descriptor"
	"github.com/wippyai/hyphen/errors"
	"github.com/wippyai/hyphen/schema"
)

type Pair struct {
	B string
	A int32
}

type Box[T any] struct {
	Held T
}

type Animal interface{ Sound() string }

type Cat struct{ Lives int32 }

func (Cat) Sound() string { return "meow" }

type Dog struct{ Name string }

func (*Dog) Sound() string { return "woof" }

type Zoo struct {
	Star Animal   `hyphen:"star,subclasses=animals"`
	All  []Animal `hyphen:"all,subclasses=animals"`
}

type LinkedNode struct {
	Next  *LinkedNode `hyphen:",nullable"`
	Value int32
}

type BadNode struct {
	Next  *BadNode
	Value int32
}

func newScanner(t *testing.T, reg *schema.Registry, opts ...Option) *Scanner {
	t.Helper()
	if reg == nil {
		reg = schema.NewRegistry()
	}
	return New(reg, descriptor.NewTable(), opts...)
}

func isKind(err error, kind errors.Kind) bool {
	var e *errors.Error
	return errors.As(err, &e) && e.Kind == kind
}

func TestScan_Scalars(t *testing.T) {
	s := newScanner(t, nil)
	d, err := s.Scan(schema.Int32, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d.Shape() != descriptor.ShapeScalar || d.Kind() != schema.KindI32 || d.Go() != reflect.TypeOf(int32(0)) {
		t.Errorf("got %v %v %v", d.Shape(), d.Kind(), d.Go())
	}

	fromGo, err := s.Scan(nil, reflect.TypeOf(int32(0)))
	if err != nil {
		t.Fatal(err)
	}
	if fromGo != d {
		t.Error("ref and Go type of the same scalar should be one descriptor")
	}
}

func TestScan_Memoized(t *testing.T) {
	s := newScanner(t, nil)
	a, _ := s.Scan(schema.Of[Pair](), nil)
	b, _ := s.Scan(schema.Of[Pair](), nil)
	if a != b {
		t.Error("repeated scan should return the same descriptor")
	}
	if st := s.Stats(); st.Lookups != 2 || st.Hits != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestScan_DerivedStruct(t *testing.T) {
	s := newScanner(t, nil)
	d, err := s.Scan(schema.Of[Pair](), nil)
	if err != nil {
		t.Fatal(err)
	}
	if d.Shape() != descriptor.ShapeComposite || d.Dynamic() {
		t.Fatalf("shape = %v dynamic = %v", d.Shape(), d.Dynamic())
	}
	fields := d.Fields()
	if len(fields) != 2 || fields[0].Name != "B" || fields[1].Name != "A" {
		t.Fatalf("fields = %+v", fields)
	}
	if fields[1].Type.Kind() != schema.KindI32 {
		t.Errorf("A kind = %v", fields[1].Type.Kind())
	}
}

func TestScan_DeclaredDynamicPair(t *testing.T) {
	reg := schema.NewRegistry()
	reg.MustDeclare(&schema.Class{Name: "Pair", Fields: []schema.Field{
		{Name: "a", Type: schema.Int32},
		{Name: "b", Type: schema.String},
	}})
	s := newScanner(t, reg)

	d, err := s.Scan(schema.Ref("Pair"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Dynamic() || d.Go() != schema.RecordType {
		t.Errorf("dynamic Pair should be carried by *Record, got %v", d.Go())
	}
	if f, _ := d.Field("b"); f.Type.Kind() != schema.KindString || f.Index != nil {
		t.Errorf("b = %+v", f)
	}
}

func TestScan_GenericResolvesToScalar(t *testing.T) {
	reg := schema.NewRegistry()
	reg.MustDeclare(&schema.Class{
		Name:   "Box",
		Params: []string{"T"},
		Fields: []schema.Field{{Name: "held", Type: schema.Var{Name: "T"}}},
	})
	s := newScanner(t, reg)

	box, err := s.Scan(schema.Ref("Box", schema.Int32), nil)
	if err != nil {
		t.Fatal(err)
	}
	integer, err := s.Scan(schema.Int32, nil)
	if err != nil {
		t.Fatal(err)
	}

	held, ok := box.Field("held")
	if !ok {
		t.Fatal("held missing")
	}
	if held.Type != integer {
		t.Errorf("Box<i32>.held = %v, want the i32 descriptor", held.Type)
	}
	if got, _ := box.Generics().Lookup("T"); got != integer {
		t.Error("generic context should bind T to i32")
	}
	if box.Name() != "Box<i32>" {
		t.Errorf("Name = %q", box.Name())
	}

	str, _ := s.Scan(schema.Ref("Box", schema.String), nil)
	if str == box {
		t.Error("Box<string> and Box<i32> are different descriptors")
	}
}

func TestScan_GoBoundGeneric(t *testing.T) {
	reg := schema.NewRegistry()
	reg.MustDeclare(&schema.Class{
		Name:   "Box",
		Params: []string{"T"},
		Fields: []schema.Field{{Name: "held", Type: schema.Var{Name: "T"}}},
		Instances: []schema.Instance{
			{Args: []schema.TypeRef{schema.Int32}, Go: reflect.TypeOf(Box[int32]{})},
			{Args: []schema.TypeRef{schema.String}, Go: reflect.TypeOf(Box[string]{})},
		},
	})
	s := newScanner(t, reg)

	d, err := s.Scan(schema.Ref("Box", schema.Int32), nil)
	if err != nil {
		t.Fatal(err)
	}
	if d.Go() != reflect.TypeOf(Box[int32]{}) {
		t.Errorf("Go = %v", d.Go())
	}
	viaGo, err := s.Scan(schema.Of[Box[int32]](), nil)
	if err != nil {
		t.Fatal(err)
	}
	if viaGo != d {
		t.Error("Go instance type should resolve to the same descriptor")
	}

	_, err = s.Scan(schema.Ref("Box", schema.Float64), nil)
	if !isKind(err, errors.KindMissingAccessor) {
		t.Errorf("unbound instance: got %v, want missing_accessor", err)
	}
}

func TestScan_UnknownTypeVariable(t *testing.T) {
	reg := schema.NewRegistry()
	reg.MustDeclare(&schema.Class{
		Name:   "Holder",
		Fields: []schema.Field{{Name: "value", Type: schema.Var{Name: "T"}}},
	})
	s := newScanner(t, reg)

	_, err := s.Scan(schema.Ref("Holder"), nil)
	if err == nil {
		t.Fatal("expected UnknownType")
	}
	var e *errors.Error
	if !errors.As(err, &e) || e.Kind != errors.KindUnknownType {
		t.Fatalf("got %v", err)
	}
	if v, _ := e.Lookup("type variable"); v != "T" {
		t.Errorf("type variable = %v", v)
	}
	if v, _ := e.Lookup("source class"); v != "Holder" {
		t.Errorf("source class = %v", v)
	}
	if len(e.Path) != 2 || e.Path[0] != "Holder" || e.Path[1] != "value" {
		t.Errorf("Path = %v", e.Path)
	}
	if !errors.IsScanError(err) {
		t.Error("UnknownType is a scan error")
	}
}

func TestScan_VariableNotInheritedFromOuterContext(t *testing.T) {
	reg := schema.NewRegistry()
	reg.MustDeclare(&schema.Class{
		Name:   "Inner",
		Fields: []schema.Field{{Name: "x", Type: schema.Var{Name: "T"}}},
	})
	reg.MustDeclare(&schema.Class{
		Name:   "Outer",
		Params: []string{"T"},
		Fields: []schema.Field{{Name: "inner", Type: schema.Ref("Inner")}},
	})
	s := newScanner(t, reg)

	_, err := s.Scan(schema.Ref("Outer", schema.Int32), nil)
	if !isKind(err, errors.KindUnknownType) {
		t.Fatalf("got %v, want unknown_type", err)
	}
}

func TestScan_LenientPlaceholder(t *testing.T) {
	reg := schema.NewRegistry()
	reg.MustDeclare(&schema.Class{
		Name:   "Holder",
		Fields: []schema.Field{{Name: "value", Type: schema.Var{Name: "T"}}},
	})
	s := newScanner(t, reg, WithLenient(true))

	d, err := s.Scan(schema.Ref("Holder"), nil)
	if err != nil {
		t.Fatalf("lenient scan failed: %v", err)
	}
	f, _ := d.Field("value")
	if f.Type.Shape() != descriptor.ShapeUnknown {
		t.Fatalf("value shape = %v", f.Type.Shape())
	}
	if len(f.Type.Entries()) != 3 {
		t.Errorf("entries = %v", f.Type.Entries())
	}
}

func TestScan_Polymorphic(t *testing.T) {
	reg := schema.NewRegistry()
	if err := reg.DefineSubclasses("animals", schema.Of[Cat](), schema.Of[Dog]()); err != nil {
		t.Fatal(err)
	}
	s := newScanner(t, reg)

	d, err := s.Scan(schema.Of[Zoo](), nil)
	if err != nil {
		t.Fatal(err)
	}
	star, _ := d.Field("star")
	if star.Type.Shape() != descriptor.ShapePolymorphic {
		t.Fatalf("star shape = %v", star.Type.Shape())
	}
	cands := star.Type.Candidates()
	if len(cands) != 2 {
		t.Fatalf("candidates = %d", len(cands))
	}
	if cands[0].Go() != reflect.TypeOf(Cat{}) {
		t.Errorf("candidate 0 = %v", cands[0].Go())
	}
	if cands[1].Shape() != descriptor.ShapePointer || cands[1].Go() != reflect.TypeOf(&Dog{}) {
		t.Errorf("candidate 1 should be *Dog, got %v", cands[1].Go())
	}

	all, _ := d.Field("all")
	if all.Type.Shape() != descriptor.ShapeArray || all.Type.Elem() != star.Type {
		t.Error("subclass set on a slice applies to its elements")
	}
}

func TestScan_AmbiguousSubclass(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *schema.Registry)
		cands []schema.TypeRef
	}{
		{
			name:  "duplicate",
			cands: []schema.TypeRef{schema.Of[Cat](), schema.Of[Cat]()},
		},
		{
			name: "same dynamic class",
			setup: func(r *schema.Registry) {
				r.MustDeclare(&schema.Class{Name: "Box", Params: []string{"T"}, Fields: []schema.Field{{Name: "v", Type: schema.Var{Name: "T"}}}})
			},
			cands: []schema.TypeRef{schema.Ref("Box", schema.Int32), schema.Ref("Box", schema.String)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := schema.NewRegistry()
			if tt.setup != nil {
				tt.setup(reg)
			}
			reg.MustDeclare(&schema.Class{Name: "Holder", Fields: []schema.Field{
				{Name: "pet", Options: schema.Options{Subclasses: tt.cands}},
			}})
			s := newScanner(t, reg)
			_, err := s.Scan(schema.Ref("Holder"), nil)
			if !isKind(err, errors.KindAmbiguousSubclass) {
				t.Errorf("got %v, want ambiguous_subclass", err)
			}
		})
	}
}

func TestScan_DistinctDynamicCandidates(t *testing.T) {
	reg := schema.NewRegistry()
	reg.MustDeclare(&schema.Class{Name: "Cat", Fields: []schema.Field{{Name: "lives", Type: schema.Int32}}})
	reg.MustDeclare(&schema.Class{Name: "Dog", Fields: []schema.Field{{Name: "name", Type: schema.String}}})
	reg.MustDeclare(&schema.Class{Name: "Zoo", Fields: []schema.Field{
		{Name: "pet", Options: schema.Options{Subclasses: []schema.TypeRef{schema.Ref("Cat"), schema.Ref("Dog")}}},
	}})
	s := newScanner(t, reg)

	d, err := s.Scan(schema.Ref("Zoo"), nil)
	if err != nil {
		t.Fatal(err)
	}
	pet, _ := d.Field("pet")
	if len(pet.Type.Candidates()) != 2 {
		t.Error("dynamic classes with different names are distinguishable")
	}
}

func TestScan_Recursion(t *testing.T) {
	s := newScanner(t, nil)
	d, err := s.Scan(schema.Of[LinkedNode](), nil)
	if err != nil {
		t.Fatalf("nullable self reference: %v", err)
	}
	next, _ := d.Field("Next")
	if next.Type.Elem() != d {
		t.Error("self reference should resolve to the enclosing descriptor")
	}

	_, err = s.Scan(schema.Of[BadNode](), nil)
	if !isKind(err, errors.KindRecursiveType) {
		t.Errorf("got %v, want recursive_type", err)
	}
}

func TestScan_DynamicRecursion(t *testing.T) {
	reg := schema.NewRegistry()
	reg.MustDeclare(&schema.Class{Name: "Tree", Fields: []schema.Field{
		{Name: "children", Type: schema.Array{Elem: schema.Ref("Tree")}},
	}})
	reg.MustDeclare(&schema.Class{Name: "Loop", Fields: []schema.Field{
		{Name: "self", Type: schema.Ref("Loop")},
	}})
	s := newScanner(t, reg)

	if _, err := s.Scan(schema.Ref("Tree"), nil); err != nil {
		t.Errorf("array step terminates recursion: %v", err)
	}
	if _, err := s.Scan(schema.Ref("Loop"), nil); !isKind(err, errors.KindRecursiveType) {
		t.Errorf("got %v, want recursive_type", err)
	}
}

func TestScan_FailureRollsBack(t *testing.T) {
	reg := schema.NewRegistry()
	reg.MustDeclare(&schema.Class{Name: "Broken", Fields: []schema.Field{
		{Name: "ok", Type: schema.Ref("Fine")},
		{Name: "bad", Type: schema.Var{Name: "X"}},
	}})
	reg.MustDeclare(&schema.Class{Name: "Fine", Fields: []schema.Field{{Name: "v", Type: schema.Int64}}})
	tab := descriptor.NewTable()
	s := New(reg, tab)

	if _, err := s.Scan(schema.Ref("Broken"), nil); err == nil {
		t.Fatal("expected failure")
	}
	if tab.Len() != 0 {
		t.Errorf("table holds %d descriptors after failed scan", tab.Len())
	}
	if _, err := s.Scan(schema.Ref("Fine"), nil); err != nil {
		t.Errorf("unrelated scan after failure: %v", err)
	}
}

type withCtor struct {
	a int32
	b string
}

func TestScan_Constructor(t *testing.T) {
	fields := []schema.Field{{Name: "a", Type: schema.Int32}, {Name: "b", Type: schema.String}}

	tests := []struct {
		ctor any
		name string
		ok   bool
	}{
		{func(a int32, b string) withCtor { return withCtor{a, b} }, "value", true},
		{func(a int32, b string) (*withCtor, error) { return &withCtor{a, b}, nil }, "pointer and error", true},
		{func(a int32) withCtor { return withCtor{a: a} }, "arity", false},
		{func(a []byte, b string) withCtor { return withCtor{} }, "param type", false},
		{func(a int32, b string) int { return 0 }, "result type", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := schema.NewRegistry()
			reg.MustDeclare(&schema.Class{Name: "C", Go: reflect.TypeOf(withCtor{}), Fields: fields, Constructor: tt.ctor})
			_, err := newScanner(t, reg).Scan(schema.Ref("C"), nil)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !isKind(err, errors.KindMissingAccessor) {
				t.Errorf("got %v, want missing_accessor", err)
			}
		})
	}
}

func TestScan_UnexportedWithoutConstructor(t *testing.T) {
	reg := schema.NewRegistry()
	reg.MustDeclare(&schema.Class{Name: "C", Go: reflect.TypeOf(withCtor{}), Fields: []schema.Field{{Name: "a", Type: schema.Int32}}})
	_, err := newScanner(t, reg).Scan(schema.Ref("C"), nil)
	if !isKind(err, errors.KindMissingAccessor) {
		t.Errorf("got %v, want missing_accessor", err)
	}
}

func TestScan_MissingField(t *testing.T) {
	reg := schema.NewRegistry()
	reg.MustDeclare(&schema.Class{Name: "P", Go: reflect.TypeOf(Pair{}), Fields: []schema.Field{
		{Name: "a", Type: schema.Int32},
		{Name: "c", Type: schema.Int32},
	}})
	_, err := newScanner(t, reg).Scan(schema.Ref("P"), nil)
	var e *errors.Error
	if !errors.As(err, &e) || e.Kind != errors.KindMissingAccessor {
		t.Fatalf("got %v", err)
	}
	if v, _ := e.Lookup("member"); v != "c" {
		t.Errorf("member = %v", v)
	}
}

func TestScan_ConfigErrors(t *testing.T) {
	type nullableInt struct {
		X int32 `hyphen:",nullable"`
	}
	type unknownSet struct {
		X Animal `hyphen:",subclasses=nope"`
	}
	type subclassNotInterface struct {
		X int32 `hyphen:",subclasses=animals"`
	}
	type unknownCodec struct {
		X int32 `hyphen:",codec=missing"`
	}

	reg := schema.NewRegistry()
	_ = reg.DefineSubclasses("animals", schema.Of[Cat]())

	for _, typ := range []reflect.Type{
		reflect.TypeOf(nullableInt{}),
		reflect.TypeOf(unknownSet{}),
		reflect.TypeOf(subclassNotInterface{}),
		reflect.TypeOf(unknownCodec{}),
	} {
		t.Run(typ.Name(), func(t *testing.T) {
			_, err := newScanner(t, reg).Scan(nil, typ)
			if !errors.IsConfigError(err) {
				t.Errorf("got %v, want config error", err)
			}
		})
	}
}

func TestScan_DynamicNullableScalarBecomesPointer(t *testing.T) {
	reg := schema.NewRegistry()
	reg.MustDeclare(&schema.Class{Name: "Opt", Fields: []schema.Field{
		{Name: "n", Type: schema.Int32, Options: schema.Options{Nullable: true}},
	}})
	d, err := newScanner(t, reg).Scan(schema.Ref("Opt"), nil)
	if err != nil {
		t.Fatal(err)
	}
	f, _ := d.Field("n")
	if !f.Type.Options().Nullable || f.Type.Shape() != descriptor.ShapePointer {
		t.Errorf("n = %v (%v)", f.Type, f.Type.Shape())
	}
}

func TestScan_UnsupportedGoKinds(t *testing.T) {
	s := newScanner(t, nil)
	for _, typ := range []reflect.Type{
		reflect.TypeOf(map[string]int{}),
		reflect.TypeOf(make(chan int)),
		reflect.TypeOf((*Animal)(nil)).Elem(),
	} {
		if _, err := s.Scan(nil, typ); !isKind(err, errors.KindUnsupported) {
			t.Errorf("%v: got %v, want unsupported", typ, err)
		}
	}
}

type Cached struct {
	Hits  map[string]int `hyphen:",stale"`
	Hook  func()         `hyphen:",stale"`
	Extra any            `hyphen:",stale"`
	Value int32
}

func TestScan_StaleSkipsShape(t *testing.T) {
	s := newScanner(t, nil)
	d, err := s.Scan(schema.Of[Cached](), nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	for _, name := range []string{"Hits", "Hook", "Extra"} {
		f, ok := d.Field(name)
		if !ok {
			t.Fatalf("missing field %s", name)
		}
		if !f.Type.Options().Stale {
			t.Errorf("%s options = %v", name, f.Type.Options())
		}
		want, _ := reflect.TypeOf(Cached{}).FieldByName(name)
		if f.Type.Go() != want.Type {
			t.Errorf("%s go type = %v, want %v", name, f.Type.Go(), want.Type)
		}
	}

	reg := schema.NewRegistry()
	reg.MustDeclare(&schema.Class{Name: "Note", Fields: []schema.Field{
		{Name: "text", Type: schema.String},
		{Name: "cache", Type: schema.Ref("Missing"), Options: schema.Options{Stale: true}},
		{Name: "held", Type: schema.Var{Name: "T"}, Options: schema.Options{Stale: true}},
		{Name: "count", Type: schema.Int32, Options: schema.Options{Stale: true}},
	}})
	d, err = newScanner(t, reg).Scan(schema.Ref("Note"), nil)
	if err != nil {
		t.Fatalf("dynamic scan: %v", err)
	}
	tests := []struct {
		field string
		want  reflect.Type
	}{
		{"cache", reflect.TypeOf((*any)(nil)).Elem()},
		{"held", reflect.TypeOf((*any)(nil)).Elem()},
		{"count", reflect.TypeOf(int32(0))},
	}
	for _, tt := range tests {
		f, _ := d.Field(tt.field)
		if f.Type.Go() != tt.want {
			t.Errorf("%s go type = %v, want %v", tt.field, f.Type.Go(), tt.want)
		}
	}
}
