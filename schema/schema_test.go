package schema

import (
	"reflect"
	"testing"

	"github.com/wippyai/hyphen/errors"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		value any
		want  Kind
	}{
		{true, KindBool},
		{int8(0), KindI8},
		{uint16(0), KindU16},
		{int32(0), KindI32},
		{int(0), KindI64},
		{uint(0), KindU64},
		{float32(0), KindF32},
		{"", KindString},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			got, ok := KindOf(reflect.TypeOf(tt.value))
			if !ok || got != tt.want {
				t.Errorf("KindOf(%T) = %v, %v, want %v", tt.value, got, ok, tt.want)
			}
		})
	}

	if _, ok := KindOf(reflect.TypeOf(complex64(0))); ok {
		t.Error("complex64 has no wire kind")
	}
}

func TestKind_SizeAndNames(t *testing.T) {
	if KindI32.Size() != 4 || KindF64.Size() != 8 || KindBool.Size() != 1 {
		t.Error("unexpected fixed sizes")
	}
	if KindString.IsFixed() || KindString.Size() != 0 {
		t.Error("string is variable width")
	}
	if k, ok := ParseKind("u16"); !ok || k != KindU16 {
		t.Errorf("ParseKind(u16) = %v, %v", k, ok)
	}
	if Kind(200).String() != "unknown" {
		t.Error("out of range kind should render unknown")
	}
}

func TestKind_Accepts(t *testing.T) {
	if !KindI32.Accepts(reflect.TypeOf(int(0))) {
		t.Error("i32 should accept Go int")
	}
	if KindI32.Accepts(reflect.TypeOf("")) {
		t.Error("i32 should not accept string")
	}
	if !KindF32.Accepts(reflect.TypeOf(float64(0))) {
		t.Error("f32 should accept float64")
	}
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		want   TypeRef
		expr   string
		params []string
	}{
		{Int32, "i32", nil},
		{Named{Name: "Pair"}, "Pair", nil},
		{Array{Elem: Int32}, "[]i32", nil},
		{Array{Elem: Array{Elem: String}}, "[][]string", nil},
		{Named{Name: "Box", Args: []TypeRef{Int32}}, "Box<i32>", nil},
		{Named{Name: "Map", Args: []TypeRef{String, Array{Elem: Var{Name: "V"}}}}, "Map<string, []V>", []string{"V"}},
		{Var{Name: "T"}, "T", []string{"T"}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParseRef(tt.expr, tt.params...)
			if err != nil {
				t.Fatalf("ParseRef: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseRef(%q) = %#v, want %#v", tt.expr, got, tt.want)
			}
			if got.String() != tt.want.String() {
				t.Errorf("String() = %q", got.String())
			}
		})
	}
}

func TestParseRef_Errors(t *testing.T) {
	for _, expr := range []string{"", "Box<", "Box<i32", "Box<i32;", "[]", "Pair extra"} {
		t.Run(expr, func(t *testing.T) {
			if _, err := ParseRef(expr); err == nil {
				t.Errorf("ParseRef(%q) should fail", expr)
			}
		})
	}
}

func TestParseTag(t *testing.T) {
	tests := []struct {
		name string
		tag  string
		want Tag
	}{
		{"empty", "", Tag{}},
		{"skip", "-", Tag{Skip: true}},
		{"rename", "id", Tag{Name: "id"}},
		{"nullable", "nullable", Tag{Options: Options{Nullable: true}}},
		{"rename and options", "pet,nullable,subclasses=animals", Tag{Name: "pet", Options: Options{Nullable: true, SubclassSet: "animals"}}},
		{"empty name", ",stale", Tag{Options: Options{Stale: true}}},
		{"codec", "codec=epoch", Tag{Options: Options{Codec: "epoch"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTag(tt.tag, nil)
			if err != nil {
				t.Fatalf("ParseTag: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseTag(%q) = %+v, want %+v", tt.tag, got, tt.want)
			}
		})
	}
}

func TestParseTag_ConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		tag  string
	}{
		{"unknown key", "nullable,compact"},
		{"repeated", "nullable,nullable"},
		{"stale and nullable", "stale,nullable"},
		{"stale and codec", "stale,codec=x"},
		{"codec and subclasses", "codec=x,subclasses=y"},
		{"empty set", "subclasses="},
		{"valued flag", "nullable=yes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTag(tt.tag, []string{"T", "f"})
			if err == nil {
				t.Fatalf("ParseTag(%q) should fail", tt.tag)
			}
			if !errors.IsConfigError(err) {
				t.Errorf("expected config error, got %v", err)
			}
		})
	}
}

type derivable struct {
	ID      int32  `hyphen:"id"`
	Name    string `hyphen:",nullable"`
	Skipped string `hyphen:"-"`
	hidden  int
	Tags    []string
}

func TestDerive(t *testing.T) {
	c, err := Derive(reflect.TypeOf(derivable{}))
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	var names []string
	for _, f := range c.Fields {
		names = append(names, f.Name)
	}
	if !reflect.DeepEqual(names, []string{"id", "Name", "Tags"}) {
		t.Errorf("fields = %v", names)
	}
	if !c.Fields[1].Options.Nullable {
		t.Error("Name should be nullable")
	}
	if c.Fields[0].GoName != "ID" {
		t.Errorf("GoName = %q", c.Fields[0].GoName)
	}
	if !c.Derived || c.Go != reflect.TypeOf(derivable{}) {
		t.Error("derived class should bind its Go type")
	}
	_ = derivable{}.hidden
}

func TestRegistry_Declare(t *testing.T) {
	r := NewRegistry()
	pair := &Class{Name: "Pair", Fields: []Field{{Name: "a", Type: Int32}, {Name: "b", Type: String}}}
	if err := r.Declare(pair); err != nil {
		t.Fatalf("Declare: %v", err)
	}
	if got, ok := r.Class("Pair"); !ok || got != pair {
		t.Error("Class lookup failed")
	}
	if !pair.Dynamic() {
		t.Error("class without Go binding is dynamic")
	}

	bad := []*Class{
		{Name: "Pair"},
		{Name: ""},
		{Name: "Dup", Fields: []Field{{Name: "x", Type: Int32}, {Name: "x", Type: Int32}}},
		{Name: "Params", Params: []string{"T", "T"}},
		{Name: "Untyped", Fields: []Field{{Name: "x"}}},
		{Name: "GoGeneric", Params: []string{"T"}, Go: reflect.TypeOf(derivable{})},
		{Name: "NotStruct", Go: reflect.TypeOf(0)},
		{Name: "Arity", Params: []string{"T"}, Instances: []Instance{{Go: reflect.TypeOf(struct{ X int32 }{})}}},
		{Name: "Ctor", Fields: []Field{{Name: "x", Type: Int32}}, Constructor: func(int32) {}},
		{Name: "Stale", Fields: []Field{{Name: "x", Type: Int32, Options: Options{Stale: true, Nullable: true}}}},
	}
	for _, c := range bad {
		t.Run("reject "+c.Name, func(t *testing.T) {
			if err := r.Declare(c); err == nil {
				t.Errorf("Declare(%q) should fail", c.Name)
			}
		})
	}
}

func TestRegistry_ClassOf(t *testing.T) {
	r := NewRegistry()
	typ := reflect.TypeOf(derivable{})

	first, err := r.ClassOf(typ)
	if err != nil {
		t.Fatal(err)
	}
	second, _ := r.ClassOf(typ)
	if first != second {
		t.Error("derived classes should be cached")
	}

	bound := &Class{Name: "Bound", Go: reflect.TypeOf(struct{ X int32 }{})}
	r.MustDeclare(bound)
	got, err := r.ClassOf(bound.Go)
	if err != nil || got != bound {
		t.Errorf("ClassOf should return declared binding, got %v, %v", got, err)
	}
}

func TestRegistry_SubclassesAndCodecs(t *testing.T) {
	r := NewRegistry()
	if err := r.DefineSubclasses("animals", Named{Name: "Cat"}, Named{Name: "Dog"}); err != nil {
		t.Fatal(err)
	}
	refs, ok := r.Subclasses("animals")
	if !ok || len(refs) != 2 || refs[1].String() != "Dog" {
		t.Errorf("Subclasses = %v, %v", refs, ok)
	}
	if err := r.DefineSubclasses("empty"); err == nil {
		t.Error("empty set should fail")
	}
	if err := r.DefineSubclasses("animals", Int32); err == nil {
		t.Error("duplicate set should fail")
	}
	if err := r.RegisterCodec("x", nil); err == nil {
		t.Error("nil codec should fail")
	}
}

func TestRecord(t *testing.T) {
	rec := NewRecord("Pair", "a", int32(5), "b", "hi")
	if rec.Get("a") != int32(5) || rec.Get("b") != "hi" {
		t.Errorf("record = %+v", rec)
	}
	rec.Set("a", int32(6))
	if rec.Get("a") != int32(6) {
		t.Error("Set did not overwrite")
	}
	var nilRec *Record
	if nilRec.Get("a") != nil {
		t.Error("nil record Get should return nil")
	}
}

func TestOptions_String(t *testing.T) {
	o := Options{Nullable: true, Subclasses: []TypeRef{Named{Name: "Cat"}, Named{Name: "Dog"}}}
	if got := o.String(); got != "nullable,subclasses=[Cat|Dog]" {
		t.Errorf("String() = %q", got)
	}
	if !(Options{}).IsZero() || o.IsZero() {
		t.Error("IsZero mismatch")
	}
}
