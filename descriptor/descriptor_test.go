package descriptor

import (
	"reflect"
	"strings"
	"testing"

	"github.com/wippyai/hyphen/schema"
)

var (
	int32Type  = reflect.TypeOf(int32(0))
	intType    = reflect.TypeOf(0)
	stringType = reflect.TypeOf("")
)

func TestTable_ScalarInterning(t *testing.T) {
	tab := NewTable()
	a := tab.Scalar(schema.KindI32, int32Type)
	b := tab.Scalar(schema.KindI32, int32Type)
	if a != b {
		t.Error("equal scalars should intern to one descriptor")
	}
	c := tab.Scalar(schema.KindI32, intType)
	if a == c {
		t.Error("different Go carriers are different descriptors")
	}
	if tab.Len() != 2 {
		t.Errorf("Len = %d, want 2", tab.Len())
	}
	if a.ID() == c.ID() {
		t.Error("ids must be unique")
	}
}

func TestTable_ArrayInterning(t *testing.T) {
	tab := NewTable()
	elem := tab.Scalar(schema.KindI32, int32Type)
	a := tab.Array(elem, reflect.TypeOf([]int32{}), -1)
	b := tab.Array(elem, reflect.TypeOf([]int32{}), -1)
	if a != b {
		t.Error("equal arrays should intern to one descriptor")
	}
	fixed := tab.Array(elem, reflect.TypeOf([3]int32{}), 3)
	if fixed == a {
		t.Error("fixed and slice arrays differ")
	}
	if a.Name() != "[]i32" || fixed.Name() != "[3]i32" {
		t.Errorf("names = %q, %q", a.Name(), fixed.Name())
	}

	nested := tab.Array(a, reflect.TypeOf([][]int32{}), -1)
	if nested.Dims() != 2 {
		t.Errorf("Dims = %d, want 2", nested.Dims())
	}
	if nested.Elem() != a {
		t.Error("Elem should return inner array")
	}
}

func TestTable_CompositeShell(t *testing.T) {
	tab := NewTable()
	class := &schema.Class{Name: "Node"}
	spec := CompositeSpec{Name: "Node", Class: class, Go: schema.RecordType, Dynamic: true}

	d, fresh := tab.Composite(spec)
	if !fresh {
		t.Fatal("first Composite call should be fresh")
	}
	if d.Complete() {
		t.Error("shell should be incomplete")
	}

	again, fresh := tab.Composite(spec)
	if fresh || again != d {
		t.Error("second Composite call should return the shell")
	}

	self := tab.Pointer(d, schema.RecordType)
	if err := tab.Complete(d, []Field{{Name: "next", Type: self}}, reflect.Value{}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !d.Complete() || len(d.Fields()) != 1 {
		t.Error("composite should be complete with one field")
	}
	if err := tab.Complete(d, nil, reflect.Value{}); err == nil {
		t.Error("second Complete should fail")
	}
	if f, ok := d.Field("next"); !ok || f.Type.Elem() != d {
		t.Error("self reference should resolve to the same descriptor")
	}
}

func TestTable_CompositeGenericsKey(t *testing.T) {
	tab := NewTable()
	class := &schema.Class{Name: "Box", Params: []string{"T"}}
	i32 := tab.Scalar(schema.KindI32, int32Type)
	str := tab.Scalar(schema.KindString, stringType)

	a, _ := tab.Composite(CompositeSpec{Name: "Box<i32>", Class: class, Go: schema.RecordType, Generics: NewContext(class.Params, []*Descriptor{i32})})
	b, _ := tab.Composite(CompositeSpec{Name: "Box<string>", Class: class, Go: schema.RecordType, Generics: NewContext(class.Params, []*Descriptor{str})})
	c, _ := tab.Composite(CompositeSpec{Name: "Box<i32>", Class: class, Go: schema.RecordType, Generics: NewContext(class.Params, []*Descriptor{i32})})

	if a == b {
		t.Error("different bindings are different composites")
	}
	if a != c {
		t.Error("equal bindings should intern to one composite")
	}
}

func TestTable_Annotate(t *testing.T) {
	tab := NewTable()
	base := tab.Scalar(schema.KindString, stringType)

	if tab.Annotate(base, schema.Options{}) != base {
		t.Error("zero options should return base")
	}
	sub := schema.Options{SubclassSet: "animals"}
	if tab.Annotate(base, sub) != base {
		t.Error("subclass options do not annotate")
	}

	n := tab.Annotate(base, schema.Options{Nullable: true})
	if n == base || !n.Annotated() || n.Base() != base {
		t.Error("nullable should wrap base")
	}
	if n != tab.Annotate(base, schema.Options{Nullable: true}) {
		t.Error("equal annotations should intern")
	}
	if n.Kind() != schema.KindString || n.Go() != stringType || n.Shape() != ShapeScalar {
		t.Error("annotated descriptor should read through to base")
	}
	if n.String() != "string [nullable]" {
		t.Errorf("String() = %q", n.String())
	}
	if tab.Annotate(n, schema.Options{Stale: true}).Base() != base {
		t.Error("annotating an annotated descriptor should wrap the plain base")
	}
}

func TestTable_Polymorphic(t *testing.T) {
	tab := NewTable()
	anyType := reflect.TypeOf((*any)(nil)).Elem()
	a := tab.Scalar(schema.KindI32, int32Type)
	b := tab.Scalar(schema.KindString, stringType)

	ab := tab.Polymorphic(anyType, []*Descriptor{a, b})
	ba := tab.Polymorphic(anyType, []*Descriptor{b, a})
	if ab == ba {
		t.Error("candidate order is part of identity")
	}
	if ab != tab.Polymorphic(anyType, []*Descriptor{a, b}) {
		t.Error("equal candidate sets should intern")
	}
	if ab.Name() != "(i32 | string)" {
		t.Errorf("Name = %q", ab.Name())
	}
}

func TestTable_Rollback(t *testing.T) {
	tab := NewTable()
	keep := tab.Scalar(schema.KindI32, int32Type)
	mark := tab.Mark()
	dropped := tab.Scalar(schema.KindString, stringType)
	tab.Rollback(mark)

	if tab.Len() != 1 {
		t.Fatalf("Len = %d, want 1", tab.Len())
	}
	if _, ok := tab.Lookup(dropped.Key()); ok {
		t.Error("rolled back descriptor still interned")
	}
	if got, ok := tab.Lookup(keep.Key()); !ok || got != keep {
		t.Error("descriptor before mark should survive")
	}
	again := tab.Scalar(schema.KindString, stringType)
	if again.ID() == dropped.ID() {
		t.Error("ids should not be reused after rollback")
	}
}

func TestGenericContext(t *testing.T) {
	tab := NewTable()
	i32 := tab.Scalar(schema.KindI32, int32Type)
	ctx := NewContext([]string{"K", "V"}, []*Descriptor{i32})

	if got, ok := ctx.Lookup("K"); !ok || got != i32 {
		t.Error("K should resolve")
	}
	if _, ok := ctx.Lookup("V"); ok {
		t.Error("unbound V should not resolve")
	}
	if _, ok := ctx.Lookup("T"); ok {
		t.Error("undeclared T should not resolve")
	}
	if ctx.String() != "{K=i32, V=?}" {
		t.Errorf("String() = %q", ctx.String())
	}

	var none *GenericContext
	if _, ok := none.Lookup("T"); ok || none.Len() != 0 {
		t.Error("nil context binds nothing")
	}
}

func TestDescribe(t *testing.T) {
	tab := NewTable()
	class := &schema.Class{Name: "Pair"}
	d, _ := tab.Composite(CompositeSpec{Name: "Pair", Class: class, Go: schema.RecordType, Dynamic: true})
	_ = tab.Complete(d, []Field{
		{Name: "a", Type: tab.Scalar(schema.KindI32, int32Type)},
		{Name: "b", Type: tab.Scalar(schema.KindString, stringType)},
	}, reflect.Value{})

	out := Describe(d)
	for _, want := range []string{"Pair (composite", "  a: i32 (scalar, go int32)", "  b: string (scalar"} {
		if !strings.Contains(out, want) {
			t.Errorf("Describe output missing %q:\n%s", want, out)
		}
	}
}
