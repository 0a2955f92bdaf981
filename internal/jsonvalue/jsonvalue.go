// Package jsonvalue converts between JSON documents and values of the Go
// type a descriptor carries.
//
// Composites are objects keyed by member name in declared order; stale
// members are omitted. Nullable members map absence to null. A
// polymorphic value is an object whose "$type" key names the candidate;
// composite candidates carry their members inline, any other candidate
// carries its value under "$value".
package jsonvalue

import (
	"bytes"
	"io"
	"reflect"
	"slices"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/wippyai/hyphen/descriptor"
	"github.com/wippyai/hyphen/errors"
	"github.com/wippyai/hyphen/schema"
)

const (
	typeKey  = "$type"
	valueKey = "$value"
)

var anyType = reflect.TypeOf((*any)(nil)).Elem()

// Decode parses data into a value of d's Go type.
func Decode(d *descriptor.Descriptor, data []byte) (reflect.Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return reflect.Value{}, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "parse JSON")
	}
	var extra any
	if err := dec.Decode(&extra); err != io.EOF {
		return reflect.Value{}, errors.InvalidData(errors.PhaseDecode, nil, "trailing data after JSON value")
	}
	return fromJSON(d, doc, []string{d.Name()})
}

// Encode renders v, a value of d's Go type, as compact JSON.
func Encode(d *descriptor.Descriptor, v reflect.Value) ([]byte, error) {
	doc, err := toJSON(d, v, []string{d.Name()})
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEncode, errors.KindInvalidData, err, "render JSON")
	}
	return out, nil
}

// object is a JSON object that keeps member order.
type object []member

type member struct {
	value any
	key   string
}

func (o object) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(m.key)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		val, err := json.Marshal(m.value)
		if err != nil {
			return nil, err
		}
		b.Write(val)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// Indent re-indents JSON produced by Encode.
func Indent(data []byte) ([]byte, error) {
	var b bytes.Buffer
	if err := json.Indent(&b, data, "", "  "); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func goTypeOf(d *descriptor.Descriptor) reflect.Type {
	if t := d.Go(); t != nil {
		return t
	}
	if d.Shape() == descriptor.ShapeScalar {
		return d.Kind().GoType()
	}
	return anyType
}

func fromJSON(d *descriptor.Descriptor, x any, path []string) (reflect.Value, error) {
	t := goTypeOf(d)
	if d.Options().Stale {
		return reflect.Zero(t), nil
	}
	if x == nil {
		if d.Options().Nullable || nilable(t) && d.Shape() != descriptor.ShapePointer {
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, errors.NilPointer(errors.PhaseDecode, path, t.String())
	}

	switch d.Shape() {
	case descriptor.ShapeScalar:
		return scalarFrom(d.Kind(), t, x, path)
	case descriptor.ShapeArray:
		return arrayFrom(d, t, x, path)
	case descriptor.ShapePointer:
		inner, err := fromJSON(d.Elem(), x, path)
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(inner)
		return p, nil
	case descriptor.ShapeComposite:
		obj, ok := x.(map[string]any)
		if !ok {
			return reflect.Value{}, mismatch(path, x, "object")
		}
		return compositeFrom(d, t, obj, path, false)
	case descriptor.ShapePolymorphic:
		return variantFrom(d, t, x, path)
	}
	return reflect.Value{}, errors.New(errors.PhaseDecode, errors.KindFatalPlaceholder).
		Path(path...).
		Detail("%s", d.Reason()).
		Build()
}

func arrayFrom(d *descriptor.Descriptor, t reflect.Type, x any, path []string) (reflect.Value, error) {
	items, ok := x.([]any)
	if !ok {
		return reflect.Value{}, mismatch(path, x, "array")
	}
	epath := append(slices.Clip(path), "[]")

	var out reflect.Value
	if t.Kind() == reflect.Array {
		if len(items) != t.Len() {
			return reflect.Value{}, errors.New(errors.PhaseDecode, errors.KindInvalidData).
				Path(path...).
				Value(len(items)).
				Detail("fixed array of %d elements got %d", t.Len(), len(items)).
				Build()
		}
		out = reflect.New(t).Elem()
	} else {
		out = reflect.MakeSlice(t, len(items), len(items))
	}
	for i, item := range items {
		ev, err := fromJSON(d.Elem(), item, epath)
		if err != nil {
			return reflect.Value{}, err
		}
		out.Index(i).Set(ev)
	}
	return out, nil
}

// compositeFrom builds a struct or record from obj. tagged skips the
// "$type" key of an inline polymorphic candidate.
func compositeFrom(d *descriptor.Descriptor, t reflect.Type, obj map[string]any, path []string, tagged bool) (reflect.Value, error) {
	fields := d.Fields()
	for key := range obj {
		if tagged && key == typeKey {
			continue
		}
		if _, ok := d.Field(key); !ok {
			return reflect.Value{}, errors.New(errors.PhaseDecode, errors.KindInvalidData).
				Path(path...).
				Detail("unknown member %q", key).
				Build()
		}
	}

	if d.Dynamic() {
		rec := &schema.Record{Type: d.Class().Name, Fields: make(map[string]any, len(fields))}
		for _, f := range fields {
			v, err := memberFrom(f, obj, path)
			if err != nil {
				return reflect.Value{}, err
			}
			if isNil(v) && v.Kind() != reflect.Slice {
				rec.Fields[f.Name] = nil
				continue
			}
			rec.Fields[f.Name] = v.Interface()
		}
		return reflect.ValueOf(rec), nil
	}

	out := reflect.New(t).Elem()
	for _, f := range fields {
		v, err := memberFrom(f, obj, path)
		if err != nil {
			return reflect.Value{}, err
		}
		out.FieldByIndex(f.Index).Set(v)
	}
	return out, nil
}

// memberFrom decodes one member. An absent key yields the zero value; an
// explicit null is checked against the member's nullability.
func memberFrom(f descriptor.Field, obj map[string]any, path []string) (reflect.Value, error) {
	x, ok := obj[f.Name]
	if !ok {
		return reflect.Zero(goTypeOf(f.Type)), nil
	}
	return fromJSON(f.Type, x, append(slices.Clip(path), f.Name))
}

func variantFrom(d *descriptor.Descriptor, t reflect.Type, x any, path []string) (reflect.Value, error) {
	obj, ok := x.(map[string]any)
	if !ok {
		return reflect.Value{}, mismatch(path, x, "object with "+typeKey)
	}
	name, ok := obj[typeKey].(string)
	if !ok {
		return reflect.Value{}, errors.InvalidData(errors.PhaseDecode, path, "polymorphic value needs a string "+typeKey)
	}

	cands := d.Candidates()
	names := make([]string, len(cands))
	for i, c := range cands {
		names[i] = candidateName(c)
		if !nameMatches(names[i], name) {
			continue
		}
		cpath := append(slices.Clip(path), names[i])

		var v reflect.Value
		var err error
		if body := compositeOf(c); body != nil {
			v, err = compositeFrom(body, goTypeOf(body), obj, cpath, true)
			if err == nil && c.Shape() == descriptor.ShapePointer {
				p := reflect.New(goTypeOf(body))
				p.Elem().Set(v)
				v = p
			}
		} else {
			if len(obj) != 2 {
				return reflect.Value{}, errors.InvalidData(errors.PhaseDecode, cpath, "non-composite candidate takes only "+typeKey+" and "+valueKey)
			}
			v, err = fromJSON(c, obj[valueKey], cpath)
		}
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(t).Elem()
		out.Set(v)
		return out, nil
	}
	return reflect.Value{}, errors.UnmatchedSubclass(path, name, names)
}

// toJSON builds the document tree go-json renders for v.
func toJSON(d *descriptor.Descriptor, v reflect.Value, path []string) (any, error) {
	if v.IsValid() && v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if d.Options().Nullable && isNil(v) {
		return nil, nil
	}

	switch d.Shape() {
	case descriptor.ShapeScalar:
		return scalarTo(d.Kind(), v, path)
	case descriptor.ShapeArray:
		if v.IsValid() && v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
			return nil, errors.TypeMismatch(errors.PhaseEncode, path, v.Type().String(), "array")
		}
		epath := append(slices.Clip(path), "[]")
		items := make([]any, length(v))
		for i := range items {
			x, err := toJSON(d.Elem(), v.Index(i), epath)
			if err != nil {
				return nil, err
			}
			items[i] = x
		}
		return items, nil
	case descriptor.ShapePointer:
		if isNil(v) {
			return nil, errors.NilPointer(errors.PhaseEncode, path, goTypeOf(d).String())
		}
		return toJSON(d.Elem(), v.Elem(), path)
	case descriptor.ShapeComposite:
		return membersTo(nil, d, v, path)
	case descriptor.ShapePolymorphic:
		return variantTo(d, v, path)
	}

	if isNil(v) || v.IsZero() {
		return nil, nil
	}
	return nil, errors.New(errors.PhaseEncode, errors.KindFatalPlaceholder).
		Path(path...).
		Detail("%s", d.Reason()).
		Build()
}

// membersTo appends the members of composite v to obj.
func membersTo(obj object, d *descriptor.Descriptor, v reflect.Value, path []string) (object, error) {
	if isNil(v) {
		return nil, errors.NilPointer(errors.PhaseEncode, path, goTypeOf(d).String())
	}
	var rec *schema.Record
	if d.Dynamic() {
		r, ok := v.Interface().(*schema.Record)
		if !ok {
			return nil, errors.TypeMismatch(errors.PhaseEncode, path, v.Type().String(), "*schema.Record")
		}
		rec = r
	}
	if obj == nil {
		obj = make(object, 0, len(d.Fields()))
	}
	for _, f := range d.Fields() {
		if f.Type.Options().Stale {
			continue
		}
		var fv reflect.Value
		if rec != nil {
			fv = reflect.ValueOf(rec.Get(f.Name))
		} else {
			fv = v.FieldByIndex(f.Index)
		}
		x, err := toJSON(f.Type, fv, append(slices.Clip(path), f.Name))
		if err != nil {
			return nil, err
		}
		obj = append(obj, member{key: f.Name, value: x})
	}
	return obj, nil
}

func variantTo(d *descriptor.Descriptor, v reflect.Value, path []string) (object, error) {
	if isNil(v) {
		return nil, errors.NilPointer(errors.PhaseEncode, path, goTypeOf(d).String())
	}
	cands := d.Candidates()
	names := make([]string, len(cands))
	for i, c := range cands {
		names[i] = candidateName(c)
	}
	for i, c := range cands {
		if goTypeOf(c) != v.Type() {
			continue
		}
		body := compositeOf(c)
		if body != nil && body.Dynamic() {
			if rec, ok := v.Interface().(*schema.Record); !ok || rec.Type != body.Class().Name {
				continue
			}
		}

		obj := object{{key: typeKey, value: names[i]}}
		cpath := append(slices.Clip(path), names[i])
		if body != nil {
			if c.Shape() == descriptor.ShapePointer {
				v = v.Elem()
			}
			return membersTo(obj, body, v, cpath)
		}
		x, err := toJSON(c, v, cpath)
		if err != nil {
			return nil, err
		}
		return append(obj, member{key: valueKey, value: x}), nil
	}
	return nil, errors.UnmatchedSubclass(path, v.Type().String(), names)
}

// compositeOf returns the composite a candidate encodes, through one
// pointer level, or nil.
func compositeOf(c *descriptor.Descriptor) *descriptor.Descriptor {
	if c.Annotated() {
		return nil
	}
	if c.Shape() == descriptor.ShapePointer {
		c = c.Elem()
	}
	if c.Shape() == descriptor.ShapeComposite && !c.Annotated() {
		return c
	}
	return nil
}

func candidateName(c *descriptor.Descriptor) string {
	if body := compositeOf(c); body != nil {
		return body.Name()
	}
	return c.Name()
}

// nameMatches accepts the full candidate name or its unqualified form.
func nameMatches(full, name string) bool {
	if full == name {
		return true
	}
	i := strings.LastIndexByte(full, '.')
	return i >= 0 && !strings.ContainsAny(full[:i], "<[") && full[i+1:] == name
}

func nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
		return true
	}
	return false
}

func isNil(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
		return v.IsNil()
	}
	return false
}

func length(v reflect.Value) int {
	if !v.IsValid() {
		return 0
	}
	return v.Len()
}

func mismatch(path []string, x any, want string) error {
	return errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
		Path(path...).
		Value(x).
		Detail("expected %s, got %T", want, x).
		Build()
}
