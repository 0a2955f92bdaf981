package emit

import (
	"math"
	"reflect"
	"unicode/utf8"

	"github.com/wippyai/hyphen/errors"
	"github.com/wippyai/hyphen/iobuf"
	"github.com/wippyai/hyphen/schema"
)

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

func intOf(v reflect.Value) (int64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	}
	return 0, false
}

func uintOf(v reflect.Value) (uint64, bool) {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := v.Int()
		if i < 0 {
			return 0, false
		}
		return uint64(i), true
	}
	return 0, false
}

func floatOf(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	}
	return 0, false
}

func overflow(path []string, v reflect.Value, kind schema.Kind) error {
	b := errors.New(errors.PhaseEncode, errors.KindInvalidData).
		Path(path...).
		GoType(v.Type().String()).
		Detail("value does not fit %s", kind)
	if v.CanInterface() {
		b = b.Value(v.Interface())
	}
	return b.Build()
}

func mismatch(phase errors.Phase, path []string, v reflect.Value, want string) error {
	got := "invalid"
	if v.IsValid() {
		got = v.Type().String()
	}
	return errors.TypeMismatch(phase, path, got, want)
}

// putScalar writes v as kind.
func putScalar(w iobuf.IO, kind schema.Kind, v reflect.Value, path []string) error {
	switch kind {
	case schema.KindBool:
		if v.Kind() != reflect.Bool {
			return mismatch(errors.PhaseEncode, path, v, "bool")
		}
		return w.PutBool(v.Bool())
	case schema.KindString:
		if v.Kind() != reflect.String {
			return mismatch(errors.PhaseEncode, path, v, "string")
		}
		if _, err := stringSize(errors.PhaseEncode, v.String(), path); err != nil {
			return err
		}
		return w.PutString(v.String())
	case schema.KindF32, schema.KindF64:
		f, ok := floatOf(v)
		if !ok {
			return mismatch(errors.PhaseEncode, path, v, kind.String())
		}
		if kind == schema.KindF32 {
			return w.PutFloat32(float32(f))
		}
		return w.PutFloat64(f)
	case schema.KindU8, schema.KindU16, schema.KindU32, schema.KindU64:
		u, ok := uintOf(v)
		if !ok {
			return overflowOrMismatch(path, v, kind)
		}
		switch kind {
		case schema.KindU8:
			if u > math.MaxUint8 {
				return overflow(path, v, kind)
			}
			return w.PutUint8(uint8(u))
		case schema.KindU16:
			if u > math.MaxUint16 {
				return overflow(path, v, kind)
			}
			return w.PutUint16(uint16(u))
		case schema.KindU32:
			if u > math.MaxUint32 {
				return overflow(path, v, kind)
			}
			return w.PutUint32(uint32(u))
		}
		return w.PutUint64(u)
	}

	i, ok := intOf(v)
	if !ok {
		return overflowOrMismatch(path, v, kind)
	}
	switch kind {
	case schema.KindI8:
		if i < math.MinInt8 || i > math.MaxInt8 {
			return overflow(path, v, kind)
		}
		return w.PutInt8(int8(i))
	case schema.KindI16:
		if i < math.MinInt16 || i > math.MaxInt16 {
			return overflow(path, v, kind)
		}
		return w.PutInt16(int16(i))
	case schema.KindI32:
		if i < math.MinInt32 || i > math.MaxInt32 {
			return overflow(path, v, kind)
		}
		return w.PutInt32(int32(i))
	}
	return w.PutInt64(i)
}

func overflowOrMismatch(path []string, v reflect.Value, kind schema.Kind) error {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return overflow(path, v, kind)
	}
	return mismatch(errors.PhaseEncode, path, v, kind.String())
}

// getScalar reads a kind and returns it carried by t.
func getScalar(r iobuf.IO, kind schema.Kind, t reflect.Type) (reflect.Value, error) {
	var x any
	var err error
	switch kind {
	case schema.KindBool:
		x, err = r.GetBool()
	case schema.KindI8:
		x, err = r.GetInt8()
	case schema.KindU8:
		x, err = r.GetUint8()
	case schema.KindI16:
		x, err = r.GetInt16()
	case schema.KindU16:
		x, err = r.GetUint16()
	case schema.KindI32:
		x, err = r.GetInt32()
	case schema.KindU32:
		x, err = r.GetUint32()
	case schema.KindI64:
		x, err = r.GetInt64()
	case schema.KindU64:
		x, err = r.GetUint64()
	case schema.KindF32:
		x, err = r.GetFloat32()
	case schema.KindF64:
		x, err = r.GetFloat64()
	case schema.KindString:
		x, err = r.GetString()
	default:
		return reflect.Value{}, errors.Unsupported(errors.PhaseDecode, nil, "scalar kind "+kind.String())
	}
	if err != nil {
		return reflect.Value{}, err
	}
	v := reflect.ValueOf(x)
	if v.Type() == t {
		return v, nil
	}
	return convertScalar(v, t)
}

// convertScalar converts a decoded scalar into its Go carrier, rejecting
// values the carrier cannot hold.
func convertScalar(v reflect.Value, t reflect.Type) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, ok := intOf(v)
		if !ok || out.OverflowInt(i) {
			return reflect.Value{}, errors.InvalidData(errors.PhaseDecode, nil, "decoded value does not fit "+t.String())
		}
		out.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u, ok := uintOf(v)
		if !ok || out.OverflowUint(u) {
			return reflect.Value{}, errors.InvalidData(errors.PhaseDecode, nil, "decoded value does not fit "+t.String())
		}
		out.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, _ := floatOf(v)
		out.SetFloat(f)
	case reflect.Bool:
		out.SetBool(v.Bool())
	case reflect.String:
		out.SetString(v.String())
	case reflect.Interface:
		out.Set(v)
	default:
		return reflect.Value{}, mismatch(errors.PhaseDecode, nil, v, t.String())
	}
	return out, nil
}

// measureScalar returns the encoded size of v as kind.
func measureScalar(kind schema.Kind, v reflect.Value, path []string) (int, error) {
	if kind.IsFixed() {
		return kind.Size(), nil
	}
	if v.Kind() != reflect.String {
		return 0, mismatch(errors.PhaseMeasure, path, v, "string")
	}
	return stringSize(errors.PhaseMeasure, v.String(), path)
}

// stringSize is the wire size of s. Strings that are not valid UTF-8 have
// no wire form.
func stringSize(phase errors.Phase, s string, path []string) (int, error) {
	if !utf8.ValidString(s) {
		return 0, errors.InvalidData(phase, path, "string is not valid UTF-8")
	}
	return 4 + len(s), nil
}

// coerce adapts a dynamic record entry to the Go type its member program
// expects.
func coerce(x any, t reflect.Type, path []string) (reflect.Value, error) {
	if x == nil {
		return reflect.Zero(t), nil
	}
	v := reflect.ValueOf(x)
	if v.Type() == t {
		return v, nil
	}
	if t.Kind() == reflect.Interface {
		if !v.Type().Implements(t) {
			return reflect.Value{}, mismatch(errors.PhaseEncode, path, v, t.String())
		}
		return v, nil
	}
	if t.Kind() == reflect.Pointer && v.Kind() != reflect.Pointer {
		inner, err := coerce(x, t.Elem(), path)
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(inner)
		return p, nil
	}
	if t.Kind() == reflect.Slice && v.Kind() == reflect.Slice {
		out := reflect.MakeSlice(t, v.Len(), v.Len())
		for i := range v.Len() {
			elem, err := coerce(v.Index(i).Interface(), t.Elem(), path)
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(elem)
		}
		return out, nil
	}
	if v.Type().AssignableTo(t) {
		out := reflect.New(t).Elem()
		out.Set(v)
		return out, nil
	}
	if sameFamily(v.Kind(), t.Kind()) {
		if out, err := convertScalar(v, t); err == nil {
			return out, nil
		}
	}
	return reflect.Value{}, mismatch(errors.PhaseEncode, path, v, t.String())
}

func family(k reflect.Kind) int {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return 1
	case reflect.Float32, reflect.Float64:
		return 2
	case reflect.Bool:
		return 3
	case reflect.String:
		return 4
	}
	return 0
}

func sameFamily(a, b reflect.Kind) bool {
	fa := family(a)
	return fa != 0 && fa == family(b)
}
