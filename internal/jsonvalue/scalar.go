package jsonvalue

import (
	"math"
	"reflect"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/wippyai/hyphen/errors"
	"github.com/wippyai/hyphen/schema"
)

func bits(k schema.Kind) int {
	return k.Size() * 8
}

func scalarFrom(k schema.Kind, t reflect.Type, x any, path []string) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	target := out
	boxed := t.Kind() == reflect.Interface
	if boxed {
		target = reflect.New(k.GoType()).Elem()
	}

	switch k {
	case schema.KindBool:
		b, ok := x.(bool)
		if !ok {
			return reflect.Value{}, mismatch(path, x, "boolean")
		}
		target.SetBool(b)
	case schema.KindString:
		s, ok := x.(string)
		if !ok {
			return reflect.Value{}, mismatch(path, x, "string")
		}
		target.SetString(s)
	default:
		n, ok := x.(json.Number)
		if !ok {
			return reflect.Value{}, mismatch(path, x, "number")
		}
		if err := setNumber(target, k, string(n)); err != nil {
			return reflect.Value{}, errors.New(errors.PhaseDecode, errors.KindInvalidData).
				Path(path...).
				Value(string(n)).
				Cause(err).
				Detail("%s out of range for %s", n, k).
				Build()
		}
	}

	if boxed {
		out.Set(target)
	}
	return out, nil
}

func setNumber(v reflect.Value, k schema.Kind, s string) error {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, bits(k))
		if err != nil {
			return err
		}
		if v.OverflowInt(n) {
			return strconv.ErrRange
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := strconv.ParseUint(s, 10, bits(k))
		if err != nil {
			return err
		}
		if v.OverflowUint(n) {
			return strconv.ErrRange
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, bits(k))
		if err != nil {
			return err
		}
		v.SetFloat(f)
	default:
		return errors.TypeMismatch(errors.PhaseDecode, nil, v.Type().String(), k.String())
	}
	return nil
}

// scalarTo returns the plain Go value go-json renders for v.
func scalarTo(k schema.Kind, v reflect.Value, path []string) (any, error) {
	if !v.IsValid() {
		return nil, errors.NilPointer(errors.PhaseEncode, path, k.String())
	}
	switch v.Kind() {
	case reflect.Bool:
		if k == schema.KindBool {
			return v.Bool(), nil
		}
	case reflect.String:
		if k == schema.KindString {
			return v.String(), nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if integer(k) {
			return v.Int(), nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if integer(k) {
			return v.Uint(), nil
		}
	case reflect.Float32, reflect.Float64:
		if k == schema.KindF32 || k == schema.KindF64 {
			f := v.Float()
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, errors.InvalidData(errors.PhaseEncode, path, "JSON has no representation for "+strconv.FormatFloat(f, 'g', -1, 64))
			}
			if k == schema.KindF32 {
				return float32(f), nil
			}
			return f, nil
		}
	}
	return nil, errors.TypeMismatch(errors.PhaseEncode, path, v.Type().String(), k.String())
}

func integer(k schema.Kind) bool {
	switch k {
	case schema.KindI8, schema.KindU8, schema.KindI16, schema.KindU16,
		schema.KindI32, schema.KindU32, schema.KindI64, schema.KindU64:
		return true
	}
	return false
}
