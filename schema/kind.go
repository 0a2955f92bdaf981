package schema

import "reflect"

// Kind is a wire scalar.
type Kind uint8

const (
	KindBool Kind = iota
	KindI8
	KindU8
	KindI16
	KindU16
	KindI32
	KindU32
	KindI64
	KindU64
	KindF32
	KindF64
	KindString
)

var kindNames = [...]string{
	KindBool:   "bool",
	KindI8:     "i8",
	KindU8:     "u8",
	KindI16:    "i16",
	KindU16:    "u16",
	KindI32:    "i32",
	KindU32:    "u32",
	KindI64:    "i64",
	KindU64:    "u64",
	KindF32:    "f32",
	KindF64:    "f64",
	KindString: "string",
}

var kindSizes = [...]int{
	KindBool: 1,
	KindI8:   1,
	KindU8:   1,
	KindI16:  2,
	KindU16:  2,
	KindI32:  4,
	KindU32:  4,
	KindI64:  8,
	KindU64:  8,
	KindF32:  4,
	KindF64:  8,
}

var kindGoTypes = [...]reflect.Type{
	KindBool:   reflect.TypeOf(false),
	KindI8:     reflect.TypeOf(int8(0)),
	KindU8:     reflect.TypeOf(uint8(0)),
	KindI16:    reflect.TypeOf(int16(0)),
	KindU16:    reflect.TypeOf(uint16(0)),
	KindI32:    reflect.TypeOf(int32(0)),
	KindU32:    reflect.TypeOf(uint32(0)),
	KindI64:    reflect.TypeOf(int64(0)),
	KindU64:    reflect.TypeOf(uint64(0)),
	KindF32:    reflect.TypeOf(float32(0)),
	KindF64:    reflect.TypeOf(float64(0)),
	KindString: reflect.TypeOf(""),
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Size returns the fixed wire width in bytes, or 0 for strings.
func (k Kind) Size() int {
	if int(k) < len(kindSizes) {
		return kindSizes[k]
	}
	return 0
}

// IsFixed reports whether the kind has a fixed wire width.
func (k Kind) IsFixed() bool {
	return k < KindString
}

// GoType returns the Go type a dynamic value of this kind uses.
func (k Kind) GoType() reflect.Type {
	if int(k) < len(kindGoTypes) {
		return kindGoTypes[k]
	}
	return nil
}

// ParseKind looks up a kind by its wire name.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	return 0, false
}

// KindOf maps a Go type to the wire kind it encodes as. int and uint are
// always 64-bit on the wire.
func KindOf(t reflect.Type) (Kind, bool) {
	switch t.Kind() {
	case reflect.Bool:
		return KindBool, true
	case reflect.Int8:
		return KindI8, true
	case reflect.Uint8:
		return KindU8, true
	case reflect.Int16:
		return KindI16, true
	case reflect.Uint16:
		return KindU16, true
	case reflect.Int32:
		return KindI32, true
	case reflect.Uint32:
		return KindU32, true
	case reflect.Int, reflect.Int64:
		return KindI64, true
	case reflect.Uint, reflect.Uint64:
		return KindU64, true
	case reflect.Float32:
		return KindF32, true
	case reflect.Float64:
		return KindF64, true
	case reflect.String:
		return KindString, true
	}
	return 0, false
}

// Accepts reports whether a Go type can carry values of kind k. Integer
// kinds accept any Go integer type; the routine converts at the boundary.
func (k Kind) Accepts(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool:
		return k == KindBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return k >= KindI8 && k <= KindU64
	case reflect.Float32, reflect.Float64:
		return k == KindF32 || k == KindF64
	case reflect.String:
		return k == KindString
	}
	return false
}
