package hyphen

import (
	"reflect"

	"github.com/wippyai/hyphen/emit"
	"github.com/wippyai/hyphen/errors"
	"github.com/wippyai/hyphen/iobuf"
	"github.com/wippyai/hyphen/schema"
)

// Serializer is a typed view of one routine.
type Serializer[T any] struct {
	routine *emit.Routine
}

// Build compiles T from its Go layout.
func Build[T any](s *Session) (*Serializer[T], error) {
	r, err := s.Compile(schema.Of[T](), nil)
	if err != nil {
		return nil, err
	}
	return &Serializer[T]{routine: r}, nil
}

// BuildRef compiles ref carried by T. Use *schema.Record for dynamic
// classes, or an interface type to accept whatever ref decodes to.
func BuildRef[T any](s *Session, ref schema.TypeRef) (*Serializer[T], error) {
	var goType reflect.Type
	if t := reflect.TypeOf((*T)(nil)).Elem(); t.Kind() != reflect.Interface {
		goType = t
	}
	r, err := s.Compile(ref, goType)
	if err != nil {
		return nil, err
	}
	return &Serializer[T]{routine: r}, nil
}

// Routine returns the underlying routine.
func (s *Serializer[T]) Routine() *emit.Routine {
	return s.routine
}

// Encode writes v to w.
func (s *Serializer[T]) Encode(v T, w IO) error {
	return s.routine.Encode(valueOf(v), w)
}

// Decode reads one value from r.
func (s *Serializer[T]) Decode(r IO) (T, error) {
	var zero T
	rv, err := s.routine.Decode(r)
	if err != nil {
		return zero, err
	}
	out, ok := rv.Interface().(T)
	if !ok {
		return zero, errors.TypeMismatch(errors.PhaseDecode, nil, rv.Type().String(), reflect.TypeOf((*T)(nil)).Elem().String())
	}
	return out, nil
}

// Measure returns the encoded size of v.
func (s *Serializer[T]) Measure(v T) (int, error) {
	return s.routine.Measure(valueOf(v))
}

// Marshal encodes v into an exactly sized byte slice.
func (s *Serializer[T]) Marshal(v T) ([]byte, error) {
	size, err := s.Measure(v)
	if err != nil {
		return nil, err
	}
	buf := iobuf.NewHeap(size)
	defer buf.Close()
	if err := s.Encode(v, buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes exactly one value from data.
func (s *Serializer[T]) Unmarshal(data []byte) (T, error) {
	var zero T
	buf := iobuf.Wrap(data)
	defer buf.Close()
	v, err := s.Decode(buf)
	if err != nil {
		return zero, err
	}
	if rest := len(data) - buf.Position(); rest != 0 {
		return zero, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Value(rest).
			Detail("%d trailing bytes after value", rest).
			Build()
	}
	return v, nil
}

// valueOf reflects v, unwrapping interface-typed T to the dynamic value.
func valueOf[T any](v T) reflect.Value {
	rv := reflect.ValueOf(&v).Elem()
	if rv.Kind() == reflect.Interface {
		return rv.Elem()
	}
	return rv
}
