package emit

import (
	"math"
	"reflect"
	"slices"

	"github.com/wippyai/hyphen/errors"
	"github.com/wippyai/hyphen/iobuf"
	"github.com/wippyai/hyphen/program"
	"github.com/wippyai/hyphen/schema"
)

// maxPrealloc caps the slice capacity reserved from an untrusted length
// prefix; longer arrays grow as elements decode.
const maxPrealloc = 1024

// lower emits n inline. src names the encoded value and dst the decode
// target in the listing.
func (g *gen) lower(n *program.Node, src, dst string, path []string) (ops, error) {
	switch n.Op {
	case program.OpScalar:
		return g.scalar(n, src, dst, path), nil
	case program.OpArray:
		return g.array(n, src, dst, path)
	case program.OpNullable:
		return g.nullable(n, src, dst, path)
	case program.OpPointer:
		return g.pointer(n, src, dst, path)
	case program.OpSkip:
		return g.skip(n, src, dst), nil
	case program.OpFatal:
		return g.fatal(n, src, dst, path), nil
	case program.OpComposite, program.OpPolymorphic, program.OpCustom:
		return g.call(n, src, dst, path)
	}
	return ops{}, errors.Unsupported(errors.PhaseEmit, path, "program op "+n.Op.String())
}

func (g *gen) scalar(n *program.Node, src, dst string, path []string) ops {
	kind, goType := n.Kind, n.Go
	g.enc.line("put %s %s", kind, src)
	g.dec.line("%s = get %s", dst, kind)
	if kind.IsFixed() {
		g.meas.line("size += %d", kind.Size())
	} else {
		g.meas.line("size += 4 + len(%s)", src)
	}
	return ops{
		enc: func(_ *frame, v reflect.Value, w iobuf.IO) error {
			return putScalar(w, kind, v, path)
		},
		dec: func(_ *frame, r iobuf.IO) (reflect.Value, error) {
			v, err := getScalar(r, kind, goType)
			return v, at(err, path)
		},
		meas: func(_ *frame, v reflect.Value) (int, error) {
			return measureScalar(kind, v, path)
		},
	}
}

func (g *gen) array(n *program.Node, src, dst string, path []string) (ops, error) {
	g.scope.Push()
	defer g.scope.Pop()
	length := g.scope.Declare("length", SlotInt)
	idx := g.scope.Declare("i", SlotInt)
	ln, ix := length.Slot, idx.Slot
	fixed, goType := n.Fixed, n.Go
	elemPath := append(slices.Clip(path), "[]")

	g.enc.line("%s = len(%s)", length.Name, src)
	g.enc.line("put i32 %s", length.Name)
	g.dec.line("%s = get i32", length.Name)
	g.meas.line("%s = len(%s)", length.Name, src)
	g.meas.line("size += 4")

	if n.Bulk {
		return g.bulk(n, src, dst, length, elemPath)
	}
	g.dec.line("%s = make(%v, %s)", dst, goType, length.Name)

	loop := "for " + idx.Name + " = 0; " + idx.Name + " < " + length.Name + "; " + idx.Name + "++ {"
	g.enc.open("%s", loop)
	g.dec.open("%s", loop)
	fixedElem := n.Elem.Op == program.OpScalar && n.Elem.Kind.IsFixed()
	if fixedElem {
		g.meas.line("size += %s * %d", length.Name, n.Elem.Kind.Size())
	} else {
		g.meas.open("%s", loop)
	}
	elem, err := g.lower(n.Elem, src+"["+idx.Name+"]", dst+"["+idx.Name+"]", elemPath)
	if err != nil {
		return ops{}, err
	}
	g.enc.close()
	g.dec.close()
	if !fixedElem {
		g.meas.close()
	}

	out := ops{
		enc: func(f *frame, v reflect.Value, w iobuf.IO) error {
			count, err := arrayLen(v, path)
			if err != nil {
				return err
			}
			f.ints[ln] = count
			if err := w.PutInt32(int32(count)); err != nil {
				return at(err, path)
			}
			for f.ints[ix] = 0; f.ints[ix] < f.ints[ln]; f.ints[ix]++ {
				if err := elem.enc(f, v.Index(f.ints[ix]), w); err != nil {
					return err
				}
			}
			return nil
		},
		dec: func(f *frame, r iobuf.IO) (reflect.Value, error) {
			count, err := readLen(r, fixed, path)
			if err != nil {
				return reflect.Value{}, err
			}
			f.ints[ln] = count
			var out reflect.Value
			if fixed >= 0 {
				out = reflect.New(goType).Elem()
			} else {
				out = reflect.MakeSlice(goType, 0, min(count, maxPrealloc))
			}
			for f.ints[ix] = 0; f.ints[ix] < f.ints[ln]; f.ints[ix]++ {
				ev, err := elem.dec(f, r)
				if err != nil {
					return reflect.Value{}, err
				}
				if fixed >= 0 {
					out.Index(f.ints[ix]).Set(ev)
				} else {
					out = reflect.Append(out, ev)
				}
			}
			return out, nil
		},
	}
	if fixedElem {
		size := n.Elem.Kind.Size()
		out.meas = func(_ *frame, v reflect.Value) (int, error) {
			count, err := arrayLen(v, path)
			if err != nil {
				return 0, err
			}
			return 4 + count*size, nil
		}
	} else {
		out.meas = func(f *frame, v reflect.Value) (int, error) {
			count, err := arrayLen(v, path)
			if err != nil {
				return 0, err
			}
			f.ints[ln] = count
			total := 4
			for f.ints[ix] = 0; f.ints[ix] < f.ints[ln]; f.ints[ix]++ {
				m, err := elem.meas(f, v.Index(f.ints[ix]))
				if err != nil {
					return 0, err
				}
				total += m
			}
			return total, nil
		}
	}
	return out, nil
}

// bulk lowers a native scalar slice to one counted array call. Values read
// through unexported fields cannot be handed out, so encode falls back to
// an element loop for them.
func (g *gen) bulk(n *program.Node, src, dst string, length Var, path []string) (ops, error) {
	kind, ln := n.Elem.Kind, length.Slot
	g.enc.line("put %s[%s] %s", kind, length.Name, src)
	g.dec.line("%s = get %s[%s]", dst, kind, length.Name)
	if kind.IsFixed() {
		g.meas.line("size += %s * %d", length.Name, kind.Size())
	} else {
		g.meas.line("size += 4*%s + bytes(%s)", length.Name, src)
	}

	return ops{
		enc: func(f *frame, v reflect.Value, w iobuf.IO) error {
			count, err := arrayLen(v, path)
			if err != nil {
				return err
			}
			f.ints[ln] = count
			if kind == schema.KindString {
				for i := range count {
					if _, err := stringSize(errors.PhaseEncode, v.Index(i).String(), path); err != nil {
						return err
					}
				}
			}
			if err := w.PutInt32(int32(count)); err != nil {
				return at(err, path)
			}
			if v.CanInterface() {
				return at(putBulk(w, v.Interface()), path)
			}
			for i := range count {
				if err := putScalar(w, kind, v.Index(i), path); err != nil {
					return err
				}
			}
			return nil
		},
		dec: func(f *frame, r iobuf.IO) (reflect.Value, error) {
			count, err := readLen(r, -1, path)
			if err != nil {
				return reflect.Value{}, err
			}
			f.ints[ln] = count
			arr, err := getBulk(r, kind, count)
			if err != nil {
				return reflect.Value{}, at(err, path)
			}
			return reflect.ValueOf(arr), nil
		},
		meas: func(_ *frame, v reflect.Value) (int, error) {
			count, err := arrayLen(v, path)
			if err != nil {
				return 0, err
			}
			if kind.IsFixed() {
				return 4 + count*kind.Size(), nil
			}
			total := 4
			for i := range count {
				n, err := stringSize(errors.PhaseMeasure, v.Index(i).String(), path)
				if err != nil {
					return 0, err
				}
				total += n
			}
			return total, nil
		},
	}, nil
}

func arrayLen(v reflect.Value, path []string) (int, error) {
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
	default:
		return 0, mismatch(errors.PhaseEncode, path, v, "slice or array")
	}
	count := v.Len()
	if count > math.MaxInt32 {
		return 0, errors.InvalidData(errors.PhaseEncode, path, "array longer than the int32 length prefix allows")
	}
	return count, nil
}

func readLen(r iobuf.IO, fixed int, path []string) (int, error) {
	n, err := r.GetInt32()
	if err != nil {
		return 0, at(err, path)
	}
	if n < 0 {
		return 0, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Path(path...).
			Value(n).
			Detail("negative array length %d", n).
			Build()
	}
	if fixed >= 0 && int(n) != fixed {
		return 0, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Path(path...).
			Value(n).
			Detail("array length %d, fixed array holds %d", n, fixed).
			Build()
	}
	return int(n), nil
}

func putBulk(w iobuf.IO, arr any) error {
	switch a := arr.(type) {
	case []bool:
		return w.PutBoolArray(a)
	case []int8:
		return w.PutInt8Array(a)
	case []uint8:
		return w.PutUint8Array(a)
	case []int16:
		return w.PutInt16Array(a)
	case []uint16:
		return w.PutUint16Array(a)
	case []int32:
		return w.PutInt32Array(a)
	case []uint32:
		return w.PutUint32Array(a)
	case []int64:
		return w.PutInt64Array(a)
	case []uint64:
		return w.PutUint64Array(a)
	case []float32:
		return w.PutFloat32Array(a)
	case []float64:
		return w.PutFloat64Array(a)
	case []string:
		return w.PutStringArray(a)
	}
	return errors.Unsupported(errors.PhaseEncode, nil, reflect.TypeOf(arr).String()+" has no bulk form")
}

func getBulk(r iobuf.IO, kind schema.Kind, n int) (any, error) {
	switch kind {
	case schema.KindBool:
		return r.GetBoolArray(n)
	case schema.KindI8:
		return r.GetInt8Array(n)
	case schema.KindU8:
		return r.GetUint8Array(n)
	case schema.KindI16:
		return r.GetInt16Array(n)
	case schema.KindU16:
		return r.GetUint16Array(n)
	case schema.KindI32:
		return r.GetInt32Array(n)
	case schema.KindU32:
		return r.GetUint32Array(n)
	case schema.KindI64:
		return r.GetInt64Array(n)
	case schema.KindU64:
		return r.GetUint64Array(n)
	case schema.KindF32:
		return r.GetFloat32Array(n)
	case schema.KindF64:
		return r.GetFloat64Array(n)
	case schema.KindString:
		return r.GetStringArray(n)
	}
	return nil, errors.Unsupported(errors.PhaseDecode, nil, "scalar kind "+kind.String())
}

func (g *gen) nullable(n *program.Node, src, dst string, path []string) (ops, error) {
	goType := n.Go
	g.enc.line("put u8 %s != nil", src)
	g.enc.open("if %s != nil {", src)
	g.dec.line("present = get u8")
	g.dec.open("if present {")
	g.meas.line("size += 1")
	g.meas.open("if %s != nil {", src)
	inner, err := g.lower(n.Elem, src, dst, path)
	if err != nil {
		return ops{}, err
	}
	g.enc.close()
	g.dec.close()
	g.meas.close()

	return ops{
		enc: func(f *frame, v reflect.Value, w iobuf.IO) error {
			if isNil(v) {
				return at(w.PutUint8(0), path)
			}
			if err := w.PutUint8(1); err != nil {
				return at(err, path)
			}
			return inner.enc(f, v, w)
		},
		dec: func(f *frame, r iobuf.IO) (reflect.Value, error) {
			flag, err := r.GetUint8()
			if err != nil {
				return reflect.Value{}, at(err, path)
			}
			switch flag {
			case 0:
				return reflect.Zero(goType), nil
			case 1:
				return inner.dec(f, r)
			}
			return reflect.Value{}, errors.New(errors.PhaseDecode, errors.KindInvalidData).
				Path(path...).
				Value(flag).
				Detail("presence byte %d is neither 0 nor 1", flag).
				Build()
		},
		meas: func(f *frame, v reflect.Value) (int, error) {
			if isNil(v) {
				return 1, nil
			}
			m, err := inner.meas(f, v)
			return 1 + m, err
		},
	}, nil
}

func (g *gen) pointer(n *program.Node, src, dst string, path []string) (ops, error) {
	goType := n.Go
	inner, err := g.lower(n.Elem, "*"+src, dst, path)
	if err != nil {
		return ops{}, err
	}
	g.dec.line("%s = &%s", dst, dst)

	return ops{
		enc: func(f *frame, v reflect.Value, w iobuf.IO) error {
			if isNil(v) {
				return errors.NilPointer(errors.PhaseEncode, path, goType.String())
			}
			return inner.enc(f, deref(v), w)
		},
		dec: func(f *frame, r iobuf.IO) (reflect.Value, error) {
			ev, err := inner.dec(f, r)
			if err != nil {
				return reflect.Value{}, err
			}
			p := reflect.New(goType.Elem())
			p.Elem().Set(ev)
			return p, nil
		},
		meas: func(f *frame, v reflect.Value) (int, error) {
			if isNil(v) {
				return 0, errors.NilPointer(errors.PhaseMeasure, path, goType.String())
			}
			return inner.meas(f, deref(v))
		},
	}, nil
}

// deref follows a pointer, unwrapping an interface holding one first.
func deref(v reflect.Value) reflect.Value {
	if v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	return v.Elem()
}

func (g *gen) skip(n *program.Node, src, dst string) ops {
	goType := n.Go
	g.enc.line("skip %s", src)
	g.dec.line("%s = zero(%v)", dst, goType)
	g.meas.line("size += 0")
	return ops{
		enc: func(*frame, reflect.Value, iobuf.IO) error { return nil },
		dec: func(*frame, iobuf.IO) (reflect.Value, error) {
			return reflect.Zero(goType), nil
		},
		meas: func(*frame, reflect.Value) (int, error) { return 0, nil },
	}
}

// fatal lowers an unresolved placeholder. Zero values pass through; any
// other value raises the diagnostic recorded at scan time.
func (g *gen) fatal(n *program.Node, src, dst string, path []string) ops {
	goType, reason, entries := n.Go, n.Reason, n.Entries
	g.enc.line("fatal %q if %s != zero", reason, src)
	g.dec.line("%s = zero(%v)", dst, goType)
	g.meas.line("fatal %q if %s != zero", reason, src)

	raise := func(phase errors.Phase, v reflect.Value) error {
		b := errors.New(phase, errors.KindFatalPlaceholder).
			Path(path...).
			GoType(v.Type().String()).
			Detail("%s", reason)
		for _, e := range entries {
			b = b.Entry(e.Label, e.Value)
		}
		return b.Build()
	}
	return ops{
		enc: func(_ *frame, v reflect.Value, _ iobuf.IO) error {
			if isNil(v) || v.IsZero() {
				return nil
			}
			return raise(errors.PhaseEncode, v)
		},
		dec: func(*frame, iobuf.IO) (reflect.Value, error) {
			return reflect.Zero(goType), nil
		},
		meas: func(_ *frame, v reflect.Value) (int, error) {
			if isNil(v) || v.IsZero() {
				return 0, nil
			}
			return 0, raise(errors.PhaseMeasure, v)
		},
	}
}

// call lowers a node that owns a routine into a call of that routine.
func (g *gen) call(n *program.Node, src, dst string, path []string) (ops, error) {
	r, err := g.e.Emit(n)
	if err != nil {
		return ops{}, err
	}
	g.enc.line("call %s(%s)", r.name, src)
	g.dec.line("%s = call %s()", dst, r.name)
	g.meas.line("size += call %s(%s)", r.name, src)
	return ops{
		enc: func(_ *frame, v reflect.Value, w iobuf.IO) error {
			return within(r.encode(v, w), path)
		},
		dec: func(_ *frame, rd iobuf.IO) (reflect.Value, error) {
			v, err := r.decode(rd)
			return v, within(err, path)
		},
		meas: func(_ *frame, v reflect.Value) (int, error) {
			m, err := r.measure(v)
			return m, within(err, path)
		},
	}, nil
}

// at attaches path to an error raised without one, typically by the IO
// boundary.
func at(err error, path []string) error {
	if err == nil {
		return nil
	}
	var e *errors.Error
	if errors.As(err, &e) {
		if len(e.Path) == 0 {
			e.Path = slices.Clone(path)
		}
		return e
	}
	e = errors.Wrap(errors.PhaseIO, errors.KindInvalidData, err, "io failure")
	e.Path = slices.Clone(path)
	return e
}

// within prefixes the caller's path onto an error raised by a nested
// routine, so diagnostics carry the full enclosing chain.
func within(err error, path []string) error {
	if err == nil {
		return nil
	}
	var e *errors.Error
	if !errors.As(err, &e) {
		return at(err, path)
	}
	e.Path = append(slices.Clone(path), e.Path...)
	return e
}
