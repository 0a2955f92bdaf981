package emit

import (
	"reflect"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/wippyai/hyphen/errors"
	"github.com/wippyai/hyphen/iobuf"
	"github.com/wippyai/hyphen/program"
	"github.com/wippyai/hyphen/schema"
)

type member struct {
	ops
	name  string
	local string
	index []int
	goTyp reflect.Type
	slot  int
}

// composite lowers one access and nested call per member in program order.
// Decode collects member values in value slots and constructs the result
// once every member is read.
func (g *gen) composite(n *program.Node, path []string) (ops, error) {
	members := make([]member, len(n.Fields))
	dynamic := n.Dynamic
	g.scope.Push()
	defer g.scope.Pop()

	for i, f := range n.Fields {
		fpath := append(slices.Clip(path), f.Name)
		src := "v." + f.Name
		if dynamic {
			src = "v[" + strconv.Quote(f.Name) + "]"
		}
		slot := g.scope.Declare(ident(f.Name), SlotValue)
		o, err := g.lower(f.Node, src, slot.Name, fpath)
		if err != nil {
			return ops{}, err
		}
		members[i] = member{ops: o, name: f.Name, local: slot.Name, index: f.Index, goTyp: f.Node.Go, slot: slot.Slot}
	}

	build, err := g.constructor(n, members, path)
	if err != nil {
		return ops{}, err
	}
	access := fieldAccess(dynamic, path)

	return ops{
		enc: func(f *frame, v reflect.Value, w iobuf.IO) error {
			v, err := compositeValue(v, dynamic, errors.PhaseEncode, path)
			if err != nil {
				return err
			}
			for i := range members {
				fv, err := access(v, &members[i])
				if err != nil {
					return err
				}
				if err := members[i].enc(f, fv, w); err != nil {
					return err
				}
			}
			return nil
		},
		dec: func(f *frame, r iobuf.IO) (reflect.Value, error) {
			for i := range members {
				mv, err := members[i].dec(f, r)
				if err != nil {
					return reflect.Value{}, err
				}
				f.vals[members[i].slot] = mv
			}
			return build(f)
		},
		meas: func(f *frame, v reflect.Value) (int, error) {
			v, err := compositeValue(v, dynamic, errors.PhaseMeasure, path)
			if err != nil {
				return 0, err
			}
			total := 0
			for i := range members {
				fv, err := access(v, &members[i])
				if err != nil {
					return 0, err
				}
				m, err := members[i].meas(f, fv)
				if err != nil {
					return 0, err
				}
				total += m
			}
			return total, nil
		},
	}, nil
}

func compositeValue(v reflect.Value, dynamic bool, phase errors.Phase, path []string) (reflect.Value, error) {
	if v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if dynamic && isNil(v) {
		return reflect.Value{}, errors.NilPointer(phase, path, schema.RecordType.String())
	}
	return v, nil
}

func fieldAccess(dynamic bool, path []string) func(reflect.Value, *member) (reflect.Value, error) {
	if !dynamic {
		return func(v reflect.Value, m *member) (reflect.Value, error) {
			return v.FieldByIndex(m.index), nil
		}
	}
	return func(v reflect.Value, m *member) (reflect.Value, error) {
		// Read through the pointer so records held in unexported fields work.
		rec := (*schema.Record)(v.UnsafePointer())
		return coerce(rec.Fields[m.name], m.goTyp, append(slices.Clip(path), m.name))
	}
}

// constructor returns the decode finisher for n and writes its listing.
func (g *gen) constructor(n *program.Node, members []member, path []string) (func(*frame) (reflect.Value, error), error) {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.local
	}

	if n.Dynamic {
		className := n.Desc.Class().Name
		g.dec.line("return record %s{%s}", className, strings.Join(names, ", "))
		return func(f *frame) (reflect.Value, error) {
			rec := &schema.Record{Type: className, Fields: make(map[string]any, len(members))}
			for _, m := range members {
				mv := f.vals[m.slot]
				if isNil(mv) && mv.Kind() != reflect.Slice {
					rec.Fields[m.name] = nil
					continue
				}
				rec.Fields[m.name] = mv.Interface()
			}
			return reflect.ValueOf(rec), nil
		}, nil
	}

	goType := n.Go
	if n.Constructor.IsValid() {
		ctor := n.Constructor
		ft := ctor.Type()
		g.dec.line("return %v(%s)", goType, strings.Join(names, ", "))
		return func(f *frame) (reflect.Value, error) {
			args := make([]reflect.Value, len(members))
			for i, m := range members {
				args[i] = f.vals[m.slot]
			}
			out := ctor.Call(args)
			if len(out) == 2 && !out[1].IsNil() {
				err := errors.New(errors.PhaseDecode, errors.KindInvalidData).
					Path(path...).
					GoType(goType.String()).
					Detail("constructor rejected decoded members").
					Cause(out[1].Interface().(error)).
					Build()
				return reflect.Value{}, err
			}
			v := out[0]
			if ft.Out(0).Kind() == reflect.Pointer {
				if v.IsNil() {
					return reflect.Value{}, errors.NilPointer(errors.PhaseDecode, path, ft.Out(0).String())
				}
				v = v.Elem()
			}
			return v, nil
		}, nil
	}

	parts := make([]string, len(members))
	for i, m := range members {
		parts[i] = m.name + ": " + m.local
	}
	g.dec.line("return %v{%s}", goType, strings.Join(parts, ", "))
	return func(f *frame) (reflect.Value, error) {
		out := reflect.New(goType).Elem()
		for _, m := range members {
			out.FieldByIndex(m.index).Set(f.vals[m.slot])
		}
		return out, nil
	}, nil
}

type candidate struct {
	ops
	goType reflect.Type
	// record is the class name matched against Record.Type for dynamic
	// candidates.
	record string
	name   string
}

// polymorphic dispatches on the runtime value: the first candidate whose Go
// type (and record class, for dynamic candidates) matches wins, and its
// index is written as the discriminator.
func (g *gen) polymorphic(n *program.Node, path []string) (ops, error) {
	width, goType := n.TagWidth, n.Go
	cases := make([]candidate, len(n.Cases))
	names := make([]string, len(n.Cases))

	g.enc.open("switch type(v) {")
	g.dec.line("tag = get u%d", width*8)
	g.dec.open("switch tag {")
	g.meas.line("size += %d", width)
	g.meas.open("switch type(v) {")
	for i, c := range n.Cases {
		label := c.String()
		g.enc.open("case %s:", label)
		g.enc.line("put u%d %d", width*8, i)
		g.dec.open("case %d:", i)
		g.meas.open("case %s:", label)
		o, err := g.lower(c, "v", "out", path)
		if err != nil {
			return ops{}, err
		}
		g.enc.indent--
		g.dec.indent--
		g.meas.indent--

		cand := candidate{ops: o, goType: c.Go, name: label}
		if c.Op == program.OpComposite && c.Dynamic {
			cand.record = c.Desc.Class().Name
			cand.name = cand.record
		}
		cases[i] = cand
		names[i] = cand.name
	}
	g.enc.line("default: unmatched")
	g.enc.close()
	g.dec.line("default: invalid discriminator")
	g.dec.close()
	g.meas.close()

	match := func(v reflect.Value) int {
		t := v.Type()
		for i := range cases {
			if cases[i].goType != t {
				continue
			}
			if cases[i].record != "" && (*schema.Record)(v.UnsafePointer()).Type != cases[i].record {
				continue
			}
			return i
		}
		return -1
	}
	resolve := func(v reflect.Value, phase errors.Phase) (reflect.Value, int, error) {
		if v.Kind() == reflect.Interface {
			v = v.Elem()
		}
		if isNil(v) {
			return reflect.Value{}, 0, errors.NilPointer(phase, path, goType.String())
		}
		idx := match(v)
		if idx < 0 {
			return reflect.Value{}, 0, errors.UnmatchedSubclass(path, valueClass(v), names)
		}
		return v, idx, nil
	}

	return ops{
		enc: func(f *frame, v reflect.Value, w iobuf.IO) error {
			v, idx, err := resolve(v, errors.PhaseEncode)
			if err != nil {
				return err
			}
			if err := putTag(w, width, idx); err != nil {
				return at(err, path)
			}
			return cases[idx].enc(f, v, w)
		},
		dec: func(f *frame, r iobuf.IO) (reflect.Value, error) {
			tag, err := getTag(r, width)
			if err != nil {
				return reflect.Value{}, at(err, path)
			}
			if tag >= uint32(len(cases)) {
				return reflect.Value{}, errors.InvalidDiscriminator(path, tag, len(cases))
			}
			cv, err := cases[tag].dec(f, r)
			if err != nil {
				return reflect.Value{}, err
			}
			out := reflect.New(goType).Elem()
			out.Set(cv)
			return out, nil
		},
		meas: func(f *frame, v reflect.Value) (int, error) {
			v, idx, err := resolve(v, errors.PhaseMeasure)
			if err != nil {
				return 0, err
			}
			m, err := cases[idx].meas(f, v)
			return width + m, err
		},
	}, nil
}

func valueClass(v reflect.Value) string {
	if v.Type() == schema.RecordType {
		return (*schema.Record)(v.UnsafePointer()).Type
	}
	return v.Type().String()
}

func putTag(w iobuf.IO, width, idx int) error {
	switch width {
	case 1:
		return w.PutUint8(uint8(idx))
	case 2:
		return w.PutUint16(uint16(idx))
	}
	return w.PutUint32(uint32(idx))
}

func getTag(r iobuf.IO, width int) (uint32, error) {
	switch width {
	case 1:
		t, err := r.GetUint8()
		return uint32(t), err
	case 2:
		t, err := r.GetUint16()
		return uint32(t), err
	}
	return r.GetUint32()
}

// custom delegates to a registered codec.
func (g *gen) custom(n *program.Node, path []string) (ops, error) {
	codec, name, goType := n.Codec, n.CodecName, n.Go
	g.enc.line("%s.encode(v)", name)
	g.dec.line("return %s.decode(%v)", name, goType)
	g.meas.line("size += %s.measure(v)", name)

	wrap := func(err error, phase errors.Phase) error {
		if err == nil {
			return nil
		}
		var e *errors.Error
		if errors.As(err, &e) {
			return at(e, path)
		}
		return errors.New(phase, errors.KindInvalidData).
			Path(path...).
			Detail("codec %s failed", name).
			Cause(err).
			Build()
	}

	return ops{
		enc: func(_ *frame, v reflect.Value, w iobuf.IO) error {
			return wrap(codec.Encode(v, w), errors.PhaseEncode)
		},
		dec: func(_ *frame, r iobuf.IO) (reflect.Value, error) {
			v, err := codec.Decode(r, goType)
			if err != nil {
				return reflect.Value{}, wrap(err, errors.PhaseDecode)
			}
			switch {
			case !v.IsValid():
				return reflect.Zero(goType), nil
			case v.Type() == goType:
				return v, nil
			case v.Type().AssignableTo(goType):
				out := reflect.New(goType).Elem()
				out.Set(v)
				return out, nil
			}
			return reflect.Value{}, errors.TypeMismatch(errors.PhaseDecode, path, v.Type().String(), goType.String())
		},
		meas: func(_ *frame, v reflect.Value) (int, error) {
			m, err := codec.Measure(v)
			return m, wrap(err, errors.PhaseMeasure)
		},
	}, nil
}

// ident turns a member name into a listing variable base name.
func ident(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case unicode.IsLetter(r) || r == '_':
			if i == 0 {
				r = unicode.ToLower(r)
			}
			b.WriteRune(r)
		case unicode.IsDigit(r) && i > 0:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "m"
	}
	return b.String()
}
