// Package witschema maps descriptors to Component Model WIT types.
//
// Composites become records, nullable members options, arrays lists and
// polymorphic slots variants with one case per candidate in discriminator
// order. Stale members are omitted. Shapes with no WIT counterpart
// (recursive composites, custom codecs, fatal placeholders) are reported
// as unsupported.
package witschema

import (
	"strconv"
	"strings"
	"unicode"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/hyphen/descriptor"
	"github.com/wippyai/hyphen/errors"
	"github.com/wippyai/hyphen/schema"
)

// Mapper maps descriptors to WIT, sharing named definitions across calls.
type Mapper struct {
	defs     map[*descriptor.Descriptor]*wit.TypeDef
	names    map[string]*descriptor.Descriptor
	visiting map[*descriptor.Descriptor]bool
}

// NewMapper creates a mapper.
func NewMapper() *Mapper {
	return &Mapper{
		defs:     make(map[*descriptor.Descriptor]*wit.TypeDef),
		names:    make(map[string]*descriptor.Descriptor),
		visiting: make(map[*descriptor.Descriptor]bool),
	}
}

// Map maps d with a fresh mapper.
func Map(d *descriptor.Descriptor) (wit.Type, error) {
	return NewMapper().Map(d)
}

// Map returns the WIT type for d.
func (m *Mapper) Map(d *descriptor.Descriptor) (wit.Type, error) {
	return m.mapType(d, []string{d.Name()})
}

func (m *Mapper) mapType(d *descriptor.Descriptor, path []string) (wit.Type, error) {
	if d.Annotated() {
		opts := d.Options()
		if opts.Codec != "" {
			return nil, errors.Unsupported(errors.PhaseCompile, path, "custom codec "+strconv.Quote(opts.Codec)+" has no WIT form")
		}
		inner, err := m.mapType(d.Base(), path)
		if err != nil {
			return nil, err
		}
		if opts.Nullable {
			return &wit.TypeDef{Kind: &wit.Option{Type: inner}}, nil
		}
		return inner, nil
	}

	switch d.Shape() {
	case descriptor.ShapeScalar:
		return scalar(d.Kind()), nil
	case descriptor.ShapeArray:
		elem, err := m.mapType(d.Elem(), append(path, "[]"))
		if err != nil {
			return nil, err
		}
		return &wit.TypeDef{Kind: &wit.List{Type: elem}}, nil
	case descriptor.ShapePointer:
		return m.mapType(d.Elem(), path)
	case descriptor.ShapeComposite:
		return m.record(d, path)
	case descriptor.ShapePolymorphic:
		return m.variant(d, path)
	}
	return nil, errors.New(errors.PhaseCompile, errors.KindUnsupported).
		Path(path...).
		Detail("unresolved type has no WIT form: %s", d.Reason()).
		Build()
}

func (m *Mapper) record(d *descriptor.Descriptor, path []string) (wit.Type, error) {
	if def, ok := m.defs[d]; ok {
		return def, nil
	}
	if m.visiting[d] {
		return nil, errors.New(errors.PhaseCompile, errors.KindRecursiveType).
			Path(path...).
			Detail("%s is recursive; WIT records cannot refer to themselves", d.Name()).
			Build()
	}
	m.visiting[d] = true
	defer delete(m.visiting, d)

	var fields []wit.Field
	for _, f := range d.Fields() {
		if f.Type.Options().Stale {
			continue
		}
		t, err := m.mapType(f.Type, append(path, f.Name))
		if err != nil {
			return nil, err
		}
		fields = append(fields, wit.Field{Name: m.ident(f.Name), Type: t})
	}
	name := m.name(d, d.Name())
	def := &wit.TypeDef{Name: &name, Kind: &wit.Record{Fields: fields}}
	m.defs[d] = def
	return def, nil
}

func (m *Mapper) variant(d *descriptor.Descriptor, path []string) (wit.Type, error) {
	if def, ok := m.defs[d]; ok {
		return def, nil
	}
	cases := make([]wit.Case, len(d.Candidates()))
	seen := make(map[string]bool, len(cases))
	for i, c := range d.Candidates() {
		t, err := m.mapType(c, append(path, c.Name()))
		if err != nil {
			return nil, err
		}
		name := kebab(caseName(c))
		for n := 2; seen[name]; n++ {
			name = kebab(caseName(c)) + "-" + strconv.Itoa(n)
		}
		seen[name] = true
		cases[i] = wit.Case{Name: escape(name), Type: t}
	}

	label := "variant"
	if g := d.Go(); g != nil && g.Name() != "" {
		label = g.Name()
	}
	name := m.name(d, label)
	def := &wit.TypeDef{Name: &name, Kind: &wit.Variant{Cases: cases}}
	m.defs[d] = def
	return def, nil
}

// name allocates a unique WIT identifier for d.
func (m *Mapper) name(d *descriptor.Descriptor, label string) string {
	base := kebab(label)
	name := base
	for n := 2; ; n++ {
		owner, taken := m.names[name]
		if !taken || owner == d {
			break
		}
		name = base + "-" + strconv.Itoa(n)
	}
	m.names[name] = d
	return escape(name)
}

func (m *Mapper) ident(name string) string {
	return escape(kebab(name))
}

func caseName(d *descriptor.Descriptor) string {
	for d.Shape() == descriptor.ShapePointer {
		d = d.Elem()
	}
	return d.Name()
}

func scalar(k schema.Kind) wit.Type {
	switch k {
	case schema.KindBool:
		return wit.Bool{}
	case schema.KindI8:
		return wit.S8{}
	case schema.KindU8:
		return wit.U8{}
	case schema.KindI16:
		return wit.S16{}
	case schema.KindU16:
		return wit.U16{}
	case schema.KindI32:
		return wit.S32{}
	case schema.KindU32:
		return wit.U32{}
	case schema.KindI64:
		return wit.S64{}
	case schema.KindU64:
		return wit.U64{}
	case schema.KindF32:
		return wit.F32{}
	case schema.KindF64:
		return wit.F64{}
	}
	return wit.String{}
}

// kebab converts a Go or class name to a WIT identifier: the package
// qualifier is dropped, words are split on case changes and separators.
func kebab(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 && !strings.ContainsAny(name[:i], "<[") {
		name = name[i+1:]
	}
	rs := []rune(name)
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	for i, r := range rs {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if unicode.IsUpper(r) && len(cur) > 0 {
			prev := cur[len(cur)-1]
			nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || nextLower {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()

	// every segment must start with a letter
	for i, w := range words {
		if unicode.IsDigit(rune(w[0])) {
			if i > 0 {
				words[i-1] += w
				words[i] = ""
			} else {
				words[i] = "x" + w
			}
		}
	}
	out := words[:0]
	for _, w := range words {
		if w != "" {
			out = append(out, w)
		}
	}
	if len(out) == 0 {
		return "anon"
	}
	return strings.Join(out, "-")
}

var keywords = func() map[string]bool {
	words := []string{
		"as", "bool", "borrow", "char", "constructor", "enum", "export", "f32", "f64",
		"flags", "from", "func", "future", "import", "include", "interface", "list",
		"option", "own", "package", "record", "resource", "result", "s16", "s32", "s64",
		"s8", "static", "stream", "string", "tuple", "type", "u16", "u32", "u64", "u8",
		"use", "variant", "with", "world",
	}
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}()

func escape(id string) string {
	if keywords[id] {
		return "%" + id
	}
	return id
}
