package witschema

import (
	"strings"

	"go.bytecodealliance.org/wit"
)

// Render writes WIT declarations for every named type reachable from t,
// dependencies first. An anonymous root is declared as "type value".
func Render(t wit.Type) string {
	r := &renderer{seen: make(map[*wit.TypeDef]bool)}
	r.declare(t)
	if def, ok := t.(*wit.TypeDef); !ok || def.Name == nil {
		r.b.WriteString("type value = ")
		r.b.WriteString(Expr(t))
		r.b.WriteString(";\n")
	}
	return r.b.String()
}

// Expr renders t as a WIT type expression. Named definitions render as
// their name.
func Expr(t wit.Type) string {
	switch v := t.(type) {
	case nil:
		return "_"
	case wit.Bool:
		return "bool"
	case wit.S8:
		return "s8"
	case wit.U8:
		return "u8"
	case wit.S16:
		return "s16"
	case wit.U16:
		return "u16"
	case wit.S32:
		return "s32"
	case wit.U32:
		return "u32"
	case wit.S64:
		return "s64"
	case wit.U64:
		return "u64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		if v.Name != nil {
			return *v.Name
		}
		switch k := v.Kind.(type) {
		case *wit.List:
			return "list<" + Expr(k.Type) + ">"
		case *wit.Option:
			return "option<" + Expr(k.Type) + ">"
		}
	}
	return "_"
}

type renderer struct {
	seen map[*wit.TypeDef]bool
	b    strings.Builder
}

func (r *renderer) declare(t wit.Type) {
	def, ok := t.(*wit.TypeDef)
	if !ok || r.seen[def] {
		return
	}
	r.seen[def] = true

	switch k := def.Kind.(type) {
	case *wit.List:
		r.declare(k.Type)
	case *wit.Option:
		r.declare(k.Type)
	case *wit.Record:
		for _, f := range k.Fields {
			r.declare(f.Type)
		}
		r.b.WriteString("record " + Expr(def) + " {\n")
		for _, f := range k.Fields {
			r.b.WriteString("    " + f.Name + ": " + Expr(f.Type) + ",\n")
		}
		r.b.WriteString("}\n\n")
	case *wit.Variant:
		for _, c := range k.Cases {
			r.declare(c.Type)
		}
		r.b.WriteString("variant " + Expr(def) + " {\n")
		for _, c := range k.Cases {
			if c.Type == nil {
				r.b.WriteString("    " + c.Name + ",\n")
				continue
			}
			r.b.WriteString("    " + c.Name + "(" + Expr(c.Type) + "),\n")
		}
		r.b.WriteString("}\n\n")
	}
}
