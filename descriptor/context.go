package descriptor

import (
	"strings"
)

// GenericContext binds the type parameters of one parameterized composite
// to resolved descriptors. It does not chain to enclosing contexts: a
// variable resolves only against the composite that declares it.
type GenericContext struct {
	names []string
	types []*Descriptor
}

// NewContext binds names to types positionally. Extra names stay unbound.
func NewContext(names []string, types []*Descriptor) *GenericContext {
	g := &GenericContext{names: append([]string(nil), names...)}
	g.types = make([]*Descriptor, len(names))
	copy(g.types, types)
	return g
}

// Lookup returns the descriptor bound to name.
func (g *GenericContext) Lookup(name string) (*Descriptor, bool) {
	if g == nil {
		return nil, false
	}
	for i, n := range g.names {
		if n == name {
			return g.types[i], g.types[i] != nil
		}
	}
	return nil, false
}

// Names returns the parameter names in declaration order.
func (g *GenericContext) Names() []string {
	if g == nil {
		return nil
	}
	return g.names
}

// Types returns the bound descriptors in declaration order. Unbound
// parameters are nil.
func (g *GenericContext) Types() []*Descriptor {
	if g == nil {
		return nil
	}
	return g.types
}

// Len returns the number of declared parameters.
func (g *GenericContext) Len() int {
	if g == nil {
		return 0
	}
	return len(g.names)
}

func (g *GenericContext) String() string {
	if g.Len() == 0 {
		return "{}"
	}
	parts := make([]string, len(g.names))
	for i, n := range g.names {
		if g.types[i] == nil {
			parts[i] = n + "=?"
		} else {
			parts[i] = n + "=" + g.types[i].Name()
		}
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// key identifies the bindings by descriptor id.
func (g *GenericContext) key() string {
	if g.Len() == 0 {
		return ""
	}
	var b strings.Builder
	for i, t := range g.types {
		if i > 0 {
			b.WriteByte(',')
		}
		if t == nil {
			b.WriteByte('?')
		} else {
			b.WriteString(itoa(t.id))
		}
	}
	return b.String()
}
