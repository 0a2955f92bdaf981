package schema

import (
	"slices"
	"strings"
	"unicode"

	"github.com/wippyai/hyphen/errors"
)

// ParseRef parses a type expression:
//
//	i32 | string | Pair | Box<i32> | []Pair | [][]Box<string> | T
//
// Identifiers listed in params become type variables.
func ParseRef(expr string, params ...string) (TypeRef, error) {
	p := refParser{src: expr, params: params}
	ref, err := p.parse()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.fail("unexpected %q", p.src[p.pos:])
	}
	return ref, nil
}

// MustParseRef is ParseRef that panics on error.
func MustParseRef(expr string, params ...string) TypeRef {
	ref, err := ParseRef(expr, params...)
	if err != nil {
		panic(err)
	}
	return ref
}

type refParser struct {
	src    string
	params []string
	pos    int
}

func (p *refParser) fail(format string, args ...any) error {
	return errors.New(errors.PhaseLoad, errors.KindInvalidData).
		Value(p.src).
		Entry("position", p.pos).
		Detail(format, args...).
		Build()
}

func (p *refParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *refParser) parse() (TypeRef, error) {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], "[]") {
		p.pos += 2
		elem, err := p.parse()
		if err != nil {
			return nil, err
		}
		return Array{Elem: elem}, nil
	}

	start := p.pos
	for p.pos < len(p.src) {
		r := rune(p.src[p.pos])
		if r != '_' && r != '.' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		p.pos++
	}
	name := p.src[start:p.pos]
	if name == "" {
		return nil, p.fail("expected a type name")
	}

	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == '<' {
		p.pos++
		var args []TypeRef
		for {
			arg, err := p.parse()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			p.skipSpace()
			if p.pos >= len(p.src) {
				return nil, p.fail("unterminated argument list")
			}
			if p.src[p.pos] == ',' {
				p.pos++
				continue
			}
			if p.src[p.pos] == '>' {
				p.pos++
				break
			}
			return nil, p.fail("expected ',' or '>'")
		}
		return Named{Name: name, Args: args}, nil
	}

	if k, ok := ParseKind(name); ok {
		return Prim{Kind: k}, nil
	}
	if slices.Contains(p.params, name) {
		return Var{Name: name}, nil
	}
	return Named{Name: name}, nil
}
