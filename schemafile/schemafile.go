// Package schemafile loads dynamic class declarations from YAML.
//
// A schema file lists named subclass sets and classes in declaration
// order:
//
//	subclasses:
//	  shapes: [Square, Circle]
//	classes:
//	  - name: Box
//	    params: [T]
//	    fields:
//	      - {name: held, type: T}
//	  - name: Canvas
//	    fields:
//	      - {name: title, type: string, nullable: true}
//	      - {name: items, type: "[]Box<i32>"}
//	      - {name: shape, subclasses: shapes}
//	      - {name: scratch, type: string, stale: true}
//
// A member's subclasses key is either a set name or an inline list of
// type expressions. Classes loaded from a file have no Go binding; their
// values are *schema.Record.
package schemafile

import (
	"bytes"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/hyphen/errors"
	"github.com/wippyai/hyphen/schema"
)

type fileDoc struct {
	Subclasses yaml.Node   `yaml:"subclasses"`
	Classes    []yaml.Node `yaml:"classes"`
}

type classDoc struct {
	Name   string      `yaml:"name"`
	Params []string    `yaml:"params"`
	Fields []yaml.Node `yaml:"fields"`
}

type fieldDoc struct {
	Name       string    `yaml:"name"`
	Type       string    `yaml:"type"`
	Codec      string    `yaml:"codec"`
	Subclasses yaml.Node `yaml:"subclasses"`
	Nullable   bool      `yaml:"nullable"`
	Stale      bool      `yaml:"stale"`
}

// Load parses data into a new registry.
func Load(data []byte) (*schema.Registry, error) {
	reg := schema.NewRegistry()
	if err := LoadInto(reg, data); err != nil {
		return nil, err
	}
	return reg, nil
}

// LoadFile reads and parses a schema file into a new registry.
func LoadFile(path string) (*schema.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "read schema file "+path)
	}
	return Load(data)
}

// LoadInto declares the classes and subclass sets in data on reg. Codecs
// referenced by members must be registered on reg by the caller.
func LoadInto(reg *schema.Registry, data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc fileDoc
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "parse schema file")
	}

	if err := loadSubclasses(reg, &doc.Subclasses); err != nil {
		return err
	}
	for i := range doc.Classes {
		c, err := loadClass(&doc.Classes[i])
		if err != nil {
			return err
		}
		if err := reg.Declare(c); err != nil {
			return atLine(err, doc.Classes[i].Line)
		}
	}
	return nil
}

func loadSubclasses(reg *schema.Registry, n *yaml.Node) error {
	if n.Kind == 0 {
		return nil
	}
	if n.Kind != yaml.MappingNode {
		return fail(n, nil, "subclasses must map set names to type lists")
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i], n.Content[i+1]
		refs, err := refList(value, []string{key.Value}, nil)
		if err != nil {
			return err
		}
		if err := reg.DefineSubclasses(key.Value, refs...); err != nil {
			return atLine(err, key.Line)
		}
	}
	return nil
}

func loadClass(n *yaml.Node) (*schema.Class, error) {
	if err := knownKeys(n, nil, "name", "params", "fields"); err != nil {
		return nil, err
	}
	var cd classDoc
	if err := n.Decode(&cd); err != nil {
		return nil, fail(n, nil, "%v", err)
	}
	if cd.Name == "" {
		return nil, fail(n, nil, "class needs a name")
	}

	c := &schema.Class{Name: cd.Name, Params: cd.Params}
	for i := range cd.Fields {
		fn := &cd.Fields[i]
		if err := knownKeys(fn, []string{cd.Name}, "name", "type", "codec", "subclasses", "nullable", "stale"); err != nil {
			return nil, err
		}
		var fd fieldDoc
		if err := fn.Decode(&fd); err != nil {
			return nil, fail(fn, []string{cd.Name}, "%v", err)
		}
		path := []string{cd.Name, fd.Name}

		f := schema.Field{
			Name: fd.Name,
			Options: schema.Options{
				Nullable: fd.Nullable,
				Stale:    fd.Stale,
				Codec:    fd.Codec,
			},
		}
		if fd.Type != "" {
			ref, err := schema.ParseRef(fd.Type, cd.Params...)
			if err != nil {
				return nil, atLine(withPath(err, path), fn.Line)
			}
			f.Type = ref
		}
		switch fd.Subclasses.Kind {
		case 0:
		case yaml.ScalarNode:
			f.Options.SubclassSet = fd.Subclasses.Value
		case yaml.SequenceNode:
			refs, err := refList(&fd.Subclasses, path, cd.Params)
			if err != nil {
				return nil, err
			}
			f.Options.Subclasses = refs
		default:
			return nil, fail(&fd.Subclasses, path, "subclasses must be a set name or a list of types")
		}
		c.Fields = append(c.Fields, f)
	}
	return c, nil
}

func refList(n *yaml.Node, path []string, params []string) ([]schema.TypeRef, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, fail(n, path, "expected a list of type expressions")
	}
	refs := make([]schema.TypeRef, 0, len(n.Content))
	for _, item := range n.Content {
		if item.Kind != yaml.ScalarNode {
			return nil, fail(item, path, "expected a type expression")
		}
		ref, err := schema.ParseRef(item.Value, params...)
		if err != nil {
			return nil, atLine(withPath(err, path), item.Line)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// knownKeys rejects mapping keys outside keys. Node.Decode does not
// honor the decoder's KnownFields setting.
func knownKeys(n *yaml.Node, path []string, keys ...string) error {
	if n.Kind != yaml.MappingNode {
		return fail(n, path, "expected a mapping")
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if !slices.Contains(keys, n.Content[i].Value) {
			return fail(n.Content[i], path, "unknown key %q", n.Content[i].Value)
		}
	}
	return nil
}

func fail(n *yaml.Node, path []string, format string, args ...any) error {
	return errors.New(errors.PhaseLoad, errors.KindInvalidConfig).
		Path(path...).
		Entry("line", n.Line).
		Detail(format, args...).
		Build()
}

func atLine(err error, line int) error {
	var e *errors.Error
	if errors.As(err, &e) {
		e.Entries = append(e.Entries, errors.Entry{Label: "line", Value: line})
		return e
	}
	return err
}

func withPath(err error, path []string) error {
	var e *errors.Error
	if errors.As(err, &e) && len(e.Path) == 0 {
		e.Path = path
	}
	return err
}
