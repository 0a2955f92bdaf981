// Package hyphen compiles type shapes into cached encode, decode and
// measure routines over a pluggable byte boundary.
//
// # Architecture Overview
//
// The library is organized into packages along the compilation pipeline:
//
//	hyphen/              Session, Serializer[T], options
//	├── schema/          Declared classes, type references, member options
//	├── descriptor/      Canonical type descriptors and generic contexts
//	├── scan/            Type graph resolution into descriptors
//	├── program/         Descriptor to codec program compiler
//	├── emit/            Codec program to routine emission
//	├── iobuf/           IO boundary: heap and growable backends
//	│   └── wasmio/      wazero linear memory backend
//	├── witschema/       Descriptor to WIT type mapping
//	├── schemafile/      YAML schema files
//	├── errors/          Structured diagnostics
//	├── internal/
//	│   └── jsonvalue/   JSON bridge for descriptor-shaped values
//	└── cmd/hyphen/      CLI and interactive TUI
//
// # Quick Start
//
// Compile a Go type and round-trip a value:
//
//	type Pair struct {
//		A int32
//		B string
//	}
//
//	s := hyphen.NewSession()
//	pairs, err := hyphen.Build[Pair](s)
//	data, err := pairs.Marshal(Pair{A: 5, B: "hi"}) // 10 bytes
//	p, err := pairs.Unmarshal(data)
//
// Declared classes need no Go type. Their values are *schema.Record:
//
//	reg := schema.NewRegistry()
//	reg.MustDeclare(&schema.Class{Name: "Box", Params: []string{"T"},
//		Fields: []schema.Field{{Name: "held", Type: schema.Var{Name: "T"}}}})
//	s := hyphen.NewSession(hyphen.WithRegistry(reg))
//	boxes, err := hyphen.BuildRef[*schema.Record](s, schema.MustParseRef("Box<i32>"))
//
// # Member Options
//
// Struct fields take options from the hyphen tag:
//
//	Next  *Node    `hyphen:",nullable"`
//	Pet   Animal   `hyphen:"pet,subclasses=pets"`
//	Cache string   `hyphen:",stale"`
//	When  int64    `hyphen:",codec=unix"`
//
// Subclass sets and codecs are registered on the schema.Registry.
//
// # Concurrency
//
// A Session serializes compilation. Routines and serializers are safe for
// concurrent use as long as each IO handle is used by one call at a time.
//
// # Error Handling
//
// All errors are *errors.Error with a phase, a kind and ordered diagnostic
// entries:
//
//	var e *errors.Error
//	if errors.As(err, &e) {
//		fmt.Println(e.Kind, e.Path, e.Entries)
//	}
package hyphen
