package program

import (
	"reflect"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/hyphen/descriptor"
	"github.com/wippyai/hyphen/errors"
	"github.com/wippyai/hyphen/schema"
)

// Stats counts compiler cache traffic.
type Stats struct {
	Lookups int
	Hits    int
	Nodes   int
}

// Compiler lowers descriptors into codec programs. Programs are memoized
// per descriptor, so the mapping is one-to-one for the compiler's lifetime.
// A Compiler is not safe for concurrent use.
type Compiler struct {
	reg   *schema.Registry
	log   *zap.Logger
	nodes map[*descriptor.Descriptor]*Node
	goIDs map[reflect.Type]int
	stats Stats
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the compiler's logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Compiler) {
		if l != nil {
			c.log = l
		}
	}
}

// NewCompiler creates a compiler resolving codec names against reg.
func NewCompiler(reg *schema.Registry, opts ...Option) *Compiler {
	c := &Compiler{
		reg:   reg,
		log:   Logger(),
		nodes: make(map[*descriptor.Descriptor]*Node),
		goIDs: make(map[reflect.Type]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stats returns cache counters.
func (c *Compiler) Stats() Stats {
	return c.stats
}

// Compile returns the program for d.
func (c *Compiler) Compile(d *descriptor.Descriptor) (*Node, error) {
	if d == nil {
		return nil, errors.New(errors.PhaseCompile, errors.KindUnsupported).
			Detail("nil descriptor").
			Build()
	}
	c.stats.Lookups++
	if n, ok := c.nodes[d]; ok {
		c.stats.Hits++
		return n, nil
	}
	n, err := c.compile(d)
	if err != nil {
		return nil, err
	}
	c.log.Debug("compiled program",
		zap.String("descriptor", d.String()),
		zap.String("op", n.Op.String()),
		zap.String("signature", n.sig))
	return n, nil
}

func (c *Compiler) store(d *descriptor.Descriptor, n *Node) *Node {
	c.nodes[d] = n
	c.stats.Nodes++
	return n
}

func (c *Compiler) compile(d *descriptor.Descriptor) (*Node, error) {
	if d.Annotated() {
		return c.compileAnnotated(d)
	}
	switch d.Shape() {
	case descriptor.ShapeScalar:
		n := &Node{Desc: d, Go: d.Go(), Op: OpScalar, Kind: d.Kind()}
		n.sig = "S" + d.Kind().String() + c.goTag(n.Go)
		return c.store(d, n), nil

	case descriptor.ShapeArray:
		elem, err := c.Compile(d.Elem())
		if err != nil {
			return nil, err
		}
		n := &Node{Desc: d, Go: d.Go(), Op: OpArray, Elem: elem, Fixed: d.Fixed()}
		n.Bulk = bulk(n)
		n.sig = "A" + strconv.Itoa(n.Fixed) + "(" + elem.sig + ")" + c.goTag(n.Go)
		return c.store(d, n), nil

	case descriptor.ShapePointer:
		elem, err := c.Compile(d.Elem())
		if err != nil {
			return nil, err
		}
		n := &Node{Desc: d, Go: d.Go(), Op: OpPointer, Elem: elem}
		n.sig = "P(" + elem.sig + ")" + c.goTag(n.Go)
		return c.store(d, n), nil

	case descriptor.ShapeComposite:
		return c.compileComposite(d)

	case descriptor.ShapePolymorphic:
		return c.compilePolymorphic(d)

	case descriptor.ShapeUnknown:
		n := &Node{Desc: d, Go: d.Go(), Op: OpFatal, Reason: d.Reason(), Entries: d.Entries()}
		n.sig = "F" + d.Key()
		return c.store(d, n), nil
	}
	return nil, errors.Unsupported(errors.PhaseCompile, nil, "descriptor shape "+d.Shape().String())
}

// compileAnnotated layers member options over the base program: stale
// replaces it, a codec wraps it in a custom node and nullable wraps the
// result in a presence check.
func (c *Compiler) compileAnnotated(d *descriptor.Descriptor) (*Node, error) {
	opts := d.Options()
	if opts.Stale {
		n := &Node{Desc: d, Go: d.Go(), Op: OpSkip}
		n.sig = "K" + c.goTag(n.Go)
		return c.store(d, n), nil
	}

	inner, err := c.Compile(d.Base())
	if err != nil {
		return nil, err
	}
	if opts.Codec != "" {
		codec, ok := c.reg.Codec(opts.Codec)
		if !ok {
			return nil, errors.New(errors.PhaseCompile, errors.KindInvalidConfig).
				GoType(d.Go().String()).
				Detail("codec %q is not registered", opts.Codec).
				Build()
		}
		custom := &Node{Desc: d, Go: d.Go(), Op: OpCustom, Codec: codec, CodecName: opts.Codec, Elem: inner}
		custom.sig = "X" + opts.Codec + c.goTag(custom.Go)
		inner = custom
	}
	if opts.Nullable {
		n := &Node{Desc: d, Go: d.Go(), Op: OpNullable, Elem: inner}
		n.sig = "N(" + inner.sig + ")"
		inner = n
	}
	return c.store(d, inner), nil
}

func (c *Compiler) compileComposite(d *descriptor.Descriptor) (*Node, error) {
	if !d.Complete() {
		return nil, errors.New(errors.PhaseCompile, errors.KindUnsupported).
			Detail("composite %s has unresolved members", d.Name()).
			Build()
	}
	n := &Node{Desc: d, Go: d.Go(), Op: OpComposite, ClassName: d.Name(), Dynamic: d.Dynamic()}
	n.sig = "C" + d.Key()
	if ctor, ok := d.Constructor(); ok {
		n.Constructor = ctor
	}
	// Stored before members compile so cycles close on this node.
	c.store(d, n)

	fields := d.Fields()
	n.Fields = make([]Field, len(fields))
	for i, f := range fields {
		fn, err := c.Compile(f.Type)
		if err != nil {
			delete(c.nodes, d)
			return nil, err
		}
		n.Fields[i] = Field{Node: fn, Name: f.Name, Index: f.Index}
	}
	return n, nil
}

func (c *Compiler) compilePolymorphic(d *descriptor.Descriptor) (*Node, error) {
	cands := d.Candidates()
	n := &Node{Desc: d, Go: d.Go(), Op: OpPolymorphic, TagWidth: TagWidth(len(cands))}
	n.Cases = make([]*Node, len(cands))
	sigs := make([]string, len(cands))
	for i, cand := range cands {
		cn, err := c.Compile(cand)
		if err != nil {
			return nil, err
		}
		n.Cases[i] = cn
		sigs[i] = cn.sig
	}
	n.sig = "V" + strconv.Itoa(n.TagWidth) + "(" + strings.Join(sigs, "|") + ")" + c.goTag(n.Go)
	return c.store(d, n), nil
}

// goTag identifies the Go carrier type inside a signature. Two programs
// with the same wire layout but different carriers need different routines.
func (c *Compiler) goTag(t reflect.Type) string {
	id, ok := c.goIDs[t]
	if !ok {
		id = len(c.goIDs)
		c.goIDs[t] = id
	}
	return "@" + strconv.Itoa(id)
}

// bulk reports whether an array can move as one counted scalar run: a
// variable-length slice whose element is a plain scalar carried by the
// kind's native Go type.
func bulk(n *Node) bool {
	if n.Fixed >= 0 || n.Elem.Op != OpScalar {
		return false
	}
	native := n.Elem.Kind.GoType()
	return n.Elem.Go == native && n.Go == reflect.SliceOf(native)
}
