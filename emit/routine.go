package emit

import (
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/hyphen/errors"
	"github.com/wippyai/hyphen/iobuf"
	"github.com/wippyai/hyphen/program"
)

type (
	encodeFn  func(f *frame, v reflect.Value, w iobuf.IO) error
	decodeFn  func(f *frame, r iobuf.IO) (reflect.Value, error)
	measureFn func(f *frame, v reflect.Value) (int, error)
)

// ops is one lowered node: the three entry points share structure.
type ops struct {
	enc  encodeFn
	dec  decodeFn
	meas measureFn
}

// Routine is an emitted encode/decode/measure triple for one program
// signature. Routines are immutable once emitted and safe for concurrent
// use on independent IO handles.
type Routine struct {
	goType  reflect.Type
	enc     encodeFn
	dec     decodeFn
	meas    measureFn
	name    string
	sig     string
	listing string
	ints    int
	vals    int
}

// Name is the routine's display name.
func (r *Routine) Name() string { return r.name }

// Signature is the program signature the routine is cached under.
func (r *Routine) Signature() string { return r.sig }

// Go is the Go type the routine encodes and decodes.
func (r *Routine) Go() reflect.Type { return r.goType }

// FrameSize reports the number of integer and value slots one
// invocation uses.
func (r *Routine) FrameSize() (ints, vals int) { return r.ints, r.vals }

// Listing returns a readable rendering of the lowered bodies.
func (r *Routine) Listing() string { return r.listing }

// Encode writes v to w.
func (r *Routine) Encode(v reflect.Value, w iobuf.IO) error {
	v, err := r.accept(v, errors.PhaseEncode)
	if err != nil {
		return err
	}
	return r.encode(v, w)
}

// Decode reads one value from rd. On error no partial value is returned.
func (r *Routine) Decode(rd iobuf.IO) (reflect.Value, error) {
	v, err := r.decode(rd)
	if err != nil {
		return reflect.Value{}, err
	}
	return v, nil
}

// Measure returns the number of bytes Encode writes for v.
func (r *Routine) Measure(v reflect.Value) (int, error) {
	v, err := r.accept(v, errors.PhaseMeasure)
	if err != nil {
		return 0, err
	}
	return r.measure(v)
}

func (r *Routine) accept(v reflect.Value, phase errors.Phase) (reflect.Value, error) {
	if !v.IsValid() {
		return reflect.Zero(r.goType), nil
	}
	t := v.Type()
	if t == r.goType {
		return v, nil
	}
	if r.goType.Kind() == reflect.Interface && t.Implements(r.goType) {
		return v, nil
	}
	if t.ConvertibleTo(r.goType) && sameFamily(t.Kind(), r.goType.Kind()) {
		return v.Convert(r.goType), nil
	}
	return reflect.Value{}, errors.TypeMismatch(phase, nil, t.String(), r.goType.String())
}

func (r *Routine) encode(v reflect.Value, w iobuf.IO) error {
	f := getFrame(r.ints, r.vals)
	err := r.enc(f, v, w)
	putFrame(f)
	return err
}

func (r *Routine) decode(rd iobuf.IO) (reflect.Value, error) {
	f := getFrame(r.ints, r.vals)
	v, err := r.dec(f, rd)
	putFrame(f)
	return v, err
}

func (r *Routine) measure(v reflect.Value) (int, error) {
	f := getFrame(r.ints, r.vals)
	n, err := r.meas(f, v)
	putFrame(f)
	return n, err
}

// Stats counts emitter cache traffic.
type Stats struct {
	Lookups  int
	Hits     int
	Routines int
}

// Emitter lowers codec programs into routines, one per distinct program
// signature. An Emitter is not safe for concurrent use; the routines it
// returns are.
type Emitter struct {
	log      *zap.Logger
	routines map[string]*Routine
	order    []*Routine
	stats    Stats
	compact  bool
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithCompactVariables names every routine variable "_".
func WithCompactVariables(compact bool) Option {
	return func(e *Emitter) { e.compact = compact }
}

// WithLogger sets the emitter's logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Emitter) {
		if l != nil {
			e.log = l
		}
	}
}

// New creates an emitter.
func New(opts ...Option) *Emitter {
	e := &Emitter{
		log:      Logger(),
		routines: make(map[string]*Routine),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Stats returns cache counters.
func (e *Emitter) Stats() Stats {
	return e.stats
}

// Routines returns every emitted routine in emission order.
func (e *Emitter) Routines() []*Routine {
	return append([]*Routine(nil), e.order...)
}

// Emit returns the routine for n, emitting it and every routine it calls
// on first use.
func (e *Emitter) Emit(n *program.Node) (*Routine, error) {
	if n == nil {
		return nil, errors.New(errors.PhaseEmit, errors.KindUnsupported).
			Detail("nil program").
			Build()
	}
	e.stats.Lookups++
	if r, ok := e.routines[n.Signature()]; ok {
		e.stats.Hits++
		return r, nil
	}

	r := &Routine{goType: n.Go, name: routineName(n), sig: n.Signature()}
	// Cached before lowering so recursive programs call back into it.
	e.routines[r.sig] = r
	mark := len(e.order)

	g := newGen(e)
	body, err := g.body(n)
	if err != nil {
		e.rollback(r, mark)
		return nil, err
	}
	r.enc, r.dec, r.meas = body.enc, body.dec, body.meas
	r.ints, r.vals = g.scope.Size(SlotInt), g.scope.Size(SlotValue)
	r.listing = g.render(r)

	e.order = append(e.order, r)
	e.stats.Routines++
	e.log.Debug("emitted routine",
		zap.String("routine", r.name),
		zap.String("signature", r.sig),
		zap.Int("int slots", r.ints),
		zap.Int("value slots", r.vals))
	return r, nil
}

// rollback forgets r and every routine emitted since mark. Those may hold
// r before its entry points are set.
func (e *Emitter) rollback(r *Routine, mark int) {
	delete(e.routines, r.sig)
	for _, done := range e.order[mark:] {
		delete(e.routines, done.sig)
	}
	e.stats.Routines -= len(e.order) - mark
	e.order = e.order[:mark]
}

func routineName(n *program.Node) string {
	switch n.Op {
	case program.OpComposite:
		return n.ClassName
	case program.OpPolymorphic:
		return "switch" + n.Desc.Name()
	case program.OpCustom:
		return "codec " + n.CodecName
	}
	return n.String()
}

// listing accumulates one indented body.
type listing struct {
	lines  []string
	indent int
}

func (l *listing) line(format string, args ...any) {
	l.lines = append(l.lines, strings.Repeat("  ", l.indent+1)+fmt.Sprintf(format, args...))
}

func (l *listing) open(format string, args ...any) {
	l.line(format, args...)
	l.indent++
}

func (l *listing) close() {
	l.indent--
	l.line("}")
}

// gen is the lowering state of one routine.
type gen struct {
	e     *Emitter
	scope *Scope
	enc   listing
	dec   listing
	meas  listing
}

func newGen(e *Emitter) *gen {
	return &gen{e: e, scope: NewScope(e.compact)}
}

func (g *gen) body(n *program.Node) (ops, error) {
	path := []string{routineName(n)}
	switch n.Op {
	case program.OpComposite:
		return g.composite(n, path)
	case program.OpPolymorphic:
		return g.polymorphic(n, path)
	case program.OpCustom:
		return g.custom(n, path)
	}
	out := g.scope.Declare("out", SlotValue)
	return g.lower(n, "v", out.Name, path)
}

func (g *gen) render(r *Routine) string {
	var b strings.Builder
	fmt.Fprintf(&b, "routine %s [ints=%d vals=%d]\n", r.name, r.ints, r.vals)
	for _, sec := range []struct {
		head string
		body *listing
	}{
		{"encode(v):", &g.enc},
		{"decode():", &g.dec},
		{"measure(v):", &g.meas},
	} {
		b.WriteString(sec.head)
		b.WriteByte('\n')
		for _, l := range sec.body.lines {
			b.WriteString(l)
			b.WriteByte('\n')
		}
	}
	return b.String()
}
