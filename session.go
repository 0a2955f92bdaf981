package hyphen

import (
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/hyphen/descriptor"
	"github.com/wippyai/hyphen/emit"
	"github.com/wippyai/hyphen/program"
	"github.com/wippyai/hyphen/scan"
	"github.com/wippyai/hyphen/schema"
)

type config struct {
	reg     *schema.Registry
	log     *zap.Logger
	compact bool
	lenient bool
}

// Option configures a Session.
type Option func(*config)

// WithRegistry compiles against reg instead of an empty registry.
func WithRegistry(reg *schema.Registry) Option {
	return func(c *config) { c.reg = reg }
}

// WithLogger sets the logger for the session and its pipeline stages.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithCompactVariables names every routine variable "_" in listings.
func WithCompactVariables(compact bool) Option {
	return func(c *config) { c.compact = compact }
}

// WithLenientScan lowers unresolvable members to fatal placeholders
// instead of failing the scan.
func WithLenientScan(lenient bool) Option {
	return func(c *config) { c.lenient = lenient }
}

// Stats aggregates cache counters across the pipeline.
type Stats struct {
	Scan        scan.Stats
	Program     program.Stats
	Emit        emit.Stats
	Descriptors int
}

// Session owns one scan/compile/emit pipeline and its caches. Compilation
// is serialized by the session; routines it returns are immutable and may
// be shared freely.
type Session struct {
	reg      *schema.Registry
	tab      *descriptor.Table
	scanner  *scan.Scanner
	compiler *program.Compiler
	emitter  *emit.Emitter
	log      *zap.Logger
	mu       sync.Mutex
}

// NewSession creates a session.
func NewSession(opts ...Option) *Session {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.reg == nil {
		cfg.reg = schema.NewRegistry()
	}
	if cfg.log == nil {
		cfg.log = Logger()
	}

	tab := descriptor.NewTable()
	return &Session{
		reg:      cfg.reg,
		tab:      tab,
		scanner:  scan.New(cfg.reg, tab, scan.WithLenient(cfg.lenient), scan.WithLogger(cfg.log.Named("scan"))),
		compiler: program.NewCompiler(cfg.reg, program.WithLogger(cfg.log.Named("program"))),
		emitter:  emit.New(emit.WithCompactVariables(cfg.compact), emit.WithLogger(cfg.log.Named("emit"))),
		log:      cfg.log,
	}
}

// Registry returns the registry the session compiles against.
func (s *Session) Registry() *schema.Registry {
	return s.reg
}

// Describe scans ref, bound to goType when non-nil, into its canonical
// descriptor.
func (s *Session) Describe(ref schema.TypeRef, goType reflect.Type) (*descriptor.Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanner.Scan(ref, goType)
}

// Compile returns the routine for ref, bound to goType when non-nil.
func (s *Session) Compile(ref schema.TypeRef, goType reflect.Type) (*emit.Routine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.scanner.Scan(ref, goType)
	if err != nil {
		return nil, err
	}
	n, err := s.compiler.Compile(d)
	if err != nil {
		return nil, err
	}
	r, err := s.emitter.Emit(n)
	if err != nil {
		return nil, err
	}

	st := s.stats()
	s.log.Debug("compiled root",
		zap.String("type", d.String()),
		zap.String("routine", r.Name()),
		zap.Int("scan hits", st.Scan.Hits),
		zap.Int("scan lookups", st.Scan.Lookups),
		zap.Int("routines", st.Emit.Routines))
	return r, nil
}

// Routines returns every routine emitted so far.
func (s *Session) Routines() []*emit.Routine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emitter.Routines()
}

// Stats returns cache counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats()
}

func (s *Session) stats() Stats {
	return Stats{
		Scan:        s.scanner.Stats(),
		Program:     s.compiler.Stats(),
		Emit:        s.emitter.Stats(),
		Descriptors: s.tab.Len(),
	}
}
