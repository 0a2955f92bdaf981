package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseScan    Phase = "scan"    // type graph resolution
	PhaseConfig  Phase = "config"  // per-member option validation
	PhaseCompile Phase = "compile" // descriptor to codec program
	PhaseEmit    Phase = "emit"    // codec program to routine
	PhaseEncode  Phase = "encode"  // Go value to bytes
	PhaseDecode  Phase = "decode"  // bytes to Go value
	PhaseMeasure Phase = "measure" // byte counting
	PhaseIO      Phase = "io"      // byte storage access
	PhaseLoad    Phase = "load"    // schema file loading
)

// Kind categorizes the error
type Kind string

const (
	KindUnknownType          Kind = "unknown_type"
	KindAmbiguousSubclass    Kind = "ambiguous_subclass"
	KindMissingAccessor      Kind = "missing_accessor"
	KindInvalidConfig        Kind = "invalid_config"
	KindRecursiveType        Kind = "recursive_type"
	KindUnsupported          Kind = "unsupported"
	KindInvalidDiscriminator Kind = "invalid_discriminator"
	KindUnmatchedSubclass    Kind = "unmatched_subclass"
	KindNilPointer           Kind = "nil_pointer"
	KindOutOfBounds          Kind = "out_of_bounds"
	KindInvalidData          Kind = "invalid_data"
	KindFatalPlaceholder     Kind = "fatal_placeholder"
	KindClosed               Kind = "closed"
	KindTypeMismatch         Kind = "type_mismatch"
)

// Entry is one labeled piece of diagnostic context.
type Entry struct {
	Value any
	Label string
}

func (e Entry) String() string {
	return e.Label + "=" + fmt.Sprint(e.Value)
}

// Error is the structured error type used throughout the compiler and routines
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	GoType  string
	Detail  string
	Path    []string
	Entries []Entry
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, " > "))
	}

	if e.GoType != "" {
		b.WriteString(": Go type ")
		b.WriteString(e.GoType)
	}

	if e.Detail != "" {
		if e.GoType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if len(e.Entries) > 0 {
		b.WriteString(" {")
		for i, entry := range e.Entries {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(entry.String())
		}
		b.WriteByte('}')
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Lookup returns the first entry value with the given label.
func (e *Error) Lookup(label string) (any, bool) {
	for _, entry := range e.Entries {
		if entry.Label == label {
			return entry.Value, true
		}
	}
	return nil, false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the enclosing type chain
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Entry appends a labeled diagnostic entry. Order is preserved.
func (b *Builder) Entry(label string, value any) *Builder {
	b.err.Entries = append(b.err.Entries, Entry{Label: label, Value: value})
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// UnknownType reports a type variable that no enclosing generic context binds.
func UnknownType(path []string, source, failing, variable string) *Error {
	return New(PhaseScan, KindUnknownType).
		Path(path...).
		Detail("type variable %s could not be identified", variable).
		Entry("source class", source).
		Entry("failing class", failing).
		Entry("type variable", variable).
		Build()
}

// AmbiguousSubclass reports two polymorphic candidates that cannot be told apart.
func AmbiguousSubclass(path []string, first, second string) *Error {
	return New(PhaseScan, KindAmbiguousSubclass).
		Path(path...).
		Detail("candidates %s and %s are indistinguishable", first, second).
		Entry("candidate", first).
		Entry("conflicts with", second).
		Build()
}

// MissingAccessor reports a member with no usable field or constructor binding.
func MissingAccessor(path []string, class, member string) *Error {
	return New(PhaseScan, KindMissingAccessor).
		Path(path...).
		Detail("no accessor for member %q", member).
		Entry("class", class).
		Entry("member", member).
		Build()
}

// InvalidConfig reports a contradictory or unrecognized option combination.
func InvalidConfig(path []string, detail string, args ...any) *Error {
	return New(PhaseConfig, KindInvalidConfig).
		Path(path...).
		Detail(detail, args...).
		Build()
}

// InvalidDiscriminator creates an out-of-range discriminator error for polymorphic decodes
func InvalidDiscriminator(path []string, disc uint32, count int) *Error {
	return New(PhaseDecode, KindInvalidDiscriminator).
		Path(path...).
		Value(disc).
		Detail("discriminator %d out of range [0, %d)", disc, count).
		Entry("discriminator", disc).
		Entry("valid range", fmt.Sprintf("[0, %d)", count)).
		Build()
}

// UnmatchedSubclass reports a runtime value that matches no declared candidate.
func UnmatchedSubclass(path []string, goType string, candidates []string) *Error {
	return New(PhaseEncode, KindUnmatchedSubclass).
		Path(path...).
		GoType(goType).
		Detail("value matches none of %d declared candidates", len(candidates)).
		Entry("value class", goType).
		Entry("candidates", strings.Join(candidates, ", ")).
		Build()
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, path []string, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Path:   path,
		Detail: what,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, pos, want, limit int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("access of %d bytes at position %d exceeds limit %d", want, pos, limit),
		Value:  pos,
	}
}

// NilPointer creates a nil pointer error
func NilPointer(phase Phase, path []string, goType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNilPointer,
		Path:   path,
		GoType: goType,
		Detail: "nil value in non-nullable member",
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, expected string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		GoType: goType,
		Detail: "expected " + expected,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// IsScanError reports whether err was raised while producing routines.
func IsScanError(err error) bool {
	var e *Error
	if !As(err, &e) {
		return false
	}
	switch e.Phase {
	case PhaseScan, PhaseConfig, PhaseCompile, PhaseEmit:
		return true
	}
	return false
}

// IsRuntimeError reports whether err was raised inside a generated routine.
func IsRuntimeError(err error) bool {
	var e *Error
	if !As(err, &e) {
		return false
	}
	switch e.Phase {
	case PhaseEncode, PhaseDecode, PhaseMeasure:
		return true
	}
	return false
}

// IsConfigError reports whether err is a per-member configuration error.
func IsConfigError(err error) bool {
	var e *Error
	return As(err, &e) && e.Kind == KindInvalidConfig
}

// As is errors.As from the standard library, re-exported so callers need one import.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Is is errors.Is from the standard library.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
