// Package errors provides the structured diagnostics shared by the scan,
// compile and emit stages and by generated routines.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). Every error may carry an ordered list of labeled entries:
//
//	err := errors.New(errors.PhaseScan, errors.KindUnknownType).
//		Path("Outer", "Box").
//		Entry("source class", "Box").
//		Entry("type variable", "T").
//		Build()
//
// Scan-side errors (PhaseScan, PhaseConfig, PhaseCompile, PhaseEmit) are fatal
// to producing routines for a root type. Runtime errors (PhaseEncode,
// PhaseDecode, PhaseMeasure) are raised inside a routine at the offending
// value or byte.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
