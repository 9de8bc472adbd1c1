// Package errors provides structured error types for the script-bridge library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type includes the global or type name involved, the
// Go type, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseBind, errors.KindDuplicateType).
//		Name("Entity").
//		GoType("main.Entity").
//		Detail("already bound to a different host type").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Duplicate("Entity", "main.Entity")
//	err := errors.Closed(errors.PhaseOffer)
//
// All errors implement the standard error interface and support errors.Is/As.
// Setup errors (bind-time and offer-time misconfiguration) abort the
// operation that triggered them and leave previously bound state intact.
package errors
