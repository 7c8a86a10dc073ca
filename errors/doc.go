// Package errors provides structured error types for the gpu-runtime library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the offending host/IR type names, the operation path
// and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLower, errors.KindUnsupportedType).
//		Path("sin").
//		HostType("int8").
//		Detail("no libdevice template").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnsupportedType(errors.PhaseEmit, "int8")
//	err := errors.DriverFailure("cuCtxSetCurrent", result)
//
// All errors implement the standard error interface and support errors.Is/As.
// Matching with errors.Is compares Phase and Kind; use IsKind to match a Kind
// regardless of phase.
package errors
