// Package errors provides structured error types for the decompiler.
//
// Errors are categorized by Phase (which pipeline stage failed) and Kind
// (error category). The Error type carries the offending node dump, its
// kind, the instruction offset when one is known, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseTypeInfer, errors.KindTypeMismatch).
//		Node("c ? 1 : false", "Operator").
//		Detail("conditional branches have different types").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Unsupported(errors.PhaseReconstruct, "opcode calli")
//	err := errors.StackUnderflow(0x1c, "add", 2, 1)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
