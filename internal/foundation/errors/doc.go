// Package errors provides the classified error primitives used across bookbuilder.
//
// A ClassifiedError carries a category (what failed), a severity (whether the
// build can continue) and structured context. The CLI adapter turns these into
// exit codes and log records.
//
// Example usage:
//
//	err := errors.WrapError(cause, errors.CategoryNotebook, "read notebook").
//		WithContext("chapter", id).
//		WithContext("path", path).
//		Build()
//
// Fatal errors (missing assets, bad configuration) abort a build before any
// chapter is processed. Chapter-level errors are recorded in the build report
// and the build moves on.
package errors
