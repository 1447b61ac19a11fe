// Package diag holds the compiler's diagnostics.
//
// Fatal problems are returned as typed errors (SyntaxError, ValidationError,
// ShapeError, MacroResolutionError). Each wraps an *hcl.Diagnostic so that the
// command line can render it with a source snippet, and callers can tell the
// kinds apart with errors.As.
//
// Non-fatal warnings and info messages go through a Collector. A Collector
// belongs to exactly one compilation unit: it is created when the unit starts,
// records diagnostics in emission order, forwards each one to its logger, and
// is discarded with the unit.
package diag
