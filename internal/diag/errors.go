package diag

import (
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2"
)

// detailed is implemented by every error type of this package.
type detailed interface {
	error
	HCLDiagnostic() *hcl.Diagnostic
}

type baseError struct {
	diag *hcl.Diagnostic
}

func newBase(rng hcl.Range, summary, detail string) baseError {
	r := rng
	return baseError{diag: &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  summary,
		Detail:   detail,
		Subject:  &r,
	}}
}

// Error renders "<position>: <summary>; <detail>".
func (e baseError) Error() string {
	msg := e.diag.Summary
	if e.diag.Detail != "" {
		msg += "; " + e.diag.Detail
	}
	if pos := Position(e.diag.Subject); pos != "" {
		return pos + ": " + msg
	}
	return msg
}

// HCLDiagnostic exposes the underlying diagnostic.
func (e baseError) HCLDiagnostic() *hcl.Diagnostic {
	return e.diag
}

// Summary is the short form of the message.
func (e baseError) Summary() string { return e.diag.Summary }

// Detail is the long form of the message.
func (e baseError) Detail() string { return e.diag.Detail }

// Range is the source range the error refers to.
func (e baseError) Range() hcl.Range {
	if e.diag.Subject == nil {
		return hcl.Range{}
	}
	return *e.diag.Subject
}

// SyntaxError is returned when source text does not match the grammar.
type SyntaxError struct{ baseError }

// ValidationError is returned when well-formed source breaks a domain rule.
type ValidationError struct{ baseError }

// ShapeError is returned when shape propagation produces an invalid shape.
type ShapeError struct{ baseError }

// MacroResolutionError is returned for a reference to an undefined macro.
type MacroResolutionError struct {
	baseError
	Name       string
	Suggestion string
}

// NewSyntaxError creates a SyntaxError.
func NewSyntaxError(rng hcl.Range, summary, detail string) *SyntaxError {
	return &SyntaxError{newBase(rng, summary, detail)}
}

// NewValidationError creates a ValidationError.
func NewValidationError(rng hcl.Range, summary, detail string) *ValidationError {
	return &ValidationError{newBase(rng, summary, detail)}
}

// Validationf creates a ValidationError with a formatted detail.
func Validationf(rng hcl.Range, summary, format string, args ...any) *ValidationError {
	return NewValidationError(rng, summary, fmt.Sprintf(format, args...))
}

// NewShapeError creates a ShapeError.
func NewShapeError(rng hcl.Range, summary, detail string) *ShapeError {
	return &ShapeError{newBase(rng, summary, detail)}
}

// NewMacroResolutionError creates a MacroResolutionError for name. known is
// the set of names that could have been meant; the closest one, if any, is
// offered as a suggestion.
func NewMacroResolutionError(rng hcl.Range, name string, known []string) *MacroResolutionError {
	detail := fmt.Sprintf("%q is neither a built-in layer nor a defined macro.", name)
	suggestion := Suggest(name, known)
	if suggestion != "" {
		detail += fmt.Sprintf(" Did you mean %q?", suggestion)
	}
	return &MacroResolutionError{
		baseError:  newBase(rng, "Undefined macro", detail),
		Name:       name,
		Suggestion: suggestion,
	}
}

// Diagnostics converts err into hcl.Diagnostics for rendering. Errors that do
// not come from this package become a single diagnostic without a subject.
func Diagnostics(err error) hcl.Diagnostics {
	if err == nil {
		return nil
	}
	var d detailed
	if errors.As(err, &d) {
		return hcl.Diagnostics{d.HCLDiagnostic()}
	}
	return hcl.Diagnostics{{
		Severity: hcl.DiagError,
		Summary:  err.Error(),
	}}
}

// Position renders a range as "file:line,col" or "line N, column M" when
// there is no file name. It returns "" for an empty range.
func Position(rng *hcl.Range) string {
	if rng == nil || rng.Start.Line == 0 {
		return ""
	}
	if rng.Filename == "" {
		return fmt.Sprintf("line %d, column %d", rng.Start.Line, rng.Start.Column)
	}
	return fmt.Sprintf("%s:%d,%d", rng.Filename, rng.Start.Line, rng.Start.Column)
}
