package diag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/neuraldsl/internal/model"
)

// Severity of a collected diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Diagnostic is one collected message.
type Diagnostic struct {
	Severity Severity
	Summary  string
	Detail   string
	Subject  hcl.Range
}

// Message is the text reported to users: the detail when present, otherwise
// the summary.
func (d Diagnostic) Message() string {
	if d.Detail != "" {
		return d.Detail
	}
	return d.Summary
}

// Collector accumulates the diagnostics of one compilation unit.
type Collector struct {
	logger *slog.Logger
	diags  []Diagnostic
}

// NewCollector creates a collector that forwards every diagnostic to logger.
// A nil logger discards them.
func NewCollector(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Collector{logger: logger}
}

// Emit records a diagnostic. An error-severity diagnostic is not recorded; it
// is returned as a *ValidationError for the caller to abort with. Warnings and
// info always return nil.
func (c *Collector) Emit(sev Severity, rng hcl.Range, summary, detail string) error {
	d := Diagnostic{Severity: sev, Summary: summary, Detail: detail, Subject: rng}
	if sev == SeverityError {
		c.logger.Debug("Compilation error.", "message", d.Message(), "line", rng.Start.Line, "column", rng.Start.Column)
		return NewValidationError(rng, summary, detail)
	}

	c.diags = append(c.diags, d)
	level := slog.LevelWarn
	if sev == SeverityInfo {
		level = slog.LevelInfo
	}
	c.logger.Log(context.Background(), level, d.Message(), "line", rng.Start.Line, "column", rng.Start.Column)
	return nil
}

// Warn records a warning.
func (c *Collector) Warn(rng hcl.Range, summary, format string, args ...any) {
	_ = c.Emit(SeverityWarning, rng, summary, fmt.Sprintf(format, args...))
}

// Info records an informational message.
func (c *Collector) Info(rng hcl.Range, summary, format string, args ...any) {
	_ = c.Emit(SeverityInfo, rng, summary, fmt.Sprintf(format, args...))
}

// Diagnostics returns the recorded diagnostics in emission order.
func (c *Collector) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), c.diags...)
}

// Len returns the number of recorded diagnostics.
func (c *Collector) Len() int {
	return len(c.diags)
}

// Warnings converts the recorded diagnostics into model warnings.
func (c *Collector) Warnings() []model.Warning {
	out := make([]model.Warning, 0, len(c.diags))
	for _, d := range c.diags {
		w := model.Warning{
			Severity: model.SeverityWarning,
			Message:  d.Message(),
			Line:     d.Subject.Start.Line,
		}
		if d.Severity == SeverityInfo {
			w.Severity = model.SeverityInfo
		}
		if d.Subject.Start.Column > 0 {
			col := d.Subject.Start.Column
			w.Column = &col
		}
		out = append(out, w)
	}
	return out
}

// HCL converts the recorded diagnostics into hcl.Diagnostics. Info messages
// are reported as warnings since hcl has no lower severity.
func (c *Collector) HCL() hcl.Diagnostics {
	out := make(hcl.Diagnostics, 0, len(c.diags))
	for _, d := range c.diags {
		rng := d.Subject
		out = append(out, &hcl.Diagnostic{
			Severity: hcl.DiagWarning,
			Summary:  d.Summary,
			Detail:   d.Detail,
			Subject:  &rng,
		})
	}
	return out
}
