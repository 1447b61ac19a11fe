package shape

import (
	"log/slog"

	"github.com/specialistvlad/neuraldsl/internal/diag"
	"github.com/specialistvlad/neuraldsl/internal/model"
	"github.com/specialistvlad/neuraldsl/internal/registry"
)

// Options configures a Propagator.
type Options struct {
	// Backend selects the tensor layout. Empty means model.DefaultBackend.
	Backend model.Backend
	// Debug adds the runtime placeholder keys to every trace entry.
	Debug bool
	// Macros expands macro references. Without it a macro reference is
	// treated as identity with a warning.
	Macros *registry.Registry
	// Diagnostics receives warnings. When nil a collector logging to Logger
	// is created.
	Diagnostics *diag.Collector
	Logger      *slog.Logger
}

// LayerStats is the per-layer accounting kept for the report.
type LayerStats struct {
	Index       int
	Layer       string
	InputShape  model.Shape
	OutputShape model.Shape
	Params      int64
}

// Propagator infers shapes layer by layer. It is not safe for concurrent use;
// create one per compilation unit.
type Propagator struct {
	backend model.Backend
	debug   bool
	macros  *registry.Registry
	diags   *diag.Collector
	logger  *slog.Logger

	trace []model.TraceEntry
	stats []LayerStats
}

// New creates a Propagator with an empty trace.
func New(opts Options) *Propagator {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Backend == "" {
		opts.Backend = model.DefaultBackend
	}
	if opts.Diagnostics == nil {
		opts.Diagnostics = diag.NewCollector(opts.Logger)
	}
	return &Propagator{
		backend: opts.Backend,
		debug:   opts.Debug,
		macros:  opts.Macros,
		diags:   opts.Diagnostics,
		logger:  opts.Logger,
	}
}

// Diagnostics returns the collector receiving the propagator's warnings.
func (p *Propagator) Diagnostics() *diag.Collector {
	return p.diags
}

// Propagate applies l to in and records the step. The returned shape is a
// new slice; in is not modified.
func (p *Propagator) Propagate(in model.Shape, l *model.LayerNode) (model.Shape, error) {
	out, params, err := p.apply(in, l)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("Propagated shape.", "layer", l.Type, "input", in.String(), "output", out.String(), "params", params)

	p.trace = append(p.trace, model.TraceEntry{Layer: l.Type, OutputShape: out.Clone(), Debug: p.debug})
	p.stats = append(p.stats, LayerStats{
		Index:       len(p.stats),
		Layer:       l.Type,
		InputShape:  in.Clone(),
		OutputShape: out.Clone(),
		Params:      params,
	})
	return out, nil
}

// Run propagates the network's input through all of its layers. It fills
// net.ShapeInfo and appends the warnings raised during propagation to
// net.Warnings.
func (p *Propagator) Run(net *model.Network) (model.Shape, error) {
	before := p.diags.Len()
	cur := net.Input.Shape.Clone()
	for _, l := range net.Layers {
		next, err := p.Propagate(cur, l)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	net.ShapeInfo = p.Trace()
	net.Warnings = append(net.Warnings, p.diags.Warnings()[before:]...)
	return cur, nil
}

// Trace returns a copy of the trace accumulated so far.
func (p *Propagator) Trace() []model.TraceEntry {
	out := make([]model.TraceEntry, len(p.trace))
	for i, e := range p.trace {
		e.OutputShape = e.OutputShape.Clone()
		out[i] = e
	}
	return out
}

// Stats returns a copy of the per-layer statistics.
func (p *Propagator) Stats() []LayerStats {
	return append([]LayerStats(nil), p.stats...)
}

// TotalParams sums the parameter counts of every propagated layer.
func (p *Propagator) TotalParams() int64 {
	var total int64
	for _, s := range p.stats {
		total += s.Params
	}
	return total
}
