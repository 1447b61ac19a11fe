package transform

import (
	"log/slog"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/neuraldsl/internal/diag"
	"github.com/specialistvlad/neuraldsl/internal/model"
	"github.com/specialistvlad/neuraldsl/internal/parser"
	"github.com/specialistvlad/neuraldsl/internal/registry"
	"github.com/specialistvlad/neuraldsl/internal/syntax"
)

// Transformer converts syntax trees of one compilation unit into model
// values. Macros defined through it stay visible to later calls, and
// non-fatal diagnostics accumulate in its collector.
type Transformer struct {
	logger *slog.Logger
	diags  *diag.Collector
	macros *registry.Registry
}

// New creates a Transformer with an empty macro registry. A nil logger
// discards log output.
func New(logger *slog.Logger) *Transformer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Transformer{
		logger: logger,
		diags:  diag.NewCollector(logger),
		macros: registry.New(logger),
	}
}

// Diagnostics returns the collector holding the unit's warnings and info
// messages.
func (t *Transformer) Diagnostics() *diag.Collector {
	return t.diags
}

// Registry returns the unit's macro registry.
func (t *Transformer) Registry() *registry.Registry {
	return t.macros
}

// Result is the outcome of transforming a whole file.
type Result struct {
	Network  *model.Network
	Research *model.Research
	// Macros lists the names of the macros the file defined, in order.
	Macros []string
}

// File transforms every declaration of f in source order. A file holds at
// most one network and at most one research block.
func (t *Transformer) File(f *syntax.File) (*Result, error) {
	res := &Result{}
	var networkAt, researchAt hcl.Range
	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *syntax.Define:
			if _, err := t.Define(d); err != nil {
				return nil, err
			}
			res.Macros = append(res.Macros, d.Name)
		case *syntax.Network:
			if res.Network != nil {
				return nil, diag.Validationf(d.Rng, "Multiple networks",
					"A file may declare one network; another one starts at line %d.", networkAt.Start.Line)
			}
			n, err := t.Network(d)
			if err != nil {
				return nil, err
			}
			res.Network, networkAt = n, d.Rng
		case *syntax.Research:
			if res.Research != nil {
				return nil, diag.Validationf(d.Rng, "Multiple research blocks",
					"A file may declare one research block; another one starts at line %d.", researchAt.Start.Line)
			}
			r, err := t.Research(d)
			if err != nil {
				return nil, err
			}
			res.Research, researchAt = r, d.Rng
		}
	}
	return res, nil
}

// Define transforms the body of a macro and registers it.
func (t *Transformer) Define(d *syntax.Define) (*registry.Macro, error) {
	layers, err := t.Layers(d.Layers)
	if err != nil {
		return nil, err
	}
	if err := t.macros.Register(d.Name, layers, d.NameRange); err != nil {
		return nil, err
	}
	m, _ := t.macros.Lookup(d.Name)
	return m, nil
}

// ParseLayer parses and transforms a single layer statement.
func ParseLayer(filename string, src []byte) (*model.LayerNode, error) {
	l, err := parser.ParseLayer(filename, src)
	if err != nil {
		return nil, err
	}
	return New(nil).Layer(l)
}

// ParseDefine parses and transforms a macro definition.
func ParseDefine(filename string, src []byte) (*registry.Macro, error) {
	d, err := parser.ParseDefine(filename, src)
	if err != nil {
		return nil, err
	}
	return New(nil).Define(d)
}

// ParseNetwork parses and transforms a network block.
func ParseNetwork(filename string, src []byte) (*model.Network, error) {
	n, err := parser.ParseNetwork(filename, src)
	if err != nil {
		return nil, err
	}
	return New(nil).Network(n)
}

// ParseResearch parses and transforms a research block.
func ParseResearch(filename string, src []byte) (*model.Research, error) {
	r, err := parser.ParseResearch(filename, src)
	if err != nil {
		return nil, err
	}
	return New(nil).Research(r)
}

// ParseFile parses and transforms a whole file with a fresh Transformer.
func ParseFile(filename string, src []byte, logger *slog.Logger) (*Result, error) {
	f, err := parser.ParseFile(filename, src)
	if err != nil {
		return nil, err
	}
	return New(logger).File(f)
}
