package registry

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/neuraldsl/internal/diag"
	"github.com/specialistvlad/neuraldsl/internal/model"
)

// Macro is a registered layer block.
type Macro struct {
	Name   string
	Layers []*model.LayerNode
	Range  hcl.Range
}

// Registry holds the macros of one compilation unit.
type Registry struct {
	logger *slog.Logger
	macros map[string]*Macro
}

// New creates an empty registry. A nil logger discards debug output.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		logger: logger,
		macros: make(map[string]*Macro),
	}
}

// Register records a macro. The registry keeps its own copy of layers.
func (r *Registry) Register(name string, layers []*model.LayerNode, rng hcl.Range) error {
	if _, builtin := model.LookupKind(name); builtin {
		return diag.Validationf(rng, "Macro shadows a built-in layer",
			"%q is a built-in layer kind and cannot be redefined with define.", name)
	}
	if model.IsCustomLayerName(name) {
		return diag.Validationf(rng, "Macro shadows a custom layer",
			"%q follows the custom layer naming convention (<Name>Layer) and cannot be used as a macro name.", name)
	}
	if prev, exists := r.macros[name]; exists {
		return diag.Validationf(rng, "Duplicate macro",
			"Macro %q is already defined at %s.", name, describe(prev.Range))
	}
	if len(layers) == 0 {
		return diag.Validationf(rng, "Empty macro", "Macro %q must contain at least one layer.", name)
	}

	r.logger.Debug("Registering macro.", "name", name, "layers", len(layers))
	r.macros[name] = &Macro{Name: name, Layers: model.CloneLayers(layers), Range: rng}
	return nil
}

// Lookup returns the macro registered under name.
func (r *Registry) Lookup(name string) (*Macro, bool) {
	m, ok := r.macros[name]
	return m, ok
}

// Resolve returns the macro registered under name, or a
// *diag.MacroResolutionError pointing at rng.
func (r *Registry) Resolve(name string, rng hcl.Range) (*Macro, error) {
	if m, ok := r.macros[name]; ok {
		return m, nil
	}
	candidates := append(r.Names(), model.KindNames()...)
	return nil, diag.NewMacroResolutionError(rng, name, candidates)
}

// Expand returns a deep copy of the body of the named macro.
func (r *Registry) Expand(name string, rng hcl.Range) ([]*model.LayerNode, error) {
	m, err := r.Resolve(name, rng)
	if err != nil {
		return nil, err
	}
	return model.CloneLayers(m.Layers), nil
}

// Names returns the registered macro names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.macros))
	for name := range r.macros {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered macros.
func (r *Registry) Len() int {
	return len(r.macros)
}

func describe(rng hcl.Range) string {
	if pos := diag.Position(&rng); pos != "" {
		return pos
	}
	return fmt.Sprintf("line %d", rng.Start.Line)
}
