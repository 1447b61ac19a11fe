package transform

import (
	"strconv"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/neuraldsl/internal/diag"
	"github.com/specialistvlad/neuraldsl/internal/hpo"
	"github.com/specialistvlad/neuraldsl/internal/model"
	"github.com/specialistvlad/neuraldsl/internal/syntax"
)

// Layers transforms a layer sequence, expanding `* N` repetitions into N
// independent copies.
func (t *Transformer) Layers(ls []*syntax.Layer) ([]*model.LayerNode, error) {
	out := make([]*model.LayerNode, 0, len(ls))
	for _, l := range ls {
		node, err := t.Layer(l)
		if err != nil {
			return nil, err
		}
		n, err := repeatCount(l)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
		for i := 1; i < n; i++ {
			out = append(out, node.Clone())
		}
	}
	return out, nil
}

func repeatCount(l *syntax.Layer) (int, error) {
	if l.Repeat == nil {
		return 1, nil
	}
	n, err := strconv.Atoi(l.Repeat.Text)
	if err != nil || n < 1 {
		return 0, diag.Validationf(l.Repeat.Rng, "Invalid repetition",
			"A layer can be repeated a positive number of times, got %s.", l.Repeat.Text)
	}
	if n > model.MaxRepeat {
		return 0, diag.Validationf(l.Repeat.Rng, "Repetition too large",
			"A layer can be repeated at most %d times, got %d.", model.MaxRepeat, n)
	}
	return n, nil
}

// Layer transforms one layer statement. A repetition suffix is validated but
// not applied; Layers applies it.
func (t *Transformer) Layer(l *syntax.Layer) (*model.LayerNode, error) {
	if _, err := repeatCount(l); err != nil {
		return nil, err
	}

	node, err := t.call(l.Call)
	if err != nil {
		return nil, err
	}
	node.Range = l.Rng

	if l.Device != nil {
		if !validDevice(l.Device.Value) {
			return nil, diag.Validationf(l.Device.Rng, "Invalid device specification",
				`%q is not a valid device; expected "cpu", "tpu", "cuda" or "cuda:<index>".`, l.Device.Value)
		}
		node.Device = l.Device.Value
		if node.Params == nil {
			node.Params = model.NewParams()
		}
		node.Params.Set("device", model.String(l.Device.Value))
	}

	if l.HasBlock {
		subs, err := t.Layers(l.Sublayers)
		if err != nil {
			return nil, err
		}
		node.Sublayers = append(node.Sublayers, subs...)
	}
	if node.Sublayers == nil {
		node.Sublayers = []*model.LayerNode{}
	}
	return node, nil
}

// call resolves the layer name and binds and validates its arguments.
func (t *Transformer) call(c *syntax.Call) (*model.LayerNode, error) {
	if c.Name == hpo.Keyword {
		return nil, diag.NewValidationError(c.NameRange, "Unexpected HPO expression",
			"HPO(...) can only be used as a parameter value.")
	}

	kind, builtin := model.LookupKind(c.Name)
	switch {
	case builtin && kind == model.KindTimeDistributed:
		return t.timeDistributed(c)
	case builtin:
	case model.IsCustomLayerName(c.Name):
		kind = model.KindCustom
	default:
		return t.macroRef(c)
	}

	params, ranges, err := t.bind(kind, c.Name, c.Args)
	if err != nil {
		return nil, err
	}
	node := &model.LayerNode{Kind: kind, Type: c.Name, Params: params, Range: c.Rng}
	if err := t.validate(kind, c.Name, node, ranges); err != nil {
		return nil, err
	}
	return node, nil
}

func (t *Transformer) validate(kind model.Kind, label string, node *model.LayerNode, ranges map[string]hcl.Range) error {
	if node.Params == nil {
		node.Params = model.NewParams()
		defer func() {
			if node.Params.Len() == 0 {
				node.Params = nil
			}
		}()
	}
	c := &checker{diags: t.diags, label: label, params: node.Params, rng: node.Range, ranges: ranges}
	return validateParams(kind, c)
}

// macroRef resolves a name that is neither built-in nor custom against the
// macro registry.
func (t *Transformer) macroRef(c *syntax.Call) (*model.LayerNode, error) {
	if _, err := t.macros.Resolve(c.Name, c.NameRange); err != nil {
		return nil, err
	}
	if len(c.Args) > 0 {
		return nil, diag.Validationf(c.Args[0].Rng, "Unexpected macro arguments",
			"Macro %q takes no arguments.", c.Name)
	}
	return &model.LayerNode{Kind: model.KindMacro, Type: c.Name, Params: model.NewParams(), Range: c.Rng}, nil
}

// timeDistributed transforms TimeDistributed(Inner(...), extra=...). The
// result takes its parameters and sublayers from the wrapped layer.
func (t *Transformer) timeDistributed(c *syntax.Call) (*model.LayerNode, error) {
	pos := c.Positional()
	if len(pos) == 0 {
		return nil, diag.NewValidationError(c.Rng, "Missing wrapped layer",
			"TimeDistributed requires a layer as its first argument, e.g. TimeDistributed(Dense(64)).")
	}
	innerCall, ok := pos[0].Value.(*syntax.Call)
	if !ok || innerCall.Name == hpo.Keyword {
		return nil, diag.Validationf(pos[0].Rng, "Missing wrapped layer",
			"TimeDistributed requires a layer as its first argument, got %s.", describeExpr(pos[0].Value))
	}
	innerKind, builtin := model.LookupKind(innerCall.Name)
	if builtin && innerKind == model.KindTimeDistributed {
		return nil, diag.NewValidationError(innerCall.Rng, "Nested TimeDistributed",
			"TimeDistributed cannot wrap another TimeDistributed layer.")
	}
	if !builtin && !model.IsCustomLayerName(innerCall.Name) {
		return nil, diag.Validationf(innerCall.NameRange, "Invalid wrapped layer",
			"TimeDistributed can only wrap a built-in or custom layer, got %q.", innerCall.Name)
	}

	inner, err := t.call(innerCall)
	if err != nil {
		return nil, err
	}

	var rest []*syntax.Arg
	for _, a := range c.Args {
		if a != pos[0] {
			rest = append(rest, a)
		}
	}
	label := "TimeDistributed(" + inner.Type + ")"
	extra, ranges, err := t.bind(model.KindTimeDistributed, label, rest)
	if err != nil {
		return nil, err
	}

	node := &model.LayerNode{
		Kind:      model.KindTimeDistributed,
		Type:      label,
		Inner:     inner.Kind,
		Params:    inner.Params,
		Sublayers: inner.Sublayers,
		Range:     c.Rng,
	}
	if extra != nil {
		chk := &checker{diags: t.diags, label: label, params: extra, rng: c.Rng, ranges: ranges}
		if err := sharedRules(chk); err != nil {
			return nil, err
		}
		if node.Params == nil {
			node.Params = model.NewParams()
		}
		var dupErr error
		extra.Each(func(key string, v model.Value) {
			if dupErr == nil && node.Params.Has(key) {
				dupErr = diag.Validationf(ranges[key], "Duplicate parameter",
					"%s parameter %q is given more than once.", label, key)
			}
			node.Params.Set(key, v)
		})
		if dupErr != nil {
			return nil, dupErr
		}
	}
	return node, nil
}

// bind assigns arguments to parameter names. Positional arguments fill the
// kind's positional slots in order. It returns nil params when there are no
// arguments and the kind renders an empty parameter set as null.
func (t *Transformer) bind(kind model.Kind, label string, args []*syntax.Arg) (*model.Params, map[string]hcl.Range, error) {
	ranges := make(map[string]hcl.Range, len(args))
	if len(args) == 0 {
		if kind.NullWhenEmpty() || kind == model.KindTimeDistributed {
			return nil, ranges, nil
		}
		return model.NewParams(), ranges, nil
	}

	slots := positionalSlots(kind)
	params := model.NewParams()
	next := 0
	for _, a := range args {
		name := a.Name
		if name == "" {
			if next >= len(slots) {
				if len(slots) == 0 {
					return nil, nil, diag.Validationf(a.Rng, "Too many positional arguments",
						"%s takes named arguments only.", label)
				}
				return nil, nil, diag.Validationf(a.Rng, "Too many positional arguments",
					"%s takes at most %d positional arguments.", label, len(slots))
			}
			name = slots[next]
			next++
		}
		if params.Has(name) {
			return nil, nil, diag.Validationf(a.Rng, "Duplicate parameter",
				"%s parameter %q is given more than once.", label, name)
		}
		v, err := value(a.Value)
		if err != nil {
			return nil, nil, err
		}
		params.Set(name, v)
		ranges[name] = a.Value.Range()
	}
	return params, ranges, nil
}
