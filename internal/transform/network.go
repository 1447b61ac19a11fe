package transform

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/neuraldsl/internal/diag"
	"github.com/specialistvlad/neuraldsl/internal/model"
	"github.com/specialistvlad/neuraldsl/internal/parser"
	"github.com/specialistvlad/neuraldsl/internal/syntax"
)

// Network transforms a network block. Layer errors are reported before
// missing top-level keys.
func (t *Transformer) Network(n *syntax.Network) (*model.Network, error) {
	t.logger.Debug("Transforming network.", "name", n.Name, "line", n.Rng.Start.Line)

	if !n.HasLayers {
		return nil, diag.NewValidationError(n.Rng, "Missing layers", "A network must declare a layers: section.")
	}
	if n.Input == nil {
		return nil, diag.NewValidationError(n.Rng, "Missing input", "A network must declare its input shape, e.g. input: (28, 28, 1).")
	}
	inShape, err := shape(n.Input)
	if err != nil {
		return nil, err
	}
	layers, err := t.Layers(n.Layers)
	if err != nil {
		return nil, err
	}

	if n.Loss == nil {
		return nil, diag.NewValidationError(n.Rng, "Missing loss", `A network must declare a loss, e.g. loss: "categorical_crossentropy".`)
	}
	if n.Optimizer == nil {
		return nil, diag.NewValidationError(n.Rng, "Missing optimizer", `A network must declare an optimizer, e.g. optimizer: "Adam(learning_rate=0.001)".`)
	}
	opt, err := t.optimizer(n.Optimizer)
	if err != nil {
		return nil, err
	}

	net := &model.Network{
		Name:            n.Name,
		Input:           model.Input{Shape: inShape},
		Layers:          layers,
		Loss:            n.Loss.Value,
		Optimizer:       opt,
		ExecutionConfig: model.ExecutionConfig{Device: model.DefaultDevice},
		Framework:       model.DefaultBackend,
		ShapeInfo:       []model.TraceEntry{},
	}

	if n.HasTrain {
		if net.TrainingConfig, err = t.training(n.Train, n.KeyRanges["train"]); err != nil {
			return nil, err
		}
	}
	if n.Framework != nil {
		b, err := model.ParseBackend(n.Framework.Value)
		if err != nil {
			return nil, diag.NewValidationError(n.Framework.Rng, "Unsupported framework", err.Error())
		}
		net.Framework = b
	}
	if n.Execution != nil {
		if net.ExecutionConfig, err = execution(n.Execution); err != nil {
			return nil, err
		}
	}

	if len(layers) > 0 {
		last := layers[len(layers)-1]
		if last.Kind == model.KindOutput || last.Kind == model.KindDense {
			net.OutputLayer = last
			if units, ok := last.Param("units"); ok {
				if _, isInt := units.(model.Int); isInt {
					net.OutputShape = units
				}
			}
		}
	}

	net.Warnings = t.diags.Warnings()
	return net, nil
}

// optimizer parses the optimizer string, e.g. "adam" or
// "Adam(learning_rate=HPO(log_range(1e-4, 1e-2)))". A single positional
// argument is the learning rate.
func (t *Transformer) optimizer(s *syntax.Str) (model.Optimizer, error) {
	start := s.Rng.Start
	start.Column++
	start.Byte++
	call, err := parser.ParseCall(s.Rng.Filename, []byte(s.Value), start)
	if err != nil {
		return model.Optimizer{}, err
	}

	params := model.NewParams()
	positional := 0
	for _, a := range call.Args {
		name := a.Name
		if name == "" {
			if positional > 0 {
				return model.Optimizer{}, diag.Validationf(a.Rng, "Too many positional arguments",
					"Optimizer %s takes at most one positional argument, the learning rate.", call.Name)
			}
			name = "learning_rate"
			positional++
		}
		if params.Has(name) {
			return model.Optimizer{}, diag.Validationf(a.Rng, "Duplicate parameter",
				"Optimizer parameter %q is given more than once.", name)
		}
		v, err := value(a.Value)
		if err != nil {
			return model.Optimizer{}, err
		}
		params.Set(name, v)
	}

	chk := &checker{diags: t.diags, label: call.Name, params: params, rng: call.Rng}
	if err := chk.positiveNumber("learning_rate"); err != nil {
		return model.Optimizer{}, err
	}
	return model.Optimizer{Type: call.Name, Params: params}, nil
}

// training converts the train block. Recognised keys are range checked;
// others pass through unchanged.
func (t *Transformer) training(entries []*syntax.Entry, rng hcl.Range) (*model.Params, error) {
	params, ranges, err := entryParams(entries, "training")
	if err != nil {
		return nil, err
	}
	if err := t.checkTraining(params, rng, ranges); err != nil {
		return nil, err
	}
	return params, nil
}

// ValidateTraining checks a training config completed outside a train block,
// such as one filled from project defaults. Errors point at rng.
func (t *Transformer) ValidateTraining(params *model.Params, rng hcl.Range) error {
	if params == nil {
		return nil
	}
	return t.checkTraining(params, rng, nil)
}

func (t *Transformer) checkTraining(params *model.Params, rng hcl.Range, ranges map[string]hcl.Range) error {
	chk := &checker{diags: t.diags, label: "Training", params: params, rng: rng, ranges: ranges}
	return first(
		func() error { return chk.unitInterval("validation_split") },
		func() error { return chk.positiveInt("epochs") },
		func() error { return chk.positiveInt("batch_size") },
		func() error { return chk.positiveInt("patience") },
		func() error { return chk.str("search_method") },
	)
}

func execution(entries []*syntax.Entry) (model.ExecutionConfig, error) {
	cfg := model.ExecutionConfig{Device: model.DefaultDevice}
	seen := false
	for _, e := range entries {
		if e.Key != "device" {
			return cfg, diag.Validationf(e.KeyRange, "Unknown execution key",
				"The execution block only accepts device, got %q.", e.Key)
		}
		if seen {
			return cfg, diag.NewValidationError(e.KeyRange, "Duplicate key", `The key "device" is given more than once.`)
		}
		seen = true
		s, ok := e.Value.(*syntax.Str)
		if !ok || (s.Value != model.DefaultDevice && !validDevice(s.Value)) {
			return cfg, diag.Validationf(e.Value.Range(), "Invalid device specification",
				`Execution device must be "auto", "cpu", "tpu", "cuda" or "cuda:<index>", got %s.`, describeExpr(e.Value))
		}
		cfg.Device = s.Value
	}
	return cfg, nil
}

// Research transforms a research block. Metrics must be numeric.
func (t *Transformer) Research(r *syntax.Research) (*model.Research, error) {
	metrics := model.NewParams()
	for _, e := range r.Metrics {
		if metrics.Has(e.Key) {
			return nil, diag.Validationf(e.KeyRange, "Duplicate metric", "Metric %q is given more than once.", e.Key)
		}
		v, err := literal(e.Value)
		if err != nil {
			return nil, err
		}
		if _, ok := model.AsNumber(v); !ok {
			return nil, diag.Validationf(e.Value.Range(), "Invalid metric",
				"Metric %q must be a number, got %s %s.", e.Key, model.TypeName(v), v)
		}
		metrics.Set(e.Key, v)
	}
	refs := make([]string, len(r.References))
	for i, ref := range r.References {
		refs[i] = ref.Value
	}
	return &model.Research{Name: r.Name, Metrics: metrics, References: refs}, nil
}

func entryParams(entries []*syntax.Entry, block string) (*model.Params, map[string]hcl.Range, error) {
	params := model.NewParams()
	ranges := make(map[string]hcl.Range, len(entries))
	for _, e := range entries {
		if params.Has(e.Key) {
			return nil, nil, diag.Validationf(e.KeyRange, "Duplicate key",
				"The %s key %q is given more than once.", block, e.Key)
		}
		v, err := value(e.Value)
		if err != nil {
			return nil, nil, err
		}
		params.Set(e.Key, v)
		ranges[e.Key] = e.Value.Range()
	}
	return params, ranges, nil
}
