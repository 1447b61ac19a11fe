package transform

import (
	"fmt"
	"math"
	"regexp"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/neuraldsl/internal/diag"
	"github.com/specialistvlad/neuraldsl/internal/model"
)

var devicePattern = regexp.MustCompile(`^(cpu|tpu|cuda(:\d+)?)$`)

// validDevice reports whether s is an accepted device annotation.
func validDevice(s string) bool {
	return devicePattern.MatchString(s)
}

// checker validates the parameters of one layer. Whole-valued floats in
// integer slots are rewritten in place with an info diagnostic.
type checker struct {
	diags  *diag.Collector
	label  string // layer type used in messages, e.g. "Conv2D"
	params *model.Params
	rng    hcl.Range
	ranges map[string]hcl.Range
}

func (c *checker) rangeOf(name string) hcl.Range {
	if r, ok := c.ranges[name]; ok {
		return r
	}
	return c.rng
}

func (c *checker) get(name string) (model.Value, bool) {
	v, ok := c.params.Get(name)
	if !ok {
		return nil, false
	}
	// Search spaces are validated by the resolver and skipped here.
	if _, isHPO := v.(*model.HPO); isHPO {
		return nil, false
	}
	return v, true
}

func (c *checker) require(name string) error {
	if c.params.Has(name) {
		return nil
	}
	return diag.Validationf(c.rng, "Missing required parameter", "%s layer requires '%s' parameter", c.label, name)
}

func (c *checker) integer(name string, v model.Value) (int, error) {
	switch n := v.(type) {
	case model.Int:
		return int(n), nil
	case model.Float:
		f := float64(n)
		if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
			i := int64(f)
			c.diags.Info(c.rangeOf(name), "Implicit conversion", "Implicit conversion of %s to integer %d", n, i)
			c.params.Set(name, model.Int(i))
			return int(i), nil
		}
		return 0, diag.Validationf(c.rangeOf(name), name+" must be an integer",
			"%s %s must be an integer, got %s", c.label, name, n)
	}
	return 0, diag.Validationf(c.rangeOf(name), name+" must be a number",
		"%s %s must be a number, got %s %s", c.label, name, model.TypeName(v), v)
}

func (c *checker) positiveInt(name string) error {
	v, ok := c.get(name)
	if !ok {
		return nil
	}
	n, err := c.integer(name, v)
	if err != nil {
		return err
	}
	if n <= 0 {
		return diag.Validationf(c.rangeOf(name), name+" must be positive",
			"%s %s must be a positive integer, got %d", c.label, name, n)
	}
	return nil
}

func (c *checker) number(name string) (float64, bool, error) {
	v, ok := c.get(name)
	if !ok {
		return 0, false, nil
	}
	f, isNum := model.AsNumber(v)
	if !isNum {
		return 0, false, diag.Validationf(c.rangeOf(name), name+" must be a number",
			"%s %s must be a number, got %s %s", c.label, name, model.TypeName(v), v)
	}
	return f, true, nil
}

// rate checks a dropout-style rate. Values in (1, RateWarnLimit] are
// accepted with a warning.
func (c *checker) rate(name string) error {
	f, ok, err := c.number(name)
	if err != nil || !ok {
		return err
	}
	v, _ := c.params.Get(name)
	switch {
	case f < 0 || f > model.RateWarnLimit:
		return diag.Validationf(c.rangeOf(name), name+" must be between 0 and 1",
			"%s %s must be between 0 and 1, got %s", c.label, name, v)
	case f > 1:
		c.diags.Warn(c.rangeOf(name), name+" above 1",
			"%s %s should be between 0 and 1, got %s", c.label, name, v)
	}
	return nil
}

func (c *checker) unitInterval(name string) error {
	f, ok, err := c.number(name)
	if err != nil || !ok {
		return err
	}
	if f < 0 || f > 1 {
		v, _ := c.params.Get(name)
		return diag.Validationf(c.rangeOf(name), name+" must be between 0 and 1",
			"%s %s must be between 0 and 1, got %s", c.label, name, v)
	}
	return nil
}

func (c *checker) nonNegative(name string) error {
	f, ok, err := c.number(name)
	if err != nil || !ok {
		return err
	}
	if f < 0 {
		v, _ := c.params.Get(name)
		return diag.Validationf(c.rangeOf(name), name+" must be non-negative",
			"%s %s must be non-negative, got %s", c.label, name, v)
	}
	return nil
}

func (c *checker) positiveNumber(name string) error {
	f, ok, err := c.number(name)
	if err != nil || !ok {
		return err
	}
	if f <= 0 {
		v, _ := c.params.Get(name)
		return diag.Validationf(c.rangeOf(name), name+" must be positive",
			"%s %s must be positive, got %s", c.label, name, v)
	}
	return nil
}

func (c *checker) str(name string) error {
	v, ok := c.get(name)
	if !ok {
		return nil
	}
	if _, isStr := v.(model.String); !isStr {
		return diag.Validationf(c.rangeOf(name), name+" must be a string",
			"%s %s must be a string, got %s %s", c.label, name, model.TypeName(v), v)
	}
	return nil
}

func (c *checker) boolean(name string) error {
	v, ok := c.get(name)
	if !ok {
		return nil
	}
	if _, isBool := v.(model.Bool); !isBool {
		return diag.Validationf(c.rangeOf(name), name+" must be a boolean",
			"%s %s must be true or false, got %s", c.label, name, v)
	}
	return nil
}

// dims checks an integer-or-tuple parameter against the spatial rank. Every
// dimension must be at least min.
func (c *checker) dims(name, what string, rank, min int) error {
	v, ok := c.get(name)
	if !ok {
		return nil
	}
	if f, isFloat := v.(model.Float); isFloat {
		if _, err := c.integer(name, f); err != nil {
			return err
		}
		v, _ = c.params.Get(name)
	}
	ds, err := model.Dims(v, rank)
	if err != nil {
		return diag.Validationf(c.rangeOf(name), "Invalid "+what, "%s %s: %s", c.label, name, err)
	}
	for _, d := range ds {
		if d < min {
			qualifier := "positive"
			if min == 0 {
				qualifier = "non-negative"
			}
			return diag.Validationf(c.rangeOf(name), what+" must be "+qualifier,
				"%s %s must contain %s integers, got %s", c.label, name, qualifier, v)
		}
	}
	return nil
}

func (c *checker) padding(rank int) error {
	v, ok := c.get("padding")
	if !ok {
		return nil
	}
	if s, isStr := v.(model.String); isStr {
		if s == "same" || s == "valid" {
			return nil
		}
		return diag.Validationf(c.rangeOf("padding"), "Invalid padding",
			`%s padding must be "same", "valid" or a non-negative integer, got %s`, c.label, s)
	}
	return c.dims("padding", "padding", rank, 0)
}

func (c *checker) positiveTuple(name, what string) error {
	v, ok := c.get(name)
	if !ok {
		return nil
	}
	t, isTuple := v.(model.Tuple)
	if !isTuple || len(t) == 0 {
		return diag.Validationf(c.rangeOf(name), name+" must be a tuple",
			"%s %s must be a tuple of integers, got %s", c.label, name, v)
	}
	for _, d := range t {
		if d <= 0 {
			return diag.Validationf(c.rangeOf(name), what+" must be positive",
				"%s %s must contain positive integers, got %s", c.label, name, t)
		}
	}
	return nil
}

// first returns the first non-nil error.
func first(errs ...func() error) error {
	for _, fn := range errs {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

// sharedRules checks parameters that mean the same thing on every kind.
func sharedRules(c *checker) error {
	return first(
		func() error { return c.str("activation") },
		func() error { return c.rate("dropout") },
		func() error { return c.rate("recurrent_dropout") },
	)
}

// validateParams applies the rules of kind k to the checker's parameters.
func validateParams(k model.Kind, c *checker) error {
	if err := sharedRules(c); err != nil {
		return err
	}

	rank := k.SpatialRank()
	switch k {
	case model.KindDense, model.KindOutput:
		return first(
			func() error { return c.positiveInt("units") },
			func() error { return c.require("units") },
		)

	case model.KindConv1D, model.KindConv2D, model.KindConv3D:
		return first(
			func() error { return c.positiveInt("filters") },
			func() error { return c.require("filters") },
			func() error { return c.dims("kernel_size", "kernel size", rank, 1) },
			func() error { return c.require("kernel_size") },
			func() error { return c.dims("strides", "strides", rank, 1) },
			func() error { return c.dims("dilation_rate", "dilation rate", rank, 1) },
			func() error { return c.padding(rank) },
		)

	case model.KindMaxPooling1D, model.KindMaxPooling2D, model.KindMaxPooling3D,
		model.KindAveragePooling1D, model.KindAveragePooling2D, model.KindAveragePooling3D:
		return first(
			func() error { return c.dims("pool_size", "pool size", rank, 1) },
			func() error { return c.require("pool_size") },
			func() error { return c.dims("strides", "strides", rank, 1) },
			func() error { return c.padding(rank) },
		)

	case model.KindGlobalMaxPooling1D, model.KindGlobalMaxPooling2D,
		model.KindGlobalAveragePooling1D, model.KindGlobalAveragePooling2D:
		return nil

	case model.KindDropout:
		return first(
			func() error { return c.rate("rate") },
			func() error { return c.require("rate") },
		)

	case model.KindBatchNormalization:
		return first(
			func() error { return c.unitInterval("momentum") },
			func() error { return c.nonNegative("epsilon") },
		)

	case model.KindLayerNormalization, model.KindInstanceNormalization:
		return c.nonNegative("epsilon")

	case model.KindGroupNormalization:
		return c.positiveInt("groups")

	case model.KindLSTM, model.KindGRU, model.KindSimpleRNN,
		model.KindLSTMCell, model.KindGRUCell, model.KindSimpleRNNDropoutWrapper:
		return first(
			func() error { return c.positiveInt("units") },
			func() error { return c.require("units") },
			func() error { return c.boolean("return_sequences") },
		)

	case model.KindTransformerEncoder, model.KindTransformerDecoder:
		return first(
			func() error { return c.positiveInt("num_heads") },
			func() error { return c.require("num_heads") },
			func() error { return c.positiveInt("ff_dim") },
			func() error { return c.require("ff_dim") },
		)

	case model.KindTransformer, model.KindGraphAttention:
		return first(
			func() error { return c.positiveInt("num_heads") },
			func() error { return c.positiveInt("ff_dim") },
		)

	case model.KindEmbedding:
		return first(
			func() error { return c.positiveInt("input_dim") },
			func() error { return c.require("input_dim") },
			func() error { return c.positiveInt("output_dim") },
			func() error { return c.require("output_dim") },
		)

	case model.KindActivation, model.KindLambda:
		return first(
			func() error { return c.str("function") },
			func() error { return c.require("function") },
		)

	case model.KindConcatenate:
		v, ok := c.get("axis")
		if !ok {
			return nil
		}
		_, err := c.integer("axis", v)
		return err

	case model.KindGaussianNoise:
		return first(
			func() error { return c.nonNegative("stddev") },
			func() error { return c.require("stddev") },
		)

	case model.KindReshape:
		return first(
			func() error { return c.positiveTuple("target_shape", "target shape") },
			func() error { return c.require("target_shape") },
		)

	case model.KindCustomShape:
		return first(
			func() error { return c.str("layer") },
			func() error { return c.require("layer") },
			func() error { return c.customDims() },
			func() error { return c.require("custom_dims") },
		)

	case model.KindFlatten, model.KindAttention, model.KindAdd,
		model.KindResidualConnection, model.KindInception, model.KindSqueezeExcitation:
		return nil

	case model.KindTimeDistributed, model.KindCustom, model.KindMacro, model.KindUnknown:
		return nil
	}
	panic(fmt.Sprintf("transform: no validation rules for layer kind %d", int(k)))
}

func (c *checker) customDims() error {
	v, ok := c.get("custom_dims")
	if !ok {
		return nil
	}
	t, isTuple := v.(model.Tuple)
	if !isTuple {
		if n, isInt := v.(model.Int); isInt {
			t = model.Tuple{int(n)}
		} else {
			return diag.Validationf(c.rangeOf("custom_dims"), "custom_dims must be a tuple",
				"%s custom_dims must be a tuple of integers, got %s", c.label, v)
		}
	}
	for _, d := range t {
		if d < 0 {
			return diag.Validationf(c.rangeOf("custom_dims"), "custom dimensions must be non-negative",
				"%s custom_dims must be non-negative, got %s", c.label, t)
		}
	}
	return nil
}
