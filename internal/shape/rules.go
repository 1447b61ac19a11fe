package shape

import (
	"fmt"
	"strings"

	"github.com/specialistvlad/neuraldsl/internal/diag"
	"github.com/specialistvlad/neuraldsl/internal/model"
)

// apply computes the output shape of l and its parameter count.
func (p *Propagator) apply(in model.Shape, l *model.LayerNode) (model.Shape, int64, error) {
	out, params, err := p.rule(in, l)
	if err != nil {
		return nil, 0, err
	}
	for _, d := range out {
		if d != model.Unknown && d <= 0 {
			return nil, 0, diag.NewShapeError(l.Range, "Invalid output shape",
				fmt.Sprintf("%s produces a non-positive dimension: %s from input %s", l.Type, out, in))
		}
	}
	return out, params, nil
}

func (p *Propagator) rule(in model.Shape, l *model.LayerNode) (model.Shape, int64, error) {
	switch k := l.Kind; k {
	case model.KindConv1D, model.KindConv2D, model.KindConv3D:
		return p.conv(in, l, k.SpatialRank())

	case model.KindMaxPooling1D, model.KindMaxPooling2D, model.KindMaxPooling3D,
		model.KindAveragePooling1D, model.KindAveragePooling2D, model.KindAveragePooling3D:
		out, err := p.pool(in, l, k.SpatialRank())
		return out, 0, err

	case model.KindGlobalMaxPooling1D, model.KindGlobalMaxPooling2D,
		model.KindGlobalAveragePooling1D, model.KindGlobalAveragePooling2D:
		lead, _, ch, err := p.split(in, l, k.SpatialRank())
		if err != nil {
			return nil, 0, err
		}
		return append(lead, ch), 0, nil

	case model.KindFlatten:
		return flatten(in), 0, nil

	case model.KindDense, model.KindOutput:
		units, err := p.intParam(l, "units", 0, true)
		if err != nil {
			return nil, 0, err
		}
		if len(in) == 0 {
			return nil, 0, rankError(l, in, 1)
		}
		out := in.Clone()
		last := out[len(out)-1]
		out[len(out)-1] = units
		return out, dense(last, units), nil

	case model.KindEmbedding:
		inDim, err := p.intParam(l, "input_dim", 0, true)
		if err != nil {
			return nil, 0, err
		}
		outDim, err := p.intParam(l, "output_dim", 0, true)
		if err != nil {
			return nil, 0, err
		}
		return append(in.Clone(), outDim), int64(inDim) * int64(outDim), nil

	case model.KindLSTM, model.KindGRU, model.KindSimpleRNN, model.KindSimpleRNNDropoutWrapper:
		return p.recurrent(in, l, true)

	case model.KindLSTMCell, model.KindGRUCell:
		return p.recurrent(in, l, false)

	case model.KindBatchNormalization:
		return in.Clone(), norm(in, 4), nil

	case model.KindLayerNormalization, model.KindInstanceNormalization, model.KindGroupNormalization:
		return in.Clone(), norm(in, 2), nil

	case model.KindDropout, model.KindActivation, model.KindLambda, model.KindGaussianNoise,
		model.KindAttention, model.KindAdd, model.KindConcatenate, model.KindSqueezeExcitation,
		model.KindGraphAttention:
		return in.Clone(), 0, nil

	case model.KindTransformer:
		return p.sequence(in, l.Sublayers)

	case model.KindTransformerEncoder, model.KindTransformerDecoder:
		return p.transformerBlock(in, l)

	case model.KindResidualConnection:
		out, params, err := p.sequence(in, l.Sublayers)
		if err != nil {
			return nil, 0, err
		}
		if !compatible(in, out) {
			return nil, 0, diag.NewShapeError(l.Range, "Residual shape mismatch",
				fmt.Sprintf("%s sublayers turn %s into %s; the shortcut needs them to match", l.Type, in, out))
		}
		return out, params, nil

	case model.KindInception:
		return p.branches(in, l)

	case model.KindReshape:
		return p.reshape(in, l)

	case model.KindCustomShape:
		dims, ok := p.param(l, "custom_dims")
		if !ok {
			return nil, 0, missing(l, "custom_dims")
		}
		t, isTuple := dims.(model.Tuple)
		if !isTuple {
			n, isInt := toInt(dims)
			if !isInt {
				return nil, 0, diag.NewShapeError(l.Range, "Invalid shape parameter",
					fmt.Sprintf("%s custom_dims must be a tuple, got %s", l.Type, dims))
			}
			t = model.Tuple{n}
		}
		return append(batch(in), t...), 0, nil

	case model.KindTimeDistributed:
		return p.timeDistributed(in, l)

	case model.KindMacro:
		if p.macros == nil {
			p.diags.Warn(l.Range, "Unexpanded macro",
				"Macro %s was not expanded; its output shape is assumed to equal its input", l.Type)
			return in.Clone(), 0, nil
		}
		body, err := p.macros.Expand(l.Type, l.Range)
		if err != nil {
			return nil, 0, err
		}
		return p.sequence(in, body)

	case model.KindCustom, model.KindUnknown:
		p.diags.Warn(l.Range, "Unknown output shape",
			"No shape rule for %s; its output shape is assumed to equal its input", l.Type)
		return in.Clone(), 0, nil
	}
	panic(fmt.Sprintf("shape: no rule for layer kind %d", int(l.Kind)))
}

// split separates a shape into leading axes, spatial axes and the channel
// axis for an operation over rank spatial dimensions.
func (p *Propagator) split(in model.Shape, l *model.LayerNode, rank int) (lead, spatial []int, ch int, err error) {
	n := len(in)
	if n < rank+1 {
		return nil, nil, 0, rankError(l, in, rank+1)
	}
	lead = append([]int(nil), in[:n-rank-1]...)
	if p.backend.ChannelsFirst() {
		return lead, append([]int(nil), in[n-rank:]...), in[n-rank-1], nil
	}
	return lead, append([]int(nil), in[n-rank-1:n-1]...), in[n-1], nil
}

func (p *Propagator) join(lead, spatial []int, ch int) model.Shape {
	out := append(model.Shape(nil), lead...)
	if p.backend.ChannelsFirst() {
		return append(append(out, ch), spatial...)
	}
	return append(append(out, spatial...), ch)
}

func (p *Propagator) conv(in model.Shape, l *model.LayerNode, rank int) (model.Shape, int64, error) {
	filters, err := p.intParam(l, "filters", 0, true)
	if err != nil {
		return nil, 0, err
	}
	kernel, err := p.dimsParam(l, "kernel_size", rank, nil, true)
	if err != nil {
		return nil, 0, err
	}
	strides, err := p.dimsParam(l, "strides", rank, ones(rank), false)
	if err != nil {
		return nil, 0, err
	}
	dilation, err := p.dimsParam(l, "dilation_rate", rank, ones(rank), false)
	if err != nil {
		return nil, 0, err
	}
	pad, err := p.paddingParam(l, rank)
	if err != nil {
		return nil, 0, err
	}
	lead, spatial, ch, err := p.split(in, l, rank)
	if err != nil {
		return nil, 0, err
	}

	for i, d := range spatial {
		spatial[i] = windowDim(d, kernel[i], strides[i], dilation[i], pad, i)
	}

	var params int64
	if ch != model.Unknown {
		k := int64(1)
		for _, kd := range kernel {
			k *= int64(kd)
		}
		params = k*int64(ch)*int64(filters) + int64(filters)
	}
	return p.join(lead, spatial, filters), params, nil
}

func (p *Propagator) pool(in model.Shape, l *model.LayerNode, rank int) (model.Shape, error) {
	size, err := p.dimsParam(l, "pool_size", rank, nil, true)
	if err != nil {
		return nil, err
	}
	strides, err := p.dimsParam(l, "strides", rank, size, false)
	if err != nil {
		return nil, err
	}
	pad, err := p.paddingParam(l, rank)
	if err != nil {
		return nil, err
	}
	lead, spatial, ch, err := p.split(in, l, rank)
	if err != nil {
		return nil, err
	}
	for i, d := range spatial {
		spatial[i] = windowDim(d, size[i], strides[i], 1, pad, i)
	}
	return p.join(lead, spatial, ch), nil
}

// windowDim is the output length of a sliding window over d:
// floor((d + 2*pad - effective_kernel) / stride) + 1, or ceil(d / stride)
// for "same" padding.
func windowDim(d, kernel, stride, dilation int, pad padding, axis int) int {
	if d == model.Unknown {
		return model.Unknown
	}
	if stride <= 0 {
		return 0
	}
	if pad.same {
		return (d + stride - 1) / stride
	}
	eff := (kernel-1)*dilation + 1
	return floorDiv(d+2*pad.pads[axis]-eff, stride) + 1
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func (p *Propagator) recurrent(in model.Shape, l *model.LayerNode, sequence bool) (model.Shape, int64, error) {
	units, err := p.intParam(l, "units", 0, true)
	if err != nil {
		return nil, 0, err
	}
	minRank := len(batch(in)) + 1
	if sequence {
		minRank++
	}
	if len(in) < minRank {
		return nil, 0, rankError(l, in, minRank)
	}

	features := in[len(in)-1]
	params := int64(gates(l.Kind)) * rnn(features, units)

	out := in.Clone()
	if sequence && !p.boolParam(l, "return_sequences") {
		out = out[:len(out)-1]
	}
	out[len(out)-1] = units
	return out, params, nil
}

func gates(k model.Kind) int {
	switch k {
	case model.KindLSTM, model.KindLSTMCell:
		return 4
	case model.KindGRU, model.KindGRUCell:
		return 3
	}
	return 1
}

func rnn(features, units int) int64 {
	if features == model.Unknown {
		return 0
	}
	u := int64(units)
	return u*(int64(features)+u) + u
}

func dense(in, units int) int64 {
	if in == model.Unknown {
		return 0
	}
	return int64(in)*int64(units) + int64(units)
}

// norm counts factor parameters per feature of the last axis.
func norm(in model.Shape, factor int) int64 {
	if len(in) == 0 || in[len(in)-1] == model.Unknown {
		return 0
	}
	return int64(factor) * int64(in[len(in)-1])
}

// transformerBlock propagates an encoder or decoder block. The block keeps
// the model width; declared sublayers run after the block itself.
func (p *Propagator) transformerBlock(in model.Shape, l *model.LayerNode) (model.Shape, int64, error) {
	if len(in) == 0 {
		return nil, 0, rankError(l, in, 1)
	}
	var params int64
	if d := in[len(in)-1]; d != model.Unknown {
		ff, err := p.intParam(l, "ff_dim", 0, false)
		if err != nil {
			return nil, 0, err
		}
		attention := int64(1)
		if l.Kind == model.KindTransformerDecoder {
			attention = 2
		}
		d64 := int64(d)
		// Query, key, value and output projections per attention, plus one
		// layer normalization per sub-block.
		params = attention*4*(d64*d64+d64) + (attention+1)*2*d64
		if ff > 0 {
			params += dense(d, ff) + dense(ff, d)
		}
	}
	out, subParams, err := p.sequence(in, l.Sublayers)
	if err != nil {
		return nil, 0, err
	}
	return out, params + subParams, nil
}

// sequence propagates layers one after another without recording them.
func (p *Propagator) sequence(in model.Shape, layers []*model.LayerNode) (model.Shape, int64, error) {
	cur := in.Clone()
	var total int64
	for _, sub := range layers {
		next, params, err := p.apply(cur, sub)
		if err != nil {
			return nil, 0, err
		}
		cur, total = next, total+params
	}
	return cur, total, nil
}

// branches applies every sublayer to the same input and concatenates the
// results along the last axis.
func (p *Propagator) branches(in model.Shape, l *model.LayerNode) (model.Shape, int64, error) {
	if len(l.Sublayers) == 0 {
		return in.Clone(), 0, nil
	}
	var out model.Shape
	var total int64
	for i, sub := range l.Sublayers {
		b, params, err := p.apply(in, sub)
		if err != nil {
			return nil, 0, err
		}
		total += params
		if i == 0 {
			out = b
			continue
		}
		if len(b) != len(out) || !compatible(b[:len(b)-1], out[:len(out)-1]) {
			return nil, 0, diag.NewShapeError(sub.Range, "Branch shape mismatch",
				fmt.Sprintf("%s branch %d produces %s, which cannot be concatenated with %s", l.Type, i+1, b, out))
		}
		last := len(out) - 1
		if out[last] == model.Unknown || b[last] == model.Unknown {
			out[last] = model.Unknown
		} else {
			out[last] += b[last]
		}
	}
	return out, total, nil
}

func (p *Propagator) reshape(in model.Shape, l *model.LayerNode) (model.Shape, int64, error) {
	v, ok := p.param(l, "target_shape")
	if !ok {
		return nil, 0, missing(l, "target_shape")
	}
	target, isTuple := v.(model.Tuple)
	if !isTuple {
		return nil, 0, diag.NewShapeError(l.Range, "Invalid shape parameter",
			fmt.Sprintf("%s target_shape must be a tuple, got %s", l.Type, v))
	}
	lead := batch(in)
	if from, to := size(in[len(lead):]), size(model.Shape(target)); from != model.Unknown && from != to {
		return nil, 0, diag.NewShapeError(l.Range, "Reshape size mismatch",
			fmt.Sprintf("%s cannot turn %s (%d elements) into %s (%d elements)", l.Type, in, from, target, to))
	}
	return append(lead, target...), 0, nil
}

// timeDistributed applies the wrapped layer's rule to every step of the time
// axis, the first non-batch axis.
func (p *Propagator) timeDistributed(in model.Shape, l *model.LayerNode) (model.Shape, int64, error) {
	axis := len(batch(in))
	if len(in) < axis+2 {
		return nil, 0, rankError(l, in, axis+2)
	}
	step := append(in[:axis:axis], in[axis+1:]...)
	inner := &model.LayerNode{
		Kind:      l.Inner,
		Type:      strings.TrimSuffix(strings.TrimPrefix(l.Type, "TimeDistributed("), ")"),
		Params:    l.Params,
		Sublayers: l.Sublayers,
		Range:     l.Range,
	}
	out, params, err := p.apply(step, inner)
	if err != nil {
		return nil, 0, err
	}
	res := append(model.Shape(nil), out[:axis]...)
	res = append(res, in[axis])
	return append(res, out[axis:]...), params, nil
}

// batch returns the leading batch axis, if the shape has one.
func batch(in model.Shape) model.Shape {
	if len(in) > 1 && in[0] == model.Unknown {
		return model.Shape{model.Unknown}
	}
	return model.Shape{}
}

func flatten(in model.Shape) model.Shape {
	lead := batch(in)
	return append(lead, size(in[len(lead):]))
}

// size is the element count of s, or Unknown.
func size(s model.Shape) int {
	n := 1
	for _, d := range s {
		if d == model.Unknown {
			return model.Unknown
		}
		n *= d
	}
	return n
}

// compatible reports whether two shapes can be the same tensor shape.
func compatible(a, b model.Shape) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] && a[i] != model.Unknown && b[i] != model.Unknown {
			return false
		}
	}
	return true
}

func ones(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func rankError(l *model.LayerNode, in model.Shape, want int) error {
	return diag.NewShapeError(l.Range, "Incompatible input rank",
		fmt.Sprintf("%s expects at least %d dimensions, got %s", l.Type, want, in))
}
