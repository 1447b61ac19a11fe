package transform

import "github.com/specialistvlad/neuraldsl/internal/model"

// positionalSlots names the parameters that positional arguments bind to, in
// order. Kinds without an entry take named arguments only.
func positionalSlots(k model.Kind) []string {
	switch {
	case k.IsConv():
		return []string{"filters", "kernel_size", "activation"}
	case k.IsPooling():
		return []string{"pool_size", "strides", "padding"}
	case k.IsTransformer():
		return []string{"num_heads", "ff_dim"}
	}

	switch k {
	case model.KindDense, model.KindOutput:
		return []string{"units", "activation"}
	case model.KindDropout:
		return []string{"rate"}
	case model.KindLSTM, model.KindGRU, model.KindSimpleRNN, model.KindLSTMCell, model.KindGRUCell:
		return []string{"units"}
	case model.KindSimpleRNNDropoutWrapper:
		return []string{"units", "dropout"}
	case model.KindEmbedding:
		return []string{"input_dim", "output_dim"}
	case model.KindActivation, model.KindLambda:
		return []string{"function"}
	case model.KindGraphAttention:
		return []string{"num_heads"}
	case model.KindConcatenate:
		return []string{"axis"}
	case model.KindGaussianNoise:
		return []string{"stddev"}
	case model.KindGroupNormalization:
		return []string{"groups"}
	case model.KindReshape:
		return []string{"target_shape"}
	case model.KindCustomShape:
		return []string{"layer", "custom_dims"}
	}
	return nil
}
