package parser

import (
	"errors"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/neuraldsl/internal/diag"
	"github.com/specialistvlad/neuraldsl/internal/syntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireSyntaxError(t *testing.T, err error) *diag.SyntaxError {
	t.Helper()
	require.Error(t, err)
	var syntaxErr *diag.SyntaxError
	require.True(t, errors.As(err, &syntaxErr), "expected a syntax error, got %T: %v", err, err)
	return syntaxErr
}

func TestParseLayer(t *testing.T) {
	t.Run("positional and named arguments", func(t *testing.T) {
		l, err := ParseLayer("", []byte(`Conv2D(32, kernel_size=(3,3), activation="relu")`))
		require.NoError(t, err)

		assert.Equal(t, "Conv2D", l.Call.Name)
		require.Len(t, l.Call.Args, 3)
		assert.Empty(t, l.Call.Args[0].Name)
		assert.Equal(t, &syntax.Number{Text: "32", IsInt: true, Rng: l.Call.Args[0].Value.Range()}, l.Call.Args[0].Value)
		assert.Equal(t, "kernel_size", l.Call.Args[1].Name)
		tuple, ok := l.Call.Args[1].Value.(*syntax.Tuple)
		require.True(t, ok)
		assert.Len(t, tuple.Elems, 2)
		assert.Equal(t, "activation", l.Call.Args[2].Name)
		assert.Equal(t, "relu", l.Call.Args[2].Value.(*syntax.Str).Value)
		assert.Len(t, l.Call.Positional(), 1)
	})

	t.Run("device, sublayers and repetition", func(t *testing.T) {
		l, err := ParseLayer("", []byte(`TransformerEncoder(num_heads=8, ff_dim=512) @ "cuda:0" {
			Conv2D(32, (3,3))
			Dense(128)
		} * 2`))
		require.NoError(t, err)

		require.NotNil(t, l.Device)
		assert.Equal(t, "cuda:0", l.Device.Value)
		assert.True(t, l.HasBlock)
		require.Len(t, l.Sublayers, 2)
		assert.Equal(t, "Dense", l.Sublayers[1].Call.Name)
		require.NotNil(t, l.Repeat)
		assert.Equal(t, "2", l.Repeat.Text)
		assert.Equal(t, 1, l.Rng.Start.Line)
		assert.Equal(t, 4, l.Rng.End.Line)
	})

	t.Run("nested call arguments", func(t *testing.T) {
		l, err := ParseLayer("", []byte(`TimeDistributed(Dense(128, "relu"), dropout=0.5)`))
		require.NoError(t, err)

		inner, ok := l.Call.Args[0].Value.(*syntax.Call)
		require.True(t, ok)
		assert.Equal(t, "Dense", inner.Name)
		assert.Len(t, inner.Args, 2)
	})

	t.Run("hpo expression is a call", func(t *testing.T) {
		l, err := ParseLayer("", []byte(`Dropout(HPO(range(0.3, 0.7, step=0.1)))`))
		require.NoError(t, err)

		hpo := l.Call.Args[0].Value.(*syntax.Call)
		assert.Equal(t, "HPO", hpo.Name)
		rng := hpo.Args[0].Value.(*syntax.Call)
		assert.Equal(t, "range", rng.Name)
		assert.Equal(t, "step", rng.Args[2].Name)
	})

	t.Run("literals", func(t *testing.T) {
		l, err := ParseLayer("", []byte(`X(-1, +2.5, true, False, None, name)`))
		require.NoError(t, err)

		args := l.Call.Args
		assert.Equal(t, "-1", args[0].Value.(*syntax.Number).Text)
		assert.True(t, args[0].Value.(*syntax.Number).IsInt)
		assert.Equal(t, "2.5", args[1].Value.(*syntax.Number).Text)
		assert.False(t, args[1].Value.(*syntax.Number).IsInt)
		assert.True(t, args[2].Value.(*syntax.Bool).Value)
		assert.False(t, args[3].Value.(*syntax.Bool).Value)
		assert.IsType(t, &syntax.None{}, args[4].Value)
		assert.Equal(t, "name", args[5].Value.(*syntax.Ident).Name)
	})

	t.Run("trailing comment", func(t *testing.T) {
		l, err := ParseLayer("", []byte("Dense(128, \"relu\")  # Dense layer with ReLU activation"))
		require.NoError(t, err)
		assert.Len(t, l.Call.Args, 2)
	})

	t.Run("empty argument list", func(t *testing.T) {
		l, err := ParseLayer("", []byte(`Flatten()`))
		require.NoError(t, err)
		assert.Empty(t, l.Call.Args)
		assert.False(t, l.HasBlock)
	})
}

func TestParseLayer_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		src     string
		summary string
	}{
		{name: "incomplete block", src: `Transformer() {`, summary: "Unexpected end of input"},
		{name: "empty block", src: `ResidualConnection() {}`, summary: "Unexpected token"},
		{name: "empty block with repetition", src: `TransformerEncoder(num_heads=8, ff_dim=512) { } * 2`, summary: "Unexpected token"},
		{name: "unclosed block", src: `ResidualConnection() { Dense(10)`, summary: "Unexpected end of input"},
		{name: "missing parenthesis", src: `Dense`, summary: "Unexpected end of input"},
		{name: "unclosed arguments", src: `Dense(10`, summary: "Unexpected end of input"},
		{name: "device must be a string", src: `Dense(10) @ cpu`, summary: "Unexpected token"},
		{name: "repeat needs an integer", src: `Dense(10) * 2.5`, summary: "Unexpected token"},
		{name: "two layers", src: `Dense(10) Dense(5)`, summary: "Unexpected token"},
		{name: "bad character", src: `Dense(10) ;`, summary: "Unexpected character"},
		{name: "sign without number", src: `Dense(-relu)`, summary: "Unexpected token"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseLayer("", []byte(tc.src))
			syntaxErr := requireSyntaxError(t, err)
			assert.Equal(t, tc.summary, syntaxErr.Summary())
		})
	}
}

func TestParseNetwork(t *testing.T) {
	src := `
	network TestModel {
		input: (None, 28, 28, 1)
		layers:
			Conv2D(32, (3,3), "relu")
			MaxPooling2D((2, 2))
			Flatten()
			Dense(128, "relu")
			Output(10, "softmax")
		loss: "categorical_crossentropy"
		optimizer: "adam"
		train { epochs: 10 batch_size: 32 }
		execution { device: "cuda:0" }
		framework: "pytorch"
	}`

	n, err := ParseNetwork("mnist.neural", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, "TestModel", n.Name)
	require.NotNil(t, n.Input)
	assert.Len(t, n.Input.Elems, 4)
	assert.IsType(t, &syntax.None{}, n.Input.Elems[0])
	assert.True(t, n.HasLayers)
	assert.Len(t, n.Layers, 5)
	assert.Equal(t, "categorical_crossentropy", n.Loss.Value)
	assert.Equal(t, "adam", n.Optimizer.Value)
	assert.True(t, n.HasTrain)
	require.Len(t, n.Train, 2)
	assert.Equal(t, "batch_size", n.Train[1].Key)
	require.Len(t, n.Execution, 1)
	assert.Equal(t, "pytorch", n.Framework.Value)
	assert.Equal(t, "mnist.neural", n.Rng.Filename)
	assert.Contains(t, n.KeyRanges, "layers")
}

func TestParseNetwork_KeysInAnyOrder(t *testing.T) {
	n, err := ParseNetwork("", []byte(`network {
		optimizer: "sgd"
		layers: Dense(5)
		loss: "mse"
		input: (10,)
	}`))
	require.NoError(t, err)
	assert.Empty(t, n.Name)
	assert.Len(t, n.Input.Elems, 1)
	assert.Len(t, n.Layers, 1)
}

func TestParseNetwork_MissingLayersStillParses(t *testing.T) {
	n, err := ParseNetwork("", []byte(`network MissingLayers { input: (10,) loss: "mse" optimizer: "sgd" }`))
	require.NoError(t, err)
	assert.False(t, n.HasLayers)
}

func TestParseNetwork_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		src     string
		summary string
	}{
		{name: "missing close", src: `network Test { input: (1,1) layers: Dense(10)`, summary: "Unexpected end of input"},
		{name: "duplicate key", src: `network { loss: "mse" loss: "mae" }`, summary: "Duplicate key"},
		{name: "unknown key", src: `network { metrics: "x" }`, summary: "Unknown network key"},
		{name: "empty layers", src: `network { layers: loss: "mse" }`, summary: "Unexpected token"},
		{name: "loss must be a string", src: `network { loss: mse }`, summary: "Unexpected token"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseNetwork("", []byte(tc.src))
			syntaxErr := requireSyntaxError(t, err)
			assert.Equal(t, tc.summary, syntaxErr.Summary())
		})
	}
}

func TestParseResearch(t *testing.T) {
	r, err := ParseResearch("", []byte(`
	research ResearchStudy {
		metrics {
			accuracy: 0.95
			loss: 0.05
		}
		references {
			paper: "Paper Title 1"
			paper: "Another Great Paper"
		}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "ResearchStudy", r.Name)
	require.Len(t, r.Metrics, 2)
	assert.Equal(t, "accuracy", r.Metrics[0].Key)
	require.Len(t, r.References, 2)
	assert.Equal(t, "Another Great Paper", r.References[1].Value)

	r, err = ParseResearch("", []byte(`research { metrics { precision: 0.8, recall: 0.9 } }`))
	require.NoError(t, err)
	assert.Empty(t, r.Name)
	assert.Len(t, r.Metrics, 2)
	assert.Empty(t, r.References)

	_, err = ParseResearch("", []byte(`research { references { paper: "x" } }`))
	requireSyntaxError(t, err)
}

func TestParseDefine(t *testing.T) {
	d, err := ParseDefine("", []byte(`define ResBlock {
		Conv2D(64, (3,3))
		BatchNormalization()
		ResidualConnection() { Dense(128) Dropout(0.3) }
	}`))
	require.NoError(t, err)

	assert.Equal(t, "ResBlock", d.Name)
	require.Len(t, d.Layers, 3)
	assert.Len(t, d.Layers[2].Sublayers, 2)

	_, err = ParseDefine("", []byte(`define Empty { }`))
	requireSyntaxError(t, err)
}

func TestParseFile(t *testing.T) {
	f, err := ParseFile("model.neural", []byte(`
	# shared blocks
	define Block { Dense(64, "relu") Dropout(0.1) }

	network Net {
		input: (None, 32)
		layers: Block() Output(10, "softmax")
		loss: "mse"
		optimizer: "adam"
	}`))
	require.NoError(t, err)
	require.Len(t, f.Decls, 2)
	assert.IsType(t, &syntax.Define{}, f.Decls[0])
	assert.IsType(t, &syntax.Network{}, f.Decls[1])

	_, err = ParseFile("", []byte(`Dense(10)`))
	requireSyntaxError(t, err)

	empty, err := ParseFile("", []byte("# nothing here\n"))
	require.NoError(t, err)
	assert.Empty(t, empty.Decls)
}

func TestParseCall(t *testing.T) {
	start := hcl.Pos{Line: 5, Column: 14, Byte: 120}

	call, err := ParseCall("net.neural", []byte(`Adam(learning_rate=1e-4)`), start)
	require.NoError(t, err)
	assert.Equal(t, "Adam", call.Name)
	assert.False(t, call.Bare)
	require.Len(t, call.Args, 1)
	assert.Equal(t, "1e-4", call.Args[0].Value.(*syntax.Number).Text)
	assert.Equal(t, start, call.Rng.Start)

	call, err = ParseCall("", []byte(`adam`), hcl.InitialPos)
	require.NoError(t, err)
	assert.True(t, call.Bare)
	assert.Empty(t, call.Args)

	_, err = ParseCall("", []byte(`Adam(lr=`), hcl.InitialPos)
	requireSyntaxError(t, err)

	_, err = ParseCall("", []byte(`Adam() extra`), hcl.InitialPos)
	requireSyntaxError(t, err)
}
