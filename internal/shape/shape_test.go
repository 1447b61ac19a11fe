package shape

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/neuraldsl/internal/diag"
	"github.com/specialistvlad/neuraldsl/internal/model"
	"github.com/specialistvlad/neuraldsl/internal/parser"
	"github.com/specialistvlad/neuraldsl/internal/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const none = model.Unknown

func layerOf(t *testing.T, src string) *model.LayerNode {
	t.Helper()
	l, err := transform.ParseLayer("test.neural", []byte(src))
	require.NoError(t, err, "transform %q", src)
	return l
}

func requireShapeError(t *testing.T, err error, want string) {
	t.Helper()
	require.Error(t, err)
	var shapeErr *diag.ShapeError
	require.True(t, errors.As(err, &shapeErr), "expected a shape error, got %T: %v", err, err)
	assert.Contains(t, err.Error(), want)
}

func TestPropagate(t *testing.T) {
	testCases := []struct {
		name    string
		backend model.Backend
		in      model.Shape
		layer   string
		want    model.Shape
		params  int64
	}{
		{"conv valid", "", model.Shape{none, 28, 28, 1}, `Conv2D(filters=32, kernel_size=(3,3))`, model.Shape{none, 26, 26, 32}, 320},
		{"conv same with stride", "", model.Shape{none, 28, 28, 1}, `Conv2D(16, 3, padding="same", strides=2)`, model.Shape{none, 14, 14, 16}, 160},
		{"conv without batch axis", "", model.Shape{224, 224, 3}, `Conv2D(64, (7,7), strides=2)`, model.Shape{109, 109, 64}, 7*7*3*64 + 64},
		{"conv dilation", "", model.Shape{none, 28, 28, 1}, `Conv2D(8, (3,3), dilation_rate=2)`, model.Shape{none, 24, 24, 8}, 80},
		{"conv explicit padding", "", model.Shape{none, 28, 28, 1}, `Conv2D(8, (3,3), padding=1)`, model.Shape{none, 28, 28, 8}, 80},
		{"conv channels first", model.PyTorch, model.Shape{none, 1, 28, 28}, `Conv2D(32, (3,3))`, model.Shape{none, 32, 26, 26}, 320},
		{"conv1d", "", model.Shape{none, 100, 8}, `Conv1D(16, 5)`, model.Shape{none, 96, 16}, 5*8*16 + 16},
		{"max pooling default stride", "", model.Shape{none, 26, 26, 32}, `MaxPooling2D((2, 2))`, model.Shape{none, 13, 13, 32}, 0},
		{"average pooling explicit stride", "", model.Shape{none, 10, 10, 4}, `AveragePooling2D(3, 1)`, model.Shape{none, 8, 8, 4}, 0},
		{"global average pooling", "", model.Shape{none, 7, 7, 512}, `GlobalAveragePooling2D()`, model.Shape{none, 512}, 0},
		{"global pooling channels first", model.ONNX, model.Shape{none, 512, 7, 7}, `GlobalMaxPooling2D()`, model.Shape{none, 512}, 0},
		{"flatten keeps batch", "", model.Shape{none, 13, 13, 32}, `Flatten()`, model.Shape{none, 5408}, 0},
		{"flatten without batch", "", model.Shape{4, 4}, `Flatten()`, model.Shape{16}, 0},
		{"dense", "", model.Shape{none, 5408}, `Dense(128, "relu")`, model.Shape{none, 128}, 5408*128 + 128},
		{"output", "", model.Shape{none, 128}, `Output(10, "softmax")`, model.Shape{none, 10}, 1290},
		{"dropout is identity", "", model.Shape{none, 128}, `Dropout(0.5)`, model.Shape{none, 128}, 0},
		{"batch normalization", "", model.Shape{none, 26, 26, 32}, `BatchNormalization()`, model.Shape{none, 26, 26, 32}, 128},
		{"layer normalization", "", model.Shape{none, 64}, `LayerNormalization()`, model.Shape{none, 64}, 128},
		{"embedding appends a dimension", "", model.Shape{none, 20}, `Embedding(1000, 64)`, model.Shape{none, 20, 64}, 64000},
		{"lstm drops time axis", "", model.Shape{none, 10, 8}, `LSTM(64)`, model.Shape{none, 64}, 18688},
		{"lstm returns sequences", "", model.Shape{none, 10, 8}, `LSTM(64, return_sequences=true)`, model.Shape{none, 10, 64}, 18688},
		{"gru", "", model.Shape{none, 10, 8}, `GRU(16)`, model.Shape{none, 16}, 3 * (16*(8+16) + 16)},
		{"lstm cell", "", model.Shape{none, 8}, `LSTMCell(32)`, model.Shape{none, 32}, 4 * (32*(8+32) + 32)},
		{"time distributed dense", "", model.Shape{none, 10, 128}, `TimeDistributed(Dense(32))`, model.Shape{none, 10, 32}, 4128},
		{"time distributed conv", "", model.Shape{none, 5, 28, 28, 1}, `TimeDistributed(Conv2D(8, (3,3)))`, model.Shape{none, 5, 26, 26, 8}, 80},
		{"reshape", "", model.Shape{none, 98}, `Reshape((7, 7, 2))`, model.Shape{none, 7, 7, 2}, 0},
		{"custom shape", "", model.Shape{none, 10}, `CustomShape(MyLayer, (32, 32))`, model.Shape{none, 32, 32}, 0},
		{"residual keeps shape", "", model.Shape{none, 64}, `ResidualConnection() { Dense(64) }`, model.Shape{none, 64}, 64*64 + 64},
		{"inception concatenates branches", "", model.Shape{none, 28, 28, 3}, `Inception() { Conv2D(16, (1,1)) Conv2D(32, (3,3), padding="same") }`, model.Shape{none, 28, 28, 48}, (3*16 + 16) + (9*3*32 + 32)},
		{"transformer container", "", model.Shape{none, 10, 16}, `Transformer() { Dense(8) }`, model.Shape{none, 10, 8}, 16*8 + 8},
		{"encoder keeps width", "", model.Shape{none, 10, 4}, `TransformerEncoder(num_heads=2, ff_dim=8)`, model.Shape{none, 10, 4}, 4*(4*4+4) + (4*8 + 8) + (8*4 + 4) + 2*2*4},
		{"unknown spatial stays unknown", "", model.Shape{none, none, none, 3}, `Conv2D(8, (3,3))`, model.Shape{none, none, none, 8}, 9*3*8 + 8},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := New(Options{Backend: tc.backend})
			out, err := p.Propagate(tc.in, layerOf(t, tc.layer))
			require.NoError(t, err)
			assert.Equal(t, tc.want, out)

			stats := p.Stats()
			require.Len(t, stats, 1)
			assert.Equal(t, tc.params, stats[0].Params)
			assert.Equal(t, tc.in, stats[0].InputShape)
		})
	}
}

func TestPropagate_Errors(t *testing.T) {
	testCases := []struct {
		name  string
		in    model.Shape
		layer string
		want  string
	}{
		{"kernel larger than input", model.Shape{none, 3, 3, 1}, `Conv2D(8, (5,5))`, "Invalid output shape"},
		{"pooling larger than input", model.Shape{none, 1, 1, 4}, `MaxPooling2D((2, 2))`, "non-positive dimension"},
		{"rank too small for conv", model.Shape{10}, `Conv2D(8, (3,3))`, "Incompatible input rank"},
		{"rank too small for lstm", model.Shape{10}, `LSTM(8)`, "Incompatible input rank"},
		{"lstm without time axis", model.Shape{none, 10}, `LSTM(8)`, "expects at least 3 dimensions"},
		{"gru without time axis", model.Shape{none, 10}, `GRU(8, return_sequences=true)`, "Incompatible input rank"},
		{"reshape size mismatch", model.Shape{none, 100}, `Reshape((7, 7, 2))`, "Reshape size mismatch"},
		{"residual mismatch", model.Shape{none, 128}, `ResidualConnection() { Dense(64) }`, "Residual shape mismatch"},
		{"zero custom dimension", model.Shape{none, 10}, `CustomShape(MyLayer, (0, 32))`, "Invalid output shape"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := New(Options{})
			_, err := p.Propagate(tc.in, layerOf(t, tc.layer))
			requireShapeError(t, err, tc.want)
			assert.Empty(t, p.Trace(), "failed steps are not traced")
		})
	}
}

func TestPropagate_Warnings(t *testing.T) {
	t.Run("custom layer is identity", func(t *testing.T) {
		p := New(Options{})
		out, err := p.Propagate(model.Shape{none, 32}, layerOf(t, `MyCustomLayer(size=3)`))
		require.NoError(t, err)
		assert.Equal(t, model.Shape{none, 32}, out)

		diags := p.Diagnostics().Diagnostics()
		require.Len(t, diags, 1)
		assert.Contains(t, diags[0].Message(), "No shape rule for MyCustomLayer")
	})

	t.Run("search space uses representative value", func(t *testing.T) {
		p := New(Options{})
		out, err := p.Propagate(model.Shape{none, 10}, layerOf(t, `Dense(HPO(choice(128, 256)))`))
		require.NoError(t, err)
		assert.Equal(t, model.Shape{none, 128}, out)

		diags := p.Diagnostics().Diagnostics()
		require.Len(t, diags, 1)
		assert.Contains(t, diags[0].Message(), "representative value 128")
	})

	t.Run("macro without registry", func(t *testing.T) {
		p := New(Options{})
		node := &model.LayerNode{Kind: model.KindMacro, Type: "Block", Params: model.NewParams()}
		out, err := p.Propagate(model.Shape{none, 4}, node)
		require.NoError(t, err)
		assert.Equal(t, model.Shape{none, 4}, out)
		assert.Equal(t, 1, p.Diagnostics().Len())
	})
}

func TestRun_Network(t *testing.T) {
	net, err := transform.ParseNetwork("", []byte(`network TestModel {
		input: (None, 28, 28, 1)
		layers:
			Conv2D(32, (3,3), "relu")
			MaxPooling2D((2, 2))
			Flatten()
			Dense(128, "relu")
			Output(10, "softmax")
		loss: "categorical_crossentropy"
		optimizer: "adam"
	}`))
	require.NoError(t, err)

	p := New(Options{Backend: net.Framework})
	out, err := p.Run(net)
	require.NoError(t, err)
	assert.Equal(t, model.Shape{none, 10}, out)

	want := []model.TraceEntry{
		{Layer: "Conv2D", OutputShape: model.Shape{none, 26, 26, 32}},
		{Layer: "MaxPooling2D", OutputShape: model.Shape{none, 13, 13, 32}},
		{Layer: "Flatten", OutputShape: model.Shape{none, 5408}},
		{Layer: "Dense", OutputShape: model.Shape{none, 128}},
		{Layer: "Output", OutputShape: model.Shape{none, 10}},
	}
	assert.Equal(t, want, net.ShapeInfo)
	assert.Empty(t, net.Warnings)
	assert.Equal(t, int64(320+692352+1290), p.TotalParams())
}

func TestRun_MacroExpansion(t *testing.T) {
	f, err := parser.ParseFile("", []byte(`
	define Head {
		Dense(128, "relu")
		Dropout(0.5)
	}
	network Net {
		input: (None, 10)
		layers:
			Head()
			Output(2)
		loss: "mse"
		optimizer: "sgd"
	}`))
	require.NoError(t, err)

	tr := transform.New(nil)
	res, err := tr.File(f)
	require.NoError(t, err)

	p := New(Options{Macros: tr.Registry(), Diagnostics: tr.Diagnostics()})
	out, err := p.Run(res.Network)
	require.NoError(t, err)
	assert.Equal(t, model.Shape{none, 2}, out)
	assert.Equal(t, model.Shape{none, 128}, res.Network.ShapeInfo[0].OutputShape)
	assert.Equal(t, "Head", res.Network.ShapeInfo[0].Layer)
	assert.Equal(t, []int64{10*128 + 128, 128*2 + 2}, []int64{p.Stats()[0].Params, p.Stats()[1].Params})
}

func TestRun_AppendsWarnings(t *testing.T) {
	net, err := transform.ParseNetwork("", []byte(`network N {
		input: (None, 8)
		layers:
			Dropout(1.1)
			SpecialLayer()
			Dense(2)
		loss: "mse"
		optimizer: "sgd"
	}`))
	require.NoError(t, err)
	require.Len(t, net.Warnings, 1)

	_, err = New(Options{}).Run(net)
	require.NoError(t, err)
	require.Len(t, net.Warnings, 2)
	assert.Contains(t, net.Warnings[1].Message, "SpecialLayer")
}

func TestDebugTrace(t *testing.T) {
	p := New(Options{Debug: true})
	_, err := p.Propagate(model.Shape{none, 4}, layerOf(t, `Dense(2)`))
	require.NoError(t, err)

	trace := p.Trace()
	require.Len(t, trace, 1)
	plain := trace[0].Plain()
	assert.Contains(t, plain, "mean_activation")
	assert.Contains(t, plain, "active_ratio")
	assert.Contains(t, plain, "anomaly")
	assert.Nil(t, plain["mean_activation"])
}

func TestPropagate_Deterministic(t *testing.T) {
	in := model.Shape{none, 28, 28, 1}
	l := layerOf(t, `Conv2D(16, (5,5), strides=(2,2))`)

	first, err := New(Options{}).Propagate(in, l)
	require.NoError(t, err)
	second, err := New(Options{}).Propagate(in, l)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(first, second))
	assert.Equal(t, model.Shape{none, 28, 28, 1}, in, "input is not modified")
}

func TestGenerateReport(t *testing.T) {
	p := New(Options{})
	cur := model.Shape{none, 8}
	for _, src := range []string{`Dense(4)`, `Dropout(0.1)`, `Output(2)`} {
		var err error
		cur, err = p.Propagate(cur, layerOf(t, src))
		require.NoError(t, err)
	}

	r, err := p.GenerateReport()
	require.NoError(t, err)
	assert.Equal(t, []int64{36, 0, 10}, r.ParamCounts())
	assert.Equal(t, int64(46), r.TotalParams)
	assert.Equal(t, []string{InputNode, "layer_0", "layer_1", "layer_2"}, r.Graph.Nodes())
	assert.Equal(t, [][2]string{{InputNode, "layer_0"}, {"layer_0", "layer_1"}, {"layer_1", "layer_2"}}, r.Graph.Edges())

	label, ok := r.Graph.Attr("layer_2", "label")
	require.True(t, ok)
	assert.Equal(t, "Output\n(None, 2)", label)

	out, err := r.Graph.MarshalDOT("Net")
	require.NoError(t, err)
	assert.Contains(t, string(out), "layer_1")
}
