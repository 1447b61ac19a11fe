package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mnist = `network MNISTClassifier {
	input: (None, 28, 28, 1)
	layers:
		Conv2D(32, (3,3), "relu")
		MaxPooling2D((2, 2))
		Flatten()
		Dense(128, "relu")
		Output(10, "softmax")
	loss: "categorical_crossentropy"
	optimizer: "adam"
}
`

func writeFile(t *testing.T, name, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := Execute(context.Background(), args, &out, &errOut)
	return out.String(), errOut.String(), err
}

func requireExitCode(t *testing.T, err error, code int) *ExitError {
	t.Helper()
	require.Error(t, err)
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "expected an ExitError, got %T: %v", err, err)
	assert.Equal(t, code, exitErr.Code, exitErr.Message)
	return exitErr
}

func TestCompile(t *testing.T) {
	path := writeFile(t, "mnist.neural", mnist)

	t.Run("json", func(t *testing.T) {
		out, _, err := execute(t, "compile", path)
		require.NoError(t, err)
		assert.Contains(t, out, `"type": "model"`)
		assert.Contains(t, out, `"output_shape": 10`)
	})

	t.Run("yaml", func(t *testing.T) {
		out, _, err := execute(t, "compile", "--format", "yaml", path)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, "type: model\n"), out)
	})

	t.Run("output file", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "model.json")
		out, _, err := execute(t, "compile", "-o", dest, path)
		require.NoError(t, err)
		assert.Empty(t, out)

		written, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Contains(t, string(written), `"name": "MNISTClassifier"`)
	})

	t.Run("logs go to stderr", func(t *testing.T) {
		_, logs, err := execute(t, "compile", "--log-level", "debug", "--log-format", "json", path)
		require.NoError(t, err)
		assert.Contains(t, logs, `"unit":`)
	})
}

func TestCompile_Failures(t *testing.T) {
	t.Run("validation error is rendered", func(t *testing.T) {
		path := writeFile(t, "bad.neural", `network N {
	input: (4,)
	layers: Dense(-1)
	loss: "mse"
	optimizer: "sgd"
}`)
		out, errOut, err := execute(t, "compile", path)
		exitErr := requireExitCode(t, err, ExitCompile)
		assert.Contains(t, exitErr.Message, "1 of 1 files had errors")
		assert.Empty(t, out)
		assert.Contains(t, errOut, "units must be positive")
		assert.Contains(t, errOut, "Dense(-1)", "the source snippet is shown")
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := writeFile(t, "model.py", mnist)
		_, _, err := execute(t, "compile", path)
		exitErr := requireExitCode(t, err, ExitCompile)
		assert.Contains(t, exitErr.Message, "unsupported file extension")
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := execute(t, "compile", filepath.Join(t.TempDir(), "missing.neural"))
		requireExitCode(t, err, ExitCompile)
	})
}

func TestUsageErrors(t *testing.T) {
	path := writeFile(t, "mnist.neural", mnist)

	testCases := []struct {
		name string
		args []string
		want string
	}{
		{"unknown flag", []string{"compile", "--bogus", path}, "unknown flag"},
		{"missing paths", []string{"compile"}, "requires at least 1 arg"},
		{"unknown command", []string{"train", path}, "unknown command"},
		{"invalid log level", []string{"compile", "--log-level", "loud", path}, "invalid log level"},
		{"invalid backend", []string{"shapes", "-b", "jax", path}, "invalid backend"},
		{"invalid format", []string{"compile", "-f", "toml", path}, "invalid output format"},
		{"missing project file", []string{"compile", "--project", filepath.Join(t.TempDir(), "neural.hcl"), path}, "does not exist"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := execute(t, tc.args...)
			exitErr := requireExitCode(t, err, ExitUsage)
			assert.Contains(t, exitErr.Message, tc.want)
		})
	}
}

func TestShapes(t *testing.T) {
	path := writeFile(t, "mnist.neural", mnist)
	research := writeFile(t, "paper.rnr", `research { metrics { accuracy: 0.9 } }`)

	out, _, err := execute(t, "shapes", path, research)
	require.NoError(t, err)
	assert.Contains(t, out, "MNISTClassifier ("+path+")")
	assert.Contains(t, out, "OUTPUT SHAPE")
	assert.Contains(t, out, "(None, 26, 26, 32)")
	assert.Contains(t, out, "692352")
	assert.Contains(t, out, "Total params: 693962")
	assert.NotContains(t, out, research)
}

func TestShapes_Backend(t *testing.T) {
	path := writeFile(t, "n.neural", `network {
	input: (None, 3, 32, 32)
	layers: Conv2D(16, (3,3))
	loss: "mse"
	optimizer: "sgd"
}`)
	out, _, err := execute(t, "shapes", "--backend", "pytorch", path)
	require.NoError(t, err)
	assert.Contains(t, out, "(None, 16, 30, 30)")
}

func TestProjectFile(t *testing.T) {
	project := writeFile(t, "neural.hcl", "backend = \"pytorch\"\n")
	path := writeFile(t, "n.neural", `network {
	input: (None, 3, 32, 32)
	layers: Conv2D(16, (3,3))
	loss: "mse"
	optimizer: "sgd"
}`)
	out, _, err := execute(t, "shapes", "--project", project, path)
	require.NoError(t, err)
	assert.Contains(t, out, "(None, 16, 30, 30)")
}

func TestVisualize(t *testing.T) {
	path := writeFile(t, "mnist.neural", mnist)

	out, _, err := execute(t, "visualize", path)
	require.NoError(t, err)
	assert.Contains(t, out, "digraph")
	assert.Contains(t, out, "layer_0")
	assert.Contains(t, out, "input -> layer_0")

	dest := filepath.Join(t.TempDir(), "model.dot")
	_, _, err = execute(t, "visualize", "-o", dest, path)
	require.NoError(t, err)
	written, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(written), "digraph")
}

func TestDebug(t *testing.T) {
	path := writeFile(t, "mnist.neural", mnist)

	t.Run("table", func(t *testing.T) {
		out, _, err := execute(t, "debug", path)
		require.NoError(t, err)
		assert.Contains(t, out, "MEAN ACTIVATION")
		assert.Contains(t, out, "Conv2D")
		assert.Contains(t, out, "-")
	})

	t.Run("json", func(t *testing.T) {
		out, _, err := execute(t, "debug", "-f", "json", path)
		require.NoError(t, err)
		assert.Contains(t, out, `"mean_activation": null`)
		assert.Contains(t, out, `"anomaly": null`)
	})
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "neuraldsl version "+Version+"\n", out)
}
