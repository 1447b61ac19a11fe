package app

import (
	"testing"

	"github.com/specialistvlad/neuraldsl/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProject(t *testing.T) {
	path := WriteSource(t, t.TempDir(), DefaultProjectFile, `
backend   = "pytorch"
log_level = "debug"

training_defaults {
  epochs           = 10
  batch_size       = 32
  validation_split = 0.2
  shuffle          = true
  search_method    = "random"
  window           = [2, 2]
}
`)

	p, err := LoadProject(path)
	require.NoError(t, err)
	assert.Equal(t, "pytorch", p.Backend)
	assert.Equal(t, "debug", p.LogLevel)
	assert.Empty(t, p.LogFormat)

	require.NotNil(t, p.TrainingDefaults)
	assert.Equal(t, []string{"epochs", "batch_size", "validation_split", "shuffle", "search_method", "window"}, p.TrainingDefaults.Keys())
	assert.Equal(t, map[string]any{
		"epochs":           10,
		"batch_size":       32,
		"validation_split": 0.2,
		"shuffle":          true,
		"search_method":    "random",
		"window":           []int{2, 2},
	}, p.TrainingDefaults.PlainMap())
}

func TestLoadProject_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		src     string
		wantErr string
	}{
		{"syntax error", `backend = `, "failed to parse project file"},
		{"unknown attribute", `workers = 4`, "failed to decode project file"},
		{"wrong attribute type", `backend = 3 + {}`, "failed to"},
		{"object default", "training_defaults {\n  layout = { a = 1 }\n}", "unsupported value of type object"},
		{"fractional tuple", "training_defaults {\n  window = [1.5]\n}", "tuple elements must be integers"},
		{"null default", "training_defaults {\n  epochs = null\n}", "must be known and not null"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := WriteSource(t, t.TempDir(), DefaultProjectFile, tc.src)
			_, err := LoadProject(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadProject_Missing(t *testing.T) {
	_, err := LoadProject("does-not-exist.hcl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestFindProject(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, FindProject(dir))

	path := WriteSource(t, dir, DefaultProjectFile, `backend = "onnx"`)
	assert.Equal(t, path, FindProject(dir))
}

func TestNewApp_ProjectFillsConfig(t *testing.T) {
	path := WriteSource(t, t.TempDir(), DefaultProjectFile, `
backend    = "onnx"
log_format = "json"
`)

	t.Run("project values fill empty settings", func(t *testing.T) {
		a, err := NewApp(&SafeBuffer{}, Config{ProjectFile: path})
		require.NoError(t, err)
		assert.Equal(t, "onnx", a.Config().Backend)
		assert.Equal(t, "json", a.Config().LogFormat)
	})

	t.Run("explicit settings win", func(t *testing.T) {
		a, err := NewApp(&SafeBuffer{}, Config{ProjectFile: path, Backend: "tensorflow", LogFormat: "text"})
		require.NoError(t, err)
		assert.Equal(t, "tensorflow", a.Config().Backend)
		assert.Equal(t, "text", a.Config().LogFormat)
	})

	t.Run("invalid project value", func(t *testing.T) {
		bad := WriteSource(t, t.TempDir(), DefaultProjectFile, `log_level = "loud"`)
		_, err := NewApp(&SafeBuffer{}, Config{ProjectFile: bad})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestApplyTrainingDefaults(t *testing.T) {
	defaults := model.ParamsOf("epochs", model.Int(10), "batch_size", model.Int(32))

	t.Run("declared keys win", func(t *testing.T) {
		net := &model.Network{TrainingConfig: model.ParamsOf("epochs", model.Int(5))}
		assert.True(t, applyTrainingDefaults(net, defaults))
		assert.Equal(t, map[string]any{"epochs": 5, "batch_size": 32}, net.TrainingConfig.PlainMap())
	})

	t.Run("missing train block is created", func(t *testing.T) {
		net := &model.Network{}
		assert.True(t, applyTrainingDefaults(net, defaults))
		assert.Equal(t, []string{"epochs", "batch_size"}, net.TrainingConfig.Keys())
	})

	t.Run("no defaults keeps null", func(t *testing.T) {
		net := &model.Network{}
		assert.False(t, applyTrainingDefaults(net, nil))
		assert.Nil(t, net.TrainingConfig)
	})

	t.Run("nothing to add", func(t *testing.T) {
		net := &model.Network{TrainingConfig: model.ParamsOf("epochs", model.Int(1), "batch_size", model.Int(8))}
		assert.False(t, applyTrainingDefaults(net, defaults))
	})
}
