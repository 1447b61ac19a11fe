package app

import (
	"fmt"
	"runtime"
	"slices"

	"github.com/specialistvlad/neuraldsl/internal/model"
)

// Output formats of the model description.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
	outputs    = []string{FormatJSON, FormatYAML}
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// Backend is the layout used for networks that do not declare a
	// framework. Empty keeps the network's own default.
	Backend string

	LogFormat string
	LogLevel  string

	// Output is the model description format, json or yaml.
	Output string
	// Debug adds the runtime placeholder keys to the shape trace.
	Debug bool
	// ProjectFile is the neural.hcl to load. Empty means none.
	ProjectFile string
	// Workers bounds the number of files compiled at once.
	Workers int
}

// NewConfig fills defaults and validates cfg.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.Output == "" {
		cfg.Output = FormatJSON
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	if cfg.Backend != "" {
		if _, err := model.ParseBackend(cfg.Backend); err != nil {
			return nil, fmt.Errorf("invalid backend: %w", err)
		}
	}
	if !slices.Contains(logLevels, cfg.LogLevel) {
		return nil, fmt.Errorf("invalid log level %q: must be one of %v", cfg.LogLevel, logLevels)
	}
	if !slices.Contains(logFormats, cfg.LogFormat) {
		return nil, fmt.Errorf("invalid log format %q: must be one of %v", cfg.LogFormat, logFormats)
	}
	if !slices.Contains(outputs, cfg.Output) {
		return nil, fmt.Errorf("invalid output format %q: must be one of %v", cfg.Output, outputs)
	}

	return &cfg, nil
}
