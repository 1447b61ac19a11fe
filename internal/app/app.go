package app

import (
	"fmt"
	"io"
	"log/slog"
)

// App encapsulates the application's dependencies and configuration.
type App struct {
	logger  *slog.Logger
	config  *Config
	project *Project
}

// NewApp loads the project file named by cfg, lets it fill the settings cfg
// leaves empty and validates the result. Logs are written to logW.
func NewApp(logW io.Writer, cfg Config) (*App, error) {
	var project *Project
	if cfg.ProjectFile != "" {
		p, err := LoadProject(cfg.ProjectFile)
		if err != nil {
			return nil, err
		}
		project = p
	}

	config, err := NewConfig(project.apply(cfg))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(config.LogLevel, config.LogFormat, logW)
	logger.Debug("Logger configured successfully.")
	if project != nil {
		logger.Debug("Project file loaded.", "path", config.ProjectFile, "backend", project.Backend)
	}

	return &App{
		logger:  logger,
		config:  config,
		project: project,
	}, nil
}

// Config returns the effective configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application's logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}
