package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/specialistvlad/mcugraph/internal/ctxlog"
	"github.com/specialistvlad/mcugraph/internal/engine"
	"github.com/specialistvlad/mcugraph/internal/profiles"
	"github.com/specialistvlad/mcugraph/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	registry *registry.Registry
	engine   *engine.Engine
}

// NewApp is the constructor for the main application. The report goes to
// outW unless the config names a file; logs go to logW. Every instance has
// its own logger and registry.
func NewApp(outW, logW io.Writer, cfg *Config, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All device modules registered.", "count", len(modules))

	if err := reg.ValidateRegistry(ctx); err != nil {
		// A handler describing itself inconsistently is a programmer error.
		panic(err)
	}
	logger.Debug("Registry validation passed.")

	var extra []string
	if cfg.ProfilesPath != "" {
		extra = append(extra, cfg.ProfilesPath)
	}
	set, err := profiles.Load(ctx, extra...)
	if err != nil {
		return nil, fmt.Errorf("failed to load MCU profiles: %w", err)
	}

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		registry: reg,
		engine:   engine.New(reg, set),
	}, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}
