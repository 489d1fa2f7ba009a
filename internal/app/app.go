package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/vk/gridrouter/internal/config"
	"github.com/vk/gridrouter/internal/ctxlog"
	"github.com/vk/gridrouter/internal/metrics"
	"github.com/vk/gridrouter/internal/registry"
	"github.com/vk/gridrouter/internal/status"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx      context.Context
	outW     io.Writer
	logger   *slog.Logger
	logClose io.Closer
	config   *Config
	registry *registry.Registry
	topology *config.Topology
	metrics  *metrics.Collector
	status   *status.Store

	httpServer *http.Server
}

// NewApp is the constructor for the main application. It builds an isolated
// logger and registry and loads the topology through loader. A nil loader
// selects the format by file extension. With no modules given, the binary's
// built-in module table is used.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, modules ...registry.Module) (*App, error) {
	logger, logClose := newLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	reg := NewRegistry(modules...)
	logger.Debug("All Go modules registered.", "types", reg.Types())

	if loader == nil {
		loader = newFormatLoader()
	}
	topo, err := loader.Load(ctx, cfg.ConfigPaths...)
	if err != nil {
		logClose.Close()
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Debug("Configuration loaded.", "stage_id", topo.StageID, "modules", len(topo.Modules), "routes", len(topo.Routes))

	return &App{
		ctx:      ctx,
		outW:     outW,
		logger:   logger,
		logClose: logClose,
		config:   cfg,
		registry: reg,
		topology: topo,
		metrics:  metrics.New(),
		status:   status.New(),
	}, nil
}

// NewRegistry builds a registry from modules, or from the built-in module
// table when none are given.
func NewRegistry(modules ...registry.Module) *registry.Registry {
	if len(modules) == 0 {
		modules = coreModules
	}
	reg := registry.New()
	reg.RegisterAll(modules...)
	return reg
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry { return a.registry }

// Topology returns the loaded topology document.
func (a *App) Topology() *config.Topology { return a.topology }

// Status returns the store module lifecycle is recorded in.
func (a *App) Status() *status.Store { return a.status }

// Close releases resources held by the App, such as the log file.
func (a *App) Close() error {
	return a.logClose.Close()
}
