// Package echo provides a sink that logs every message it receives.
package echo

import (
	"context"
	"log/slog"

	"github.com/vk/gridrouter/internal/config"
	"github.com/vk/gridrouter/internal/ctxlog"
	"github.com/vk/gridrouter/internal/module"
	"github.com/vk/gridrouter/internal/registry"
)

// TypeName is the module tag used in topology documents.
const TypeName = "echo"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the echo factory.
func (m *Module) Register(r *registry.Registry) {
	r.Register(TypeName, New)
}

// Settings configures an echo sink.
type Settings struct {
	// AllFields logs the whole message instead of its data field.
	AllFields bool `cty:"all_fields"`
	// Level is the slog level messages are logged at.
	Level string `cty:"level"`
}

// Echo logs each inbound message.
type Echo struct {
	*module.Ports
	name     string
	settings Settings
	level    slog.Level
}

// New is the echo factory.
func New(name string, s config.Settings) (module.Module, error) {
	settings := Settings{Level: "info"}
	if err := s.Decode(&settings); err != nil {
		return nil, err
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(settings.Level)); err != nil {
		return nil, err
	}
	return &Echo{Ports: module.SinkPorts(), name: name, settings: settings, level: level}, nil
}

// Run logs messages until every inbox is closed or ctx is cancelled.
func (e *Echo) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	for msg := range e.Incoming(ctx) {
		if e.settings.AllFields {
			logger.Log(ctx, e.level, "Message received.", "message", msg.String())
			continue
		}
		data, ok := msg.Get("data")
		if !ok {
			logger.Log(ctx, e.level, "Message received.", "fields", msg.Keys())
			continue
		}
		logger.Log(ctx, e.level, "Message received.", "data", data.String())
	}
	return ctx.Err()
}
