// Package generator provides a source that emits a numbered sequence of
// messages, optionally paced by an interval.
package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vk/gridrouter/internal/channel"
	"github.com/vk/gridrouter/internal/config"
	"github.com/vk/gridrouter/internal/ctxlog"
	"github.com/vk/gridrouter/internal/message"
	"github.com/vk/gridrouter/internal/module"
	"github.com/vk/gridrouter/internal/registry"
)

const TypeName = "generator"

type Module struct{}

func (m *Module) Register(r *registry.Registry) {
	r.Register(TypeName, New)
}

// Settings configures a generator. Count <= 0 runs until cancelled or until
// every downstream receiver is gone.
type Settings struct {
	Count    int           `cty:"count"`
	Interval time.Duration `cty:"interval"`
	Template string        `cty:"template"`
}

// Generator emits {data, seq} messages.
type Generator struct {
	*module.Ports
	settings Settings
}

func New(name string, s config.Settings) (module.Module, error) {
	settings := Settings{Count: 10, Template: "message %d"}
	if err := s.Decode(&settings); err != nil {
		return nil, err
	}
	if settings.Interval < 0 {
		return nil, fmt.Errorf("interval must not be negative, got %s", settings.Interval)
	}
	return &Generator{Ports: module.SourcePorts(), settings: settings}, nil
}

func (g *Generator) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	var tick <-chan time.Time
	if g.settings.Interval > 0 {
		ticker := time.NewTicker(g.settings.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var seq int64
	for g.settings.Count <= 0 || seq < int64(g.settings.Count) {
		if tick != nil {
			select {
			case <-tick:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		msg := message.New(map[string]message.Value{
			"data": message.String(fmt.Sprintf(g.settings.Template, seq)),
			"seq":  message.Int(seq),
		})
		if err := g.Emit(ctx, msg); err != nil {
			if errors.Is(err, channel.ErrClosed) {
				logger.Debug("All receivers are gone, stopping.", "sent", seq)
				return nil
			}
			return err
		}
		seq++
	}
	logger.Debug("Generator finished.", "sent", seq)
	return nil
}
