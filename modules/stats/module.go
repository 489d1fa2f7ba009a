// Package stats provides a processor that forwards traffic and periodically
// emits a summary of how many messages passed through it.
package stats

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

const TypeName = "stats"

type Module struct{}

func (m *Module) Register(r *registry.Registry) {
	r.Register(TypeName, New)
}

// Settings configures a stats processor.
type Settings struct {
	Interval time.Duration `cty:"interval"`
	// Forward passes every inbound message on before it is counted.
	Forward bool `cty:"forward"`
}

// Stats counts inbound messages per window.
type Stats struct {
	*module.Ports
	settings Settings
	now      func() time.Time
}

func New(name string, s config.Settings) (module.Module, error) {
	settings := Settings{Interval: time.Second, Forward: true}
	if err := s.Decode(&settings); err != nil {
		return nil, err
	}
	if settings.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", settings.Interval)
	}
	return &Stats{Ports: module.ProcessorPorts(), settings: settings, now: time.Now}, nil
}

// Run waits on either a message or a tick. A final summary is emitted once
// the inbound stream ends.
func (s *Stats) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	ticker := time.NewTicker(s.settings.Interval)
	defer ticker.Stop()

	in := s.Incoming(ctx)
	var window, total int64
	windowStart := s.now()

	flush := func() error {
		now := s.now()
		summary := message.New(map[string]message.Value{
			"count":  message.Int(window),
			"total":  message.Int(total),
			"window": message.String(now.Sub(windowStart).Round(time.Millisecond).String()),
		})
		logger.Debug("Window closed.", "count", window, "total", total)
		window, windowStart = 0, now
		return s.Emit(ctx, summary)
	}

	for {
		select {
		case msg, ok := <-in:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ignoreClosed(flush())
			}
			window++
			total++
			if s.settings.Forward {
				if err := s.Emit(ctx, msg); err != nil {
					return ignoreClosed(err)
				}
			}
		case <-ticker.C:
			if err := flush(); err != nil {
				return ignoreClosed(err)
			}
		}
	}
}

func ignoreClosed(err error) error {
	if errors.Is(err, channel.ErrClosed) {
		return nil
	}
	return err
}
