package nats

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/vk/gridrouter/internal/config"
	"github.com/vk/gridrouter/internal/ctxlog"
	"github.com/vk/gridrouter/internal/message"
	"github.com/vk/gridrouter/internal/module"
)

// Publisher publishes every inbound message as JSON on the subject.
type Publisher struct {
	*module.Ports
	settings ConnSettings
}

func NewPublisher(name string, s config.Settings) (module.Module, error) {
	settings := defaultConnSettings()
	if err := s.Decode(&settings); err != nil {
		return nil, err
	}
	if err := settings.validate(); err != nil {
		return nil, err
	}
	return &Publisher{Ports: module.SinkPorts(), settings: settings}, nil
}

func (p *Publisher) Transport() module.Transport { return module.NATS }

func (p *Publisher) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	nc, err := nats.Connect(p.settings.URL, p.settings.options()...)
	if err != nil {
		return module.WrapTransport("nats connect", err)
	}
	defer nc.Close()
	logger.Info("NATS publisher connected.", "url", nc.ConnectedUrlRedacted(), "subject", p.settings.Subject)

	published := 0
	for msg := range p.Incoming(ctx) {
		data, err := message.Payload(msg)
		if err != nil {
			return module.WrapTransport("nats encode", err)
		}
		if err := nc.Publish(p.settings.Subject, data); err != nil {
			return module.WrapTransport("nats publish", err)
		}
		published++
	}
	// Flush so nothing buffered is lost when the stream ends.
	if ctx.Err() == nil {
		if err := nc.FlushWithContext(ctx); err != nil {
			return module.WrapTransport("nats flush", err)
		}
	}
	logger.Debug("NATS publisher finished.", "published", published)
	return ctx.Err()
}
