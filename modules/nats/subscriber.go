package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"
	"github.com/vk/gridrouter/internal/channel"
	"github.com/vk/gridrouter/internal/config"
	"github.com/vk/gridrouter/internal/ctxlog"
	"github.com/vk/gridrouter/internal/message"
	"github.com/vk/gridrouter/internal/module"
)

type SubscriberSettings struct {
	ConnSettings
	// Queue joins a queue group so instances share the subject's traffic.
	Queue  string `cty:"queue"`
	Buffer int    `cty:"buffer"`
}

// Subscriber emits one message per NATS message received on the subject.
type Subscriber struct {
	*module.Ports
	settings SubscriberSettings
}

func NewSubscriber(name string, s config.Settings) (module.Module, error) {
	settings := SubscriberSettings{ConnSettings: defaultConnSettings(), Buffer: 256}
	if err := s.Decode(&settings); err != nil {
		return nil, err
	}
	if err := settings.validate(); err != nil {
		return nil, err
	}
	if settings.Buffer <= 0 {
		return nil, errors.New("buffer must be positive")
	}
	return &Subscriber{Ports: module.SourcePorts(), settings: settings}, nil
}

func (s *Subscriber) Transport() module.Transport { return module.NATS }

func (s *Subscriber) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	closed := make(chan struct{})
	opts := append(s.settings.options(), nats.ClosedHandler(func(*nats.Conn) { close(closed) }))
	nc, err := nats.Connect(s.settings.URL, opts...)
	if err != nil {
		return module.WrapTransport("nats connect", err)
	}
	defer nc.Close()

	in := make(chan *nats.Msg, s.settings.Buffer)
	sub, err := nc.ChanQueueSubscribe(s.settings.Subject, s.settings.Queue, in)
	if err != nil {
		return module.WrapTransport("nats subscribe", err)
	}
	defer sub.Unsubscribe()
	logger.Info("NATS subscriber listening.", "subject", s.settings.Subject, "queue", s.settings.Queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-closed:
			return module.WrapTransport("nats connection", nats.ErrConnectionClosed)
		case m := <-in:
			msg := message.FromPayload(m.Data).With("subject", message.String(m.Subject))
			if err := s.Emit(ctx, msg); err != nil {
				if errors.Is(err, channel.ErrClosed) {
					logger.Debug("All receivers are gone, unsubscribing.")
					return nil
				}
				return err
			}
		}
	}
}
