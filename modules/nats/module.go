// Package nats provides a publisher sink and a subscriber source on a NATS
// subject.
package nats

import (
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/vk/gridrouter/internal/registry"
)

const (
	PublisherType  = "nats_publisher"
	SubscriberType = "nats_subscriber"
)

type Module struct{}

func (m *Module) Register(r *registry.Registry) {
	r.Register(PublisherType, NewPublisher)
	r.Register(SubscriberType, NewSubscriber)
}

// ConnSettings are shared by both module types.
type ConnSettings struct {
	URL           string        `cty:"url"`
	Subject       string        `cty:"subject"`
	ClientName    string        `cty:"client_name"`
	Timeout       time.Duration `cty:"timeout"`
	MaxReconnects int           `cty:"max_reconnects"`
	ReconnectWait time.Duration `cty:"reconnect_wait"`
}

func defaultConnSettings() ConnSettings {
	return ConnSettings{
		URL:           nats.DefaultURL,
		Timeout:       2 * time.Second,
		MaxReconnects: 5,
		ReconnectWait: 2 * time.Second,
	}
}

func (c ConnSettings) validate() error {
	if c.Subject == "" {
		return errors.New("subject is required")
	}
	return nil
}

func (c ConnSettings) options() []nats.Option {
	opts := []nats.Option{
		nats.Timeout(c.Timeout),
		nats.MaxReconnects(c.MaxReconnects),
		nats.ReconnectWait(c.ReconnectWait),
	}
	if c.ClientName != "" {
		opts = append(opts, nats.Name(c.ClientName))
	}
	return opts
}
