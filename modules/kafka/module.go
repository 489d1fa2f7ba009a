// Package kafka provides a producer sink and a consumer source backed by
// franz-go.
package kafka

import (
	"errors"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/vk/gridrouter/internal/registry"
)

const (
	ProducerType = "kafka_producer"
	ConsumerType = "kafka_consumer"
)

type Module struct{}

func (m *Module) Register(r *registry.Registry) {
	r.Register(ProducerType, NewProducer)
	r.Register(ConsumerType, NewConsumer)
}

// ClientSettings are shared by both module types.
type ClientSettings struct {
	Brokers  []string `cty:"brokers"`
	ClientID string   `cty:"client_id"`
}

func (c ClientSettings) validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("brokers must list at least one seed broker")
	}
	return nil
}

func (c ClientSettings) opts() []kgo.Opt {
	opts := []kgo.Opt{kgo.SeedBrokers(c.Brokers...)}
	if c.ClientID != "" {
		opts = append(opts, kgo.ClientID(c.ClientID))
	}
	return opts
}
