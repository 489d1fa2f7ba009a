package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/vk/gridrouter/internal/config"
	"github.com/vk/gridrouter/internal/ctxlog"
	"github.com/vk/gridrouter/internal/message"
	"github.com/vk/gridrouter/internal/module"
)

type ProducerSettings struct {
	ClientSettings
	Topic string `cty:"topic"`
	// KeyField names the message field used as the record key.
	KeyField string `cty:"key_field"`
	// DeliveryTimeout bounds how long a record may wait to be acknowledged.
	DeliveryTimeout time.Duration `cty:"delivery_timeout"`
}

// Producer writes every inbound message to a topic as a JSON record.
type Producer struct {
	*module.Ports
	settings ProducerSettings
}

func NewProducer(name string, s config.Settings) (module.Module, error) {
	settings := ProducerSettings{DeliveryTimeout: 30 * time.Second}
	if err := s.Decode(&settings); err != nil {
		return nil, err
	}
	if err := settings.validate(); err != nil {
		return nil, err
	}
	if settings.Topic == "" {
		return nil, errors.New("topic is required")
	}
	return &Producer{Ports: module.SinkPorts(), settings: settings}, nil
}

func (p *Producer) Transport() module.Transport { return module.Kafka }

func (p *Producer) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	opts := append(p.settings.opts(),
		kgo.DefaultProduceTopic(p.settings.Topic),
		kgo.RecordDeliveryTimeout(p.settings.DeliveryTimeout),
	)
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return module.WrapTransport("kafka connect", err)
	}
	defer client.Close()

	produced := 0
	for msg := range p.Incoming(ctx) {
		rec, err := p.record(msg)
		if err != nil {
			return module.WrapTransport("kafka encode", err)
		}
		if err := client.ProduceSync(ctx, rec).FirstErr(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return module.WrapTransport("kafka produce", err)
		}
		produced++
	}
	logger.Debug("Kafka producer finished.", "topic", p.settings.Topic, "produced", produced)
	return ctx.Err()
}

func (p *Producer) record(msg message.Message) (*kgo.Record, error) {
	value, err := message.Payload(msg)
	if err != nil {
		return nil, err
	}
	rec := &kgo.Record{Topic: p.settings.Topic, Value: value}
	if p.settings.KeyField != "" {
		if k, ok := msg.Get(p.settings.KeyField); ok {
			rec.Key = []byte(k.String())
		}
	}
	return rec, nil
}
