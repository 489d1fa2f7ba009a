package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/vk/gridrouter/internal/channel"
	"github.com/vk/gridrouter/internal/config"
	"github.com/vk/gridrouter/internal/ctxlog"
	"github.com/vk/gridrouter/internal/message"
	"github.com/vk/gridrouter/internal/module"
)

type ConsumerSettings struct {
	ClientSettings
	Topics []string `cty:"topics"`
	Group  string   `cty:"group"`
	// StartAt is "earliest" or "latest" and applies when no offset is committed.
	StartAt string `cty:"start_at"`
}

// Consumer emits one message per fetched record. JSON object payloads become
// the message; anything else lands in data, alongside the record's
// coordinates.
type Consumer struct {
	*module.Ports
	settings ConsumerSettings
}

func NewConsumer(name string, s config.Settings) (module.Module, error) {
	settings := ConsumerSettings{StartAt: "latest"}
	if err := s.Decode(&settings); err != nil {
		return nil, err
	}
	if err := settings.validate(); err != nil {
		return nil, err
	}
	if len(settings.Topics) == 0 {
		return nil, errors.New("topics must list at least one topic")
	}
	if settings.StartAt != "earliest" && settings.StartAt != "latest" {
		return nil, fmt.Errorf("start_at must be 'earliest' or 'latest', got %q", settings.StartAt)
	}
	return &Consumer{Ports: module.SourcePorts(), settings: settings}, nil
}

func (c *Consumer) Transport() module.Transport { return module.Kafka }

func (c *Consumer) clientOpts() []kgo.Opt {
	opts := append(c.settings.opts(), kgo.ConsumeTopics(c.settings.Topics...))
	if c.settings.Group != "" {
		opts = append(opts, kgo.ConsumerGroup(c.settings.Group))
	}
	if c.settings.StartAt == "earliest" {
		opts = append(opts, kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()))
	} else {
		opts = append(opts, kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()))
	}
	return opts
}

func (c *Consumer) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	client, err := kgo.NewClient(c.clientOpts()...)
	if err != nil {
		return module.WrapTransport("kafka connect", err)
	}
	defer client.Close()
	logger.Info("Kafka consumer started.", "topics", c.settings.Topics, "group", c.settings.Group)

	for {
		fetches := client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return ctx.Err()
		}
		var fetchErr error
		fetches.EachError(func(topic string, partition int32, err error) {
			if !errors.Is(err, context.Canceled) && fetchErr == nil {
				fetchErr = fmt.Errorf("topic %s partition %d: %w", topic, partition, err)
			}
		})
		if fetchErr != nil {
			return module.WrapTransport("kafka fetch", fetchErr)
		}

		var emitErr error
		fetches.EachRecord(func(rec *kgo.Record) {
			if emitErr != nil {
				return
			}
			emitErr = c.Emit(ctx, messageFromRecord(rec))
		})
		if emitErr != nil {
			if errors.Is(emitErr, channel.ErrClosed) {
				logger.Debug("All receivers are gone, stopping consumer.")
				return nil
			}
			return emitErr
		}
	}
}

func messageFromRecord(rec *kgo.Record) message.Message {
	var msg message.Message
	if err := msg.UnmarshalJSON(rec.Value); err == nil {
		return msg
	}
	msg = message.New(map[string]message.Value{
		"data":      message.String(string(rec.Value)),
		"topic":     message.String(rec.Topic),
		"partition": message.Int(int64(rec.Partition)),
		"offset":    message.Int(rec.Offset),
	})
	if rec.Key != nil {
		msg = msg.With("key", message.String(string(rec.Key)))
	}
	return msg
}
