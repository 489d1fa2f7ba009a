package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/vk/gridrouter/internal/channel"
	"github.com/vk/gridrouter/internal/config"
	"github.com/vk/gridrouter/internal/message"
	"github.com/vk/gridrouter/internal/module"
	"github.com/vk/gridrouter/internal/registry"
	"github.com/vk/gridrouter/internal/testutil"
)

// unreachable is a broker address nothing listens on.
const unreachable = "127.0.0.1:1"

func TestNewProducer_Validation(t *testing.T) {
	_, err := NewProducer("p", config.MustSettings(map[string]any{"topic": "t"}))
	assert.ErrorContains(t, err, "brokers")

	_, err = NewProducer("p", config.MustSettings(map[string]any{"brokers": []any{unreachable}}))
	assert.ErrorContains(t, err, "topic is required")

	m, err := NewProducer("p", config.MustSettings(map[string]any{"brokers": []any{unreachable}, "topic": "t"}))
	require.NoError(t, err)
	assert.Equal(t, module.Kafka, module.TransportOf(m))
}

func TestProducer_RecordUsesKeyField(t *testing.T) {
	m, err := NewProducer("p", config.MustSettings(map[string]any{
		"brokers":   []any{unreachable},
		"topic":     "events",
		"key_field": "id",
	}))
	require.NoError(t, err)
	p := m.(*Producer)

	rec, err := p.record(testutil.Data("x").With("id", message.Int(42)))
	require.NoError(t, err)
	assert.Equal(t, "events", rec.Topic)
	assert.Equal(t, []byte("42"), rec.Key)
	assert.JSONEq(t, `{"data":"x","id":42}`, string(rec.Value))

	rec, err = p.record(testutil.Data("y"))
	require.NoError(t, err)
	assert.Nil(t, rec.Key)
}

func TestProducer_BrokerUnreachableEndsRun(t *testing.T) {
	m, err := NewProducer("p", config.MustSettings(map[string]any{
		"brokers": []any{unreachable}, "topic": "t", "delivery_timeout": "100ms",
	}))
	require.NoError(t, err)

	tx, rx := channel.New("r1", 1)
	require.NoError(t, m.SetInbox(rx))
	require.NoError(t, tx.Send(context.Background(), testutil.Data("x")))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("producer did not give up")
	}
}

func TestNewConsumer_Validation(t *testing.T) {
	_, err := NewConsumer("c", config.MustSettings(map[string]any{"brokers": []any{unreachable}}))
	assert.ErrorContains(t, err, "topics")

	_, err = NewConsumer("c", config.MustSettings(map[string]any{
		"brokers": []any{unreachable}, "topics": []any{"t"}, "start_at": "middle",
	}))
	assert.ErrorContains(t, err, "start_at")

	m, err := NewConsumer("c", config.MustSettings(map[string]any{
		"brokers": []any{unreachable}, "topics": []any{"t"}, "group": "g", "start_at": "earliest",
	}))
	require.NoError(t, err)
	assert.Len(t, m.(*Consumer).clientOpts(), 4)
}

func TestConsumer_CancelWhileBrokerUnreachable(t *testing.T) {
	m, err := NewConsumer("c", config.MustSettings(map[string]any{"brokers": []any{unreachable}, "topics": []any{"t"}}))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Run(ctx), context.DeadlineExceeded)
}

func TestMessageFromRecord(t *testing.T) {
	msg := messageFromRecord(&kgo.Record{Topic: "t", Value: []byte(`{"data":"x","seq":1}`)})
	assert.Equal(t, []string{"data", "seq"}, msg.Keys())

	msg = messageFromRecord(&kgo.Record{Topic: "t", Partition: 2, Offset: 9, Key: []byte("k"), Value: []byte("raw")})
	assert.Equal(t, []string{"data", "key", "offset", "partition", "topic"}, msg.Keys())
	off, _ := msg.Get("offset")
	n, _ := off.AsInt()
	assert.Equal(t, int64(9), n)
}

func TestRegister(t *testing.T) {
	r := registry.New()
	(&Module{}).Register(r)
	assert.Equal(t, []string{ConsumerType, ProducerType}, r.Types())
}
