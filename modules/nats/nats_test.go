package nats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/gridrouter/internal/config"
	"github.com/vk/gridrouter/internal/module"
	"github.com/vk/gridrouter/internal/registry"
)

const unreachable = "nats://127.0.0.1:1"

func TestNewPublisher_Settings(t *testing.T) {
	_, err := NewPublisher("pub", config.Settings{})
	assert.ErrorContains(t, err, "subject is required")

	m, err := NewPublisher("pub", config.MustSettings(map[string]any{"subject": "events", "timeout": "250ms"}))
	require.NoError(t, err)
	p := m.(*Publisher)
	assert.Equal(t, "nats://127.0.0.1:4222", p.settings.URL)
	assert.Equal(t, 250*time.Millisecond, p.settings.Timeout)
	assert.Equal(t, module.NATS, module.TransportOf(m))
}

func TestNewSubscriber_Settings(t *testing.T) {
	_, err := NewSubscriber("sub", config.MustSettings(map[string]any{"subject": "s", "buffer": 0}))
	assert.ErrorContains(t, err, "buffer")

	m, err := NewSubscriber("sub", config.MustSettings(map[string]any{
		"subject": "s", "queue": "workers", "url": unreachable, "client_name": "gr",
	}))
	require.NoError(t, err)
	s := m.(*Subscriber)
	assert.Equal(t, "workers", s.settings.Queue)
	assert.Equal(t, unreachable, s.settings.URL)
	assert.Len(t, s.settings.options(), 4)
}

func TestRun_ConnectFailureIsTransportError(t *testing.T) {
	settings := config.MustSettings(map[string]any{"subject": "s", "url": unreachable, "timeout": "200ms"})
	for _, factory := range []module.Factory{NewPublisher, NewSubscriber} {
		m, err := factory("x", settings)
		require.NoError(t, err)

		var te *module.TransportError
		require.ErrorAs(t, m.Run(context.Background()), &te)
		assert.Equal(t, "nats connect", te.Op)
	}
}

func TestRegister(t *testing.T) {
	r := registry.New()
	(&Module{}).Register(r)
	assert.Equal(t, []string{PublisherType, SubscriberType}, r.Types())
}
