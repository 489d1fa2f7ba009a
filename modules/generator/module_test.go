package generator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/gridrouter/internal/channel"
	"github.com/vk/gridrouter/internal/config"
)

func drain(t *testing.T, rx *channel.Receiver) []string {
	t.Helper()
	var out []string
	for {
		msg, err := rx.Recv(context.Background())
		if err != nil {
			return out
		}
		v, _ := msg.Get("data")
		out = append(out, v.String())
	}
}

func TestGenerator_EmitsCount(t *testing.T) {
	m, err := New("gen", config.MustSettings(map[string]any{"count": 3}))
	require.NoError(t, err)

	tx, rx := channel.New("r1", 8)
	require.NoError(t, m.SetOutbox(tx))
	require.NoError(t, m.Run(context.Background()))
	tx.Close()

	assert.Equal(t, []string{"message 0", "message 1", "message 2"}, drain(t, rx))
}

func TestGenerator_TemplateAndInterval(t *testing.T) {
	m, err := New("gen", config.MustSettings(map[string]any{"count": 2, "interval": "1ms", "template": "tick-%d"}))
	require.NoError(t, err)

	tx, rx := channel.New("r1", 8)
	require.NoError(t, m.SetOutbox(tx))
	require.NoError(t, m.Run(context.Background()))
	tx.Close()

	assert.Equal(t, []string{"tick-0", "tick-1"}, drain(t, rx))
}

func TestGenerator_EndlessStopsWhenReceiversLeave(t *testing.T) {
	m, err := New("gen", config.MustSettings(map[string]any{"count": 0}))
	require.NoError(t, err)

	tx, rx := channel.New("r1", 1)
	require.NoError(t, m.SetOutbox(tx))

	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()

	_, err = rx.Recv(context.Background())
	require.NoError(t, err)
	rx.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("generator did not stop")
	}
}

func TestGenerator_EndlessStopsOnCancel(t *testing.T) {
	m, err := New("gen", config.MustSettings(map[string]any{"count": -1, "interval": "1ms"}))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Run(ctx), context.DeadlineExceeded)
}

func TestGenerator_NegativeInterval(t *testing.T) {
	_, err := New("gen", config.MustSettings(map[string]any{"interval": "-1s"}))
	assert.Error(t, err)
}
