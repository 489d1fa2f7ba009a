package socketio

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/gridrouter/internal/config"
	"github.com/vk/gridrouter/internal/module"
)

func TestNew_Settings(t *testing.T) {
	_, err := New("io", config.Settings{})
	assert.ErrorContains(t, err, "url is required")

	_, err = New("io", config.MustSettings(map[string]any{"url": "localhost:3000"}))
	assert.Error(t, err)

	m, err := New("io", config.MustSettings(map[string]any{"url": "http://localhost:3000/ws/socket.io/"}))
	require.NoError(t, err)
	c := m.(*Client)
	assert.Equal(t, "http://localhost:3000", c.baseURL)
	assert.Equal(t, "/ws/socket.io/", c.path)
	assert.Equal(t, "message", c.settings.EmitEvent)
	assert.Equal(t, module.SocketIO, module.TransportOf(m))
}

func TestRun_ConnectFailureIsTransportError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	m, err := New("io", config.MustSettings(map[string]any{"url": "http://" + addr, "connect_timeout": "500ms"}))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()
	select {
	case err := <-done:
		var te *module.TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "socketio connect", te.Op)
	case <-time.After(5 * time.Second):
		t.Fatal("connect did not fail")
	}
}

func TestEventMessage(t *testing.T) {
	msg := eventMessage("update", []any{map[string]any{"data": "x", "n": 1.5}})
	assert.Equal(t, []string{"data", "event", "n"}, msg.Keys())

	msg = eventMessage("tick", []any{"plain"})
	data, _ := msg.Get("data")
	assert.Equal(t, "plain", data.String())

	msg = eventMessage("empty", nil)
	data, _ = msg.Get("data")
	assert.True(t, data.IsNull())
}

func TestEventError(t *testing.T) {
	boom := errors.New("boom")
	assert.Equal(t, boom, eventError("connect_error", []any{boom}))
	assert.EqualError(t, eventError("disconnect", []any{"io server disconnect"}), "disconnect: io server disconnect")
	assert.EqualError(t, eventError("disconnect", nil), "disconnect")
}
