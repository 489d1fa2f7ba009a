package stdin

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/gridrouter/internal/channel"
	"github.com/vk/gridrouter/internal/config"
	"github.com/vk/gridrouter/internal/module"
)

func TestReader_OneMessagePerLine(t *testing.T) {
	r := NewReader(strings.NewReader("first\n  second  \nthird"), 1024)
	tx, rx := channel.New("r1", 8)
	require.NoError(t, r.SetOutbox(tx))

	require.NoError(t, r.Run(context.Background()))
	tx.Close()

	var got []string
	for {
		msg, err := rx.Recv(context.Background())
		if err != nil {
			break
		}
		v, _ := msg.Get("data")
		got = append(got, v.String())
		ts, ok := msg.Get("timestamp")
		require.True(t, ok)
		assert.NotEmpty(t, ts.String())
	}
	assert.Equal(t, []string{"first", "second", "third"}, got)
}

func TestReader_LineTooLongIsTransportFailure(t *testing.T) {
	r := NewReader(strings.NewReader(strings.Repeat("x", 64)+"\n"), 16)

	err := r.Run(context.Background())
	var te *module.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "stdin read", te.Op)
}

func TestReader_CancelWhileBlocked(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	r := NewReader(pr, 1024)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Run(ctx), context.Canceled)
}

func TestNew_Settings(t *testing.T) {
	m, err := New("in", config.MustSettings(map[string]any{"max_line_size": 10}))
	require.NoError(t, err)
	assert.Equal(t, module.Stdin, module.TransportOf(m))

	_, err = New("in", config.MustSettings(map[string]any{"max_line_size": "big"}))
	assert.Error(t, err)
}
