package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromPayload(t *testing.T) {
	m := FromPayload([]byte(`{"data":"x","seq":3}`))
	seq, _ := m.Get("seq")
	n, ok := seq.AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(3), n)

	for _, raw := range []string{"plain text", `[1,2]`, `"quoted"`, ``} {
		m := FromPayload([]byte(raw))
		data, ok := m.Get("data")
		require.True(t, ok, raw)
		assert.Equal(t, raw, data.String())
		assert.Equal(t, 1, m.Len())
	}
}

func TestPayload_RoundTrip(t *testing.T) {
	in := New(map[string]Value{"data": String("hi"), "n": Float(1.5)})
	b, err := Payload(in)
	require.NoError(t, err)
	assert.True(t, FromPayload(b).Equal(in))
}

func TestMessage_Map(t *testing.T) {
	m := New(map[string]Value{
		"data": String("x"),
		"tags": Array(String("a"), Int(1)),
		"meta": Object(map[string]Value{"ok": Bool(true)}),
		"none": Null(),
	})
	assert.Equal(t, map[string]any{
		"data": "x",
		"tags": []any{"a", int64(1)},
		"meta": map[string]any{"ok": true},
		"none": nil,
	}, m.Map())
}
