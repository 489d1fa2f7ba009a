package message

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CopiesFieldBag(t *testing.T) {
	fields := map[string]Value{"data": String("a")}
	msg := New(fields)

	fields["data"] = String("mutated")
	fields["extra"] = Int(1)

	got, ok := msg.Get("data")
	require.True(t, ok)
	s, _ := got.AsString()
	assert.Equal(t, "a", s)
	assert.Equal(t, 1, msg.Len())
}

func TestWith_DoesNotMutateOriginal(t *testing.T) {
	orig := New(map[string]Value{"data": String("a")})
	next := orig.With("data", String("b")).With("seq", Int(2))

	v, _ := orig.Get("data")
	assert.Equal(t, "a", v.String())
	assert.Equal(t, []string{"data"}, orig.Keys())

	v, _ = next.Get("data")
	assert.Equal(t, "b", v.String())
	assert.Equal(t, []string{"data", "seq"}, next.Keys())

	dropped := next.Without("seq")
	assert.Equal(t, []string{"data"}, dropped.Keys())
	assert.Equal(t, 2, next.Len())
}

func TestGet_ReturnsCopyOfNestedValues(t *testing.T) {
	msg := New(map[string]Value{
		"tags": Array(String("x")),
	})

	v, ok := msg.Get("tags")
	require.True(t, ok)
	arr, ok := v.AsArray()
	require.True(t, ok)
	arr[0] = String("changed")

	again, _ := msg.Get("tags")
	arr2, _ := again.AsArray()
	assert.Equal(t, "x", arr2[0].String())
}

func TestMissingKey(t *testing.T) {
	msg := New(nil)
	v, ok := msg.Get("nope")
	assert.False(t, ok)
	assert.True(t, v.IsNull())
	assert.Equal(t, 0, msg.Len())
}

func TestFromMap(t *testing.T) {
	msg, err := FromMap(map[string]any{
		"data":  "hello",
		"size":  42,
		"ratio": 0.5,
		"ok":    true,
		"none":  nil,
		"list":  []any{"a", 1},
		"obj":   map[string]any{"inner": "v"},
	})
	require.NoError(t, err)

	kinds := map[string]Kind{}
	for _, k := range msg.Keys() {
		v, _ := msg.Get(k)
		kinds[k] = v.Kind()
	}
	assert.Equal(t, map[string]Kind{
		"data":  KindString,
		"size":  KindInt,
		"ratio": KindFloat,
		"ok":    KindBool,
		"none":  KindNull,
		"list":  KindArray,
		"obj":   KindObject,
	}, kinds)

	_, err = FromMap(map[string]any{"bad": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "bad"`)
}

func TestJSON_PreservesIntAndFloat(t *testing.T) {
	msg := New(map[string]Value{
		"data":  String("a"),
		"n":     Int(3),
		"f":     Float(2),
		"flag":  Bool(false),
		"empty": Null(),
		"obj":   Object(map[string]Value{"b": Int(1), "a": Int(2)}),
	})

	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":"a","n":3,"f":2.0,"flag":false,"empty":null,"obj":{"a":2,"b":1}}`, string(raw))

	var decoded Message
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.True(t, msg.Equal(decoded), "round trip changed message: %s vs %s", msg, decoded)

	n, _ := decoded.Get("n")
	assert.Equal(t, KindInt, n.Kind())
	f, _ := decoded.Get("f")
	assert.Equal(t, KindFloat, f.Kind())
}

func TestUnmarshal_RejectsNonObject(t *testing.T) {
	var m Message
	err := json.Unmarshal([]byte(`[1,2]`), &m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected JSON object")
}

func TestString_SortedKeys(t *testing.T) {
	msg := New(map[string]Value{"b": Int(1), "a": String("x")})
	assert.Equal(t, "{a: x, b: 1}", msg.String())
}

func TestConcurrentReads(t *testing.T) {
	msg := New(map[string]Value{"data": String("shared")})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				v, _ := msg.Get("data")
				_ = v.String()
				_ = msg.With("seq", Int(int64(j)))
			}
		}()
	}
	wg.Wait()

	v, _ := msg.Get("data")
	assert.Equal(t, "shared", v.String())
	assert.Equal(t, 1, msg.Len())
}
