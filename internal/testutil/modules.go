package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/vk/gridrouter/internal/config"
	"github.com/vk/gridrouter/internal/message"
	"github.com/vk/gridrouter/internal/module"
	"github.com/vk/gridrouter/internal/registry"
)

// SimpleModule registers a single factory under Type.
type SimpleModule struct {
	Type    string
	Factory module.Factory
}

// Register implements the registry.Module interface.
func (m *SimpleModule) Register(r *registry.Registry) {
	r.Register(m.Type, m.Factory)
}

// Recorder tracks the modules a factory created, by instance name.
type Recorder[T any] struct {
	mu        sync.Mutex
	instances map[string]T
}

func (r *Recorder[T]) add(name string, v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.instances == nil {
		r.instances = make(map[string]T)
	}
	r.instances[name] = v
}

// Get returns the instance created under name.
func (r *Recorder[T]) Get(name string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.instances[name]
	return v, ok
}

// Capture is a sink that stores every message it receives.
type Capture struct {
	*module.Ports
	ran atomic.Bool

	mu       sync.Mutex
	messages []message.Message
}

// CaptureModule registers "capture" and records every instance in rec.
func CaptureModule(rec *Recorder[*Capture]) *SimpleModule {
	return &SimpleModule{Type: "capture", Factory: func(name string, _ config.Settings) (module.Module, error) {
		c := &Capture{Ports: module.SinkPorts()}
		rec.add(name, c)
		return c, nil
	}}
}

// Run drains the inboxes until end-of-stream or cancellation.
func (c *Capture) Run(ctx context.Context) error {
	c.ran.Store(true)
	for msg := range c.Incoming(ctx) {
		c.mu.Lock()
		c.messages = append(c.messages, msg)
		c.mu.Unlock()
	}
	return nil
}

// Ran reports whether Run was ever called.
func (c *Capture) Ran() bool { return c.ran.Load() }

// Messages returns a copy of everything received so far.
func (c *Capture) Messages() []message.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]message.Message(nil), c.messages...)
}

// Data returns the "data" field of every received message as a string.
func (c *Capture) Data() []string {
	var out []string
	for _, m := range c.Messages() {
		v, _ := m.Get("data")
		out = append(out, v.String())
	}
	return out
}

// Source emits a fixed list of messages and then completes.
type Source struct {
	*module.Ports
	ran  atomic.Bool
	msgs []message.Message
}

// SourceModule registers "list_source". Each instance emits the "data"
// setting, a list of strings, as {data: s} messages in order.
func SourceModule(rec *Recorder[*Source]) *SimpleModule {
	return &SimpleModule{Type: "list_source", Factory: func(name string, s config.Settings) (module.Module, error) {
		items, err := s.StringList("data", nil)
		if err != nil {
			return nil, err
		}
		src := &Source{Ports: module.SourcePorts()}
		for _, it := range items {
			src.msgs = append(src.msgs, Data(it))
		}
		if rec != nil {
			rec.add(name, src)
		}
		return src, nil
	}}
}

// NewSource returns a source emitting msgs.
func NewSource(msgs ...message.Message) *Source {
	return &Source{Ports: module.SourcePorts(), msgs: msgs}
}

// Run emits every message, stopping early if downstream went away.
func (s *Source) Run(ctx context.Context) error {
	s.ran.Store(true)
	for _, m := range s.msgs {
		if err := s.Emit(ctx, m); err != nil {
			return nil
		}
	}
	return nil
}

// Ran reports whether Run was ever called.
func (s *Source) Ran() bool { return s.ran.Load() }

// Func is a module whose Run is supplied by the test.
type Func struct {
	*module.Ports
	RunFn func(ctx context.Context, p *module.Ports) error
}

// FuncModule registers typeName with a factory building Func modules of the
// given kind.
func FuncModule(typeName string, kind module.Kind, run func(ctx context.Context, p *module.Ports) error) *SimpleModule {
	return &SimpleModule{Type: typeName, Factory: func(string, config.Settings) (module.Module, error) {
		return &Func{Ports: module.NewPorts(kind), RunFn: run}, nil
	}}
}

// Run implements module.Module.
func (f *Func) Run(ctx context.Context) error { return f.RunFn(ctx, f.Ports) }

// Data builds the {data: s} message used throughout the tests.
func Data(s string) message.Message {
	return message.New(map[string]message.Value{"data": message.String(s)})
}
