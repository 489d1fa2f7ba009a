package module

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/vk/gridrouter/internal/channel"
	"github.com/vk/gridrouter/internal/message"
)

// Ports is the endpoint bookkeeping that concrete modules embed. It
// implements SetInbox and SetOutbox for the module's Kind, and gives Run the
// Emit and Incoming helpers so a module participating in several routes does
// not need to care how many endpoints it holds.
type Ports struct {
	kind Kind

	mu       sync.Mutex
	inboxes  []*channel.Receiver
	outboxes []*channel.Sender

	sealed atomic.Bool
	name   string
	meter  Meter
}

// NewPorts returns empty ports for a module of the given kind.
func NewPorts(kind Kind) *Ports { return &Ports{kind: kind} }

// SourcePorts returns ports that accept only outboxes.
func SourcePorts() *Ports { return NewPorts(Source) }

// SinkPorts returns ports that accept only inboxes.
func SinkPorts() *Ports { return NewPorts(Sink) }

// ProcessorPorts returns ports that accept both sides.
func ProcessorPorts() *Ports { return NewPorts(Processor) }

// Kind returns the capability set the ports were created with.
func (p *Ports) Kind() Kind { return p.kind }

// SetInbox implements Module. Clearing with nil is accepted for every kind.
func (p *Ports) SetInbox(r *channel.Receiver) error {
	if p.sealed.Load() {
		return ErrAlreadyRunning
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if r == nil {
		p.inboxes = nil
		return nil
	}
	if p.kind == Source {
		return &UnsupportedOperationError{Kind: p.kind, Side: Inbox}
	}
	p.inboxes = append(p.inboxes, r)
	return nil
}

// SetOutbox implements Module.
func (p *Ports) SetOutbox(s *channel.Sender) error {
	if p.sealed.Load() {
		return ErrAlreadyRunning
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if s == nil {
		p.outboxes = nil
		return nil
	}
	if p.kind == Sink {
		return &UnsupportedOperationError{Kind: p.kind, Side: Outbox}
	}
	p.outboxes = append(p.outboxes, s)
	return nil
}

// Seal implements Sealer. Every later SetInbox or SetOutbox fails with
// ErrAlreadyRunning.
func (p *Ports) Seal() { p.sealed.Store(true) }

// Instrument implements Instrumentable.
func (p *Ports) Instrument(name string, m Meter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.name = name
	p.meter = m
}

// HasInbox reports whether at least one inbox is assigned.
func (p *Ports) HasInbox() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inboxes) > 0
}

// HasOutbox reports whether at least one outbox is assigned.
func (p *Ports) HasOutbox() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.outboxes) > 0
}

func (p *Ports) snapshot() ([]*channel.Receiver, []*channel.Sender, string, Meter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	in := append([]*channel.Receiver(nil), p.inboxes...)
	out := append([]*channel.Sender(nil), p.outboxes...)
	return in, out, p.name, p.meter
}

// Emit sends msg on every outbox. An outbox whose receivers are all gone is
// dropped; once every outbox is gone Emit returns channel.ErrClosed so the
// caller can stop producing. With no outbox at all the message is discarded.
func (p *Ports) Emit(ctx context.Context, msg message.Message) error {
	_, outs, name, meter := p.snapshot()
	if len(outs) == 0 {
		return nil
	}
	live := 0
	for _, out := range outs {
		err := out.Send(ctx, msg)
		switch {
		case err == nil:
			live++
			if meter != nil {
				meter.MessageSent(name, out.Name())
			}
		case errors.Is(err, channel.ErrClosed):
			p.dropOutbox(out)
		default:
			return err
		}
	}
	if live == 0 {
		return channel.ErrClosed
	}
	return nil
}

func (p *Ports) dropOutbox(s *channel.Sender) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, o := range p.outboxes {
		if o == s {
			p.outboxes = append(p.outboxes[:i], p.outboxes[i+1:]...)
			return
		}
	}
}

// Incoming merges every inbox into one stream. The returned channel is
// closed once every inbox has reached end-of-stream or ctx is done. It must
// be called at most once per Run.
func (p *Ports) Incoming(ctx context.Context) <-chan message.Message {
	ins, _, name, meter := p.snapshot()
	out := make(chan message.Message)

	var wg sync.WaitGroup
	for _, in := range ins {
		wg.Add(1)
		go func(in *channel.Receiver) {
			defer wg.Done()
			for {
				msg, err := in.Recv(ctx)
				if err != nil {
					return
				}
				if meter != nil {
					meter.MessageReceived(name, in.Name())
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}(in)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
