// Package channel provides the endpoint pair that connects modules along a
// route.
//
// One pair is created per route. The sending half and the receiving half can
// both be cloned any number of times, and clones are handed to the modules on
// either side of the route:
//
//   - every Sender clone feeds the same pair (fan-in);
//   - every Receiver clone is an independent subscriber that sees every
//     message (fan-out is a broadcast, not a work queue);
//   - messages from one sender arrive at each receiver in send order.
//
// Closing is reference counted. When the last Sender clone is closed, each
// receiver drains what is already buffered and then observes ErrClosed. When
// the last Receiver clone is closed, Send reports ErrClosed, so upstream
// modules can stop instead of blocking forever.
package channel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/vk/gridrouter/internal/message"
)

// DefaultCapacity is the per-receiver buffer used when a route does not set one.
const DefaultCapacity = 1024

// ErrClosed reports that the peer side of a pair has been fully released.
var ErrClosed = errors.New("channel closed")

// subscriber is the buffer behind one Receiver clone.
type subscriber struct {
	ch       chan message.Message
	gone     chan struct{}
	goneOnce sync.Once
}

// pair is the shared state of one route's channel.
type pair struct {
	name     string
	capacity int

	mu      sync.RWMutex
	subs    []*subscriber
	senders int

	eos     chan struct{}
	eosOnce sync.Once
}

// Sender is one clone of a pair's sending half.
type Sender struct {
	p      *pair
	closed atomic.Bool
}

// Receiver is one clone of a pair's receiving half. A Receiver must be used
// by a single goroutine at a time.
type Receiver struct {
	p      *pair
	sub    *subscriber
	closed atomic.Bool
}

// New allocates a fresh endpoint pair. A capacity below one selects
// DefaultCapacity.
func New(name string, capacity int) (*Sender, *Receiver) {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	p := &pair{
		name:     name,
		capacity: capacity,
		eos:      make(chan struct{}),
	}
	p.senders = 1
	return &Sender{p: p}, p.subscribe()
}

func (p *pair) subscribe() *Receiver {
	sub := &subscriber{
		ch:   make(chan message.Message, p.capacity),
		gone: make(chan struct{}),
	}
	p.mu.Lock()
	p.subs = append(p.subs, sub)
	p.mu.Unlock()
	return &Receiver{p: p, sub: sub}
}

func (p *pair) unsubscribe(sub *subscriber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, s := range p.subs {
		if s == sub {
			p.subs = append(p.subs[:i], p.subs[i+1:]...)
			break
		}
	}
}

func (p *pair) snapshot() []*subscriber {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*subscriber, len(p.subs))
	copy(out, p.subs)
	return out
}

// Name returns the route name the pair was created for.
func (s *Sender) Name() string { return s.p.name }

// Clone returns a new sending handle on the same pair. Cloning a closed
// Sender panics: it means the caller kept using a released endpoint.
func (s *Sender) Clone() *Sender {
	if s.closed.Load() {
		panic("channel: clone of closed sender for route " + s.p.name)
	}
	s.p.mu.Lock()
	s.p.senders++
	s.p.mu.Unlock()
	return &Sender{p: s.p}
}

// Send delivers msg to every current receiver. It blocks while any
// receiver's buffer is full. It returns ErrClosed if this handle was closed
// or no receiver is left, and ctx.Err() if ctx ends first.
func (s *Sender) Send(ctx context.Context, msg message.Message) error {
	if s.closed.Load() {
		return ErrClosed
	}
	subs := s.p.snapshot()
	if len(subs) == 0 {
		return ErrClosed
	}
	for _, sub := range subs {
		select {
		case sub.ch <- msg:
		case <-sub.gone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close releases this handle. It is idempotent. Closing the last open
// Sender marks end-of-stream for every receiver.
func (s *Sender) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.p.mu.Lock()
	s.p.senders--
	last := s.p.senders == 0
	s.p.mu.Unlock()
	if last {
		s.p.eosOnce.Do(func() { close(s.p.eos) })
	}
}

// Name returns the route name the pair was created for.
func (r *Receiver) Name() string { return r.p.name }

// Clone subscribes a new receiver to the pair. The clone only sees messages
// sent after it was created.
func (r *Receiver) Clone() *Receiver {
	if r.closed.Load() {
		panic("channel: clone of closed receiver for route " + r.p.name)
	}
	return r.p.subscribe()
}

// Recv returns the next message. After every Sender has been closed and the
// buffer is drained it returns ErrClosed.
func (r *Receiver) Recv(ctx context.Context) (message.Message, error) {
	if r.closed.Load() {
		return message.Message{}, ErrClosed
	}
	select {
	case msg := <-r.sub.ch:
		return msg, nil
	case <-r.p.eos:
		// Every send happened before eos was closed, so anything still
		// buffered is visible here.
		select {
		case msg := <-r.sub.ch:
			return msg, nil
		default:
			return message.Message{}, ErrClosed
		}
	case <-ctx.Done():
		return message.Message{}, ctx.Err()
	}
}

// Len returns the number of buffered messages waiting for this receiver.
func (r *Receiver) Len() int { return len(r.sub.ch) }

// Close unsubscribes this receiver. Pending and future sends skip it.
func (r *Receiver) Close() {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}
	r.sub.goneOnce.Do(func() { close(r.sub.gone) })
	r.p.unsubscribe(r.sub)
}
