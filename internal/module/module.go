// Package module defines the contract every processing unit implements, and
// the Ports helper that modules embed to satisfy it.
//
// A module goes through three steps, always in this order and always driven
// by the manager:
//
//  1. Construction through a Factory, which decodes the module's settings and
//     performs no I/O.
//  2. Wiring, where the manager hands the module zero or more channel
//     endpoints through SetInbox and SetOutbox.
//  3. Run, which blocks until the module completes, fails or its context is
//     cancelled.
//
// A module never learns what is on the other side of its endpoints.
package module

import (
	"context"

	"github.com/vk/gridrouter/internal/channel"
	"github.com/vk/gridrouter/internal/config"
)

// Module is a named processing unit with an optional inbound endpoint, an
// optional outbound endpoint and a long-running behavior.
type Module interface {
	// SetInbox assigns an inbound endpoint. A nil receiver clears every
	// inbound endpoint.
	SetInbox(r *channel.Receiver) error
	// SetOutbox assigns an outbound endpoint. A nil sender clears every
	// outbound endpoint.
	SetOutbox(s *channel.Sender) error
	// Run executes the module until completion, failure or cancellation.
	// Returning nil, or ctx.Err() after ctx was cancelled, is a completion.
	Run(ctx context.Context) error
}

// Factory constructs a module from its instance name and settings.
type Factory func(name string, settings config.Settings) (Module, error)

// Sealer is implemented by modules that reject wiring once launched.
type Sealer interface {
	Seal()
}

// Meter receives per-message accounting from a module's ports.
type Meter interface {
	MessageSent(module, route string)
	MessageReceived(module, route string)
}

// Instrumentable is implemented by modules that report message counts.
type Instrumentable interface {
	Instrument(name string, m Meter)
}

// Kind is the capability set of a module.
type Kind int

const (
	// Source modules only produce: they accept an outbox but no inbox.
	Source Kind = iota
	// Sink modules only consume: they accept an inbox but no outbox.
	Sink
	// Processor modules accept both.
	Processor
)

func (k Kind) String() string {
	switch k {
	case Source:
		return "source"
	case Sink:
		return "sink"
	case Processor:
		return "processor"
	}
	return "unknown"
}

// Transport is the closed set of transports a module can sit on top of. It is
// carried for logging only.
type Transport int

const (
	InProcess Transport = iota
	UDP
	TCP
	File
	Stdin
	Kafka
	NATS
	SocketIO
)

var transportNames = [...]string{
	InProcess: "in_process",
	UDP:       "udp",
	TCP:       "tcp",
	File:      "file",
	Stdin:     "stdin",
	Kafka:     "kafka",
	NATS:      "nats",
	SocketIO:  "socketio",
}

func (t Transport) String() string {
	if int(t) < 0 || int(t) >= len(transportNames) {
		return "unknown"
	}
	return transportNames[t]
}

// Transporter is implemented by modules that declare their transport.
type Transporter interface {
	Transport() Transport
}

// TransportOf returns the transport m declares, InProcess if none.
func TransportOf(m Module) Transport {
	if t, ok := m.(Transporter); ok {
		return t.Transport()
	}
	return InProcess
}
