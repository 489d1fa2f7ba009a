// Package tcp provides a line-oriented TCP listener source and a TCP writer
// sink.
package tcp

import (
	"errors"
	"net"
	"strconv"

	"github.com/vk/gridrouter/internal/registry"
)

const (
	ListenerType = "tcp_listener"
	WriterType   = "tcp_writer"

	// LegacyListenerType is the listener's name in older topology documents.
	LegacyListenerType = "tcpsocketlistener"
)

// Module registers both TCP module types.
type Module struct{}

func (m *Module) Register(r *registry.Registry) {
	r.Register(ListenerType, NewListener)
	r.Register(WriterType, NewWriter)
	r.Register(LegacyListenerType, NewListener)
}

// Endpoint is the address pair shared by both module types.
type Endpoint struct {
	Address string `cty:"address"`
	Port    int    `cty:"port"`
}

func (e Endpoint) validate() error {
	if e.Port < 0 || e.Port > 65535 {
		return errors.New("port must be between 0 and 65535")
	}
	return nil
}

func (e Endpoint) hostPort() string {
	return net.JoinHostPort(e.Address, strconv.Itoa(e.Port))
}
