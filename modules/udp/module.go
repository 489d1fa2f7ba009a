// Package udp provides a source that emits one message per received
// datagram.
package udp

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/vk/gridrouter/internal/channel"
	"github.com/vk/gridrouter/internal/config"
	"github.com/vk/gridrouter/internal/ctxlog"
	"github.com/vk/gridrouter/internal/message"
	"github.com/vk/gridrouter/internal/module"
	"github.com/vk/gridrouter/internal/registry"
)

const (
	TypeName = "udp_listener"

	// LegacyTypeName is the listener's name in older topology documents.
	LegacyTypeName = "udpsocketlistener"
)

// readTimeout bounds each read so the loop notices cancellation.
const readTimeout = 100 * time.Millisecond

type Module struct{}

func (m *Module) Register(r *registry.Registry) {
	r.Register(TypeName, New)
	r.Register(LegacyTypeName, New)
}

type Settings struct {
	Address    string `cty:"address"`
	Port       int    `cty:"port"`
	BufferSize int    `cty:"buffer_size"`
}

// Listener is the UDP source.
type Listener struct {
	*module.Ports
	settings Settings
	bound    chan net.Addr
}

func New(name string, s config.Settings) (module.Module, error) {
	settings := Settings{Address: "0.0.0.0", BufferSize: 65536}
	if err := s.Decode(&settings); err != nil {
		return nil, err
	}
	if settings.Port < 0 || settings.Port > 65535 {
		return nil, errors.New("port must be between 0 and 65535")
	}
	if settings.BufferSize <= 0 {
		return nil, errors.New("buffer_size must be positive")
	}
	return &Listener{Ports: module.SourcePorts(), settings: settings, bound: make(chan net.Addr, 1)}, nil
}

func (l *Listener) Transport() module.Transport { return module.UDP }

// Addr blocks until the socket is bound and returns its local address.
func (l *Listener) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case a := <-l.bound:
		l.bound <- a
		return a, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Listener) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(l.settings.Address, strconv.Itoa(l.settings.Port)))
	if err != nil {
		return module.WrapTransport("udp resolve", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return module.WrapTransport("udp bind", err)
	}
	defer conn.Close()
	l.bound <- conn.LocalAddr()
	logger.Info("UDP listener bound.", "address", conn.LocalAddr().String())

	buf := make([]byte, l.settings.BufferSize)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return module.WrapTransport("udp read", err)
		}

		msg := message.New(map[string]message.Value{
			"data":         message.String(string(buf[:n])),
			"endpoint":     message.String(src.String()),
			"message_size": message.Int(int64(n)),
			"timestamp":    message.String(time.Now().UTC().Format(time.RFC3339Nano)),
		})
		if err := l.Emit(ctx, msg); err != nil {
			if errors.Is(err, channel.ErrClosed) {
				logger.Debug("All receivers are gone, closing socket.")
				return nil
			}
			return err
		}
	}
}
