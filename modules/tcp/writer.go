package tcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/vk/gridrouter/internal/config"
	"github.com/vk/gridrouter/internal/ctxlog"
	"github.com/vk/gridrouter/internal/message"
	"github.com/vk/gridrouter/internal/module"
)

// defaultPayload is written for messages that carry no data field.
var defaultPayload = message.String("default text")

type WriterSettings struct {
	Endpoint
	DialTimeout time.Duration `cty:"dial_timeout"`
}

// Writer connects to a remote endpoint and writes the JSON encoding of each
// message's data field, one per line.
type Writer struct {
	*module.Ports
	settings WriterSettings
}

func NewWriter(name string, s config.Settings) (module.Module, error) {
	settings := WriterSettings{Endpoint: Endpoint{Address: "127.0.0.1"}, DialTimeout: 5 * time.Second}
	if err := s.Decode(&settings); err != nil {
		return nil, err
	}
	if err := settings.validate(); err != nil {
		return nil, err
	}
	if settings.Port == 0 {
		return nil, errors.New("port is required")
	}
	return &Writer{Ports: module.SinkPorts(), settings: settings}, nil
}

func (w *Writer) Transport() module.Transport { return module.TCP }

func (w *Writer) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	d := net.Dialer{Timeout: w.settings.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", w.settings.hostPort())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return module.WrapTransport("tcp dial", err)
	}
	defer conn.Close()
	logger.Info("TCP writer connected.", "remote", conn.RemoteAddr().String())

	out := bufio.NewWriter(conn)
	for msg := range w.Incoming(ctx) {
		data, ok := msg.Get("data")
		if !ok {
			data = defaultPayload
		}
		b, err := json.Marshal(data)
		if err != nil {
			return module.WrapTransport("tcp encode", err)
		}
		if _, err := out.Write(append(b, '\n')); err != nil {
			return module.WrapTransport("tcp write", err)
		}
		if err := out.Flush(); err != nil {
			return module.WrapTransport("tcp write", err)
		}
	}
	return ctx.Err()
}
