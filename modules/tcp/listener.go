package tcp

import (
	"bufio"
	"context"
	"errors"
	"net"
	"time"

	"github.com/vk/gridrouter/internal/channel"
	"github.com/vk/gridrouter/internal/config"
	"github.com/vk/gridrouter/internal/ctxlog"
	"github.com/vk/gridrouter/internal/message"
	"github.com/vk/gridrouter/internal/module"
	"golang.org/x/sync/errgroup"
)

// errDownstreamGone stops the connection group once nobody is listening.
var errDownstreamGone = errors.New("all receivers are gone")

type ListenerSettings struct {
	Endpoint
	BufferSize int `cty:"buffer_size"`
}

// Listener accepts connections and emits one message per received line.
// Connections are served concurrently.
type Listener struct {
	*module.Ports
	settings ListenerSettings
	bound    chan net.Addr
}

func NewListener(name string, s config.Settings) (module.Module, error) {
	settings := ListenerSettings{Endpoint: Endpoint{Address: "0.0.0.0"}, BufferSize: 64 * 1024}
	if err := s.Decode(&settings); err != nil {
		return nil, err
	}
	if err := settings.validate(); err != nil {
		return nil, err
	}
	if settings.BufferSize <= 0 {
		return nil, errors.New("buffer_size must be positive")
	}
	return &Listener{Ports: module.SourcePorts(), settings: settings, bound: make(chan net.Addr, 1)}, nil
}

func (l *Listener) Transport() module.Transport { return module.TCP }

// Addr blocks until the listener is bound and returns its address.
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

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", l.settings.hostPort())
	if err != nil {
		return module.WrapTransport("tcp listen", err)
	}
	l.bound <- ln.Addr()
	logger.Info("TCP listener bound.", "address", ln.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})
	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return module.WrapTransport("tcp accept", err)
			}
			g.Go(func() error { return l.serve(gctx, conn) })
		}
	})

	err = g.Wait()
	switch {
	case errors.Is(err, errDownstreamGone):
		logger.Debug("All receivers are gone, listener closed.")
		return nil
	case err != nil:
		return err
	}
	return ctx.Err()
}

func (l *Listener) serve(ctx context.Context, conn net.Conn) error {
	logger := ctxlog.FromContext(ctx)
	remote := conn.RemoteAddr().String()
	logger.Debug("Connection accepted.", "endpoint", remote)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		conn.Close()
	}()

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 4096), l.settings.BufferSize)
	for sc.Scan() {
		msg := message.New(map[string]message.Value{
			"data":      message.String(sc.Text()),
			"endpoint":  message.String(remote),
			"timestamp": message.String(time.Now().UTC().Format(time.RFC3339Nano)),
		})
		if err := l.Emit(ctx, msg); err != nil {
			if errors.Is(err, channel.ErrClosed) {
				return errDownstreamGone
			}
			return err
		}
	}
	// A broken client connection only ends that connection.
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		logger.Warn("Connection read failed.", "endpoint", remote, "error", err)
	}
	logger.Debug("Connection closed.", "endpoint", remote)
	return nil
}
