// Package socketio provides a Socket.IO client module. Inbound messages are
// emitted to the server as events; server events, when configured, are
// turned into outbound messages.
package socketio

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/vk/gridrouter/internal/channel"
	"github.com/vk/gridrouter/internal/config"
	"github.com/vk/gridrouter/internal/ctxlog"
	"github.com/vk/gridrouter/internal/message"
	"github.com/vk/gridrouter/internal/module"
	"github.com/vk/gridrouter/internal/registry"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

const TypeName = "socketio"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the socketio factory.
func (m *Module) Register(r *registry.Registry) {
	r.Register(TypeName, New)
}

// Settings configures the client.
type Settings struct {
	URL       string `cty:"url"`
	Namespace string `cty:"namespace"`
	// EmitEvent is the event name inbound messages are emitted as.
	EmitEvent string `cty:"emit_event"`
	// OnEvent, when set, turns every server event of that name into a message.
	OnEvent            string        `cty:"on_event"`
	ConnectTimeout     time.Duration `cty:"connect_timeout"`
	InsecureSkipVerify bool          `cty:"insecure_skip_verify"`
}

// Client is a processor: it may be wired as a sink, a source or both.
type Client struct {
	*module.Ports
	settings Settings
	baseURL  string
	path     string
}

// New is the socketio factory.
func New(name string, s config.Settings) (module.Module, error) {
	settings := Settings{Namespace: "/", EmitEvent: "message", ConnectTimeout: 10 * time.Second}
	if err := s.Decode(&settings); err != nil {
		return nil, err
	}
	if settings.URL == "" {
		return nil, errors.New("url is required")
	}
	parsedURL, err := url.Parse(settings.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("url %q must be absolute", settings.URL)
	}
	if settings.ConnectTimeout <= 0 {
		return nil, errors.New("connect_timeout must be positive")
	}
	return &Client{
		Ports:    module.ProcessorPorts(),
		settings: settings,
		baseURL:  fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host),
		path:     parsedURL.Path,
	}, nil
}

func (c *Client) Transport() module.Transport { return module.SocketIO }

func (c *Client) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx).With("url", c.settings.URL, "namespace", c.settings.Namespace)

	opts := socket.DefaultOptions()
	if c.path != "" {
		opts.SetPath(c.path)
	}
	if c.settings.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(c.baseURL, opts)
	io := manager.Socket(c.settings.Namespace, opts)
	defer func() {
		logger.Debug("Disconnecting socket client")
		io.Disconnect()
	}()

	connected := make(chan struct{}, 1)
	failed := make(chan error, 1)
	events := make(chan message.Message, 64)

	io.On(types.EventName("connect"), func(...any) {
		select {
		case connected <- struct{}{}:
		default:
		}
	})
	io.On(types.EventName("connect_error"), func(errs ...any) {
		select {
		case failed <- eventError("connect_error", errs):
		default:
		}
	})
	io.On(types.EventName("disconnect"), func(reasons ...any) {
		select {
		case failed <- eventError("disconnect", reasons):
		default:
		}
	})
	if c.settings.OnEvent != "" {
		io.On(types.EventName(c.settings.OnEvent), func(data ...any) {
			select {
			case events <- eventMessage(c.settings.OnEvent, data):
			case <-ctx.Done():
			}
		})
	}

	io.Connect()
	timer := time.NewTimer(c.settings.ConnectTimeout)
	defer timer.Stop()
	select {
	case <-connected:
		logger.Info("Successfully connected", "sid", io.Id())
	case err := <-failed:
		return module.WrapTransport("socketio connect", err)
	case <-timer.C:
		return module.WrapTransport("socketio connect", errors.New("timed out while waiting for initial connection"))
	case <-ctx.Done():
		return ctx.Err()
	}

	// A client wired only as a source keeps running until cancelled.
	var in <-chan message.Message
	if c.HasInbox() {
		in = c.Incoming(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-failed:
			return module.WrapTransport("socketio connection", err)
		case msg, ok := <-in:
			if !ok {
				return ctx.Err()
			}
			io.Emit(c.settings.EmitEvent, msg.Map())
		case msg := <-events:
			if err := c.Emit(ctx, msg); err != nil {
				if errors.Is(err, channel.ErrClosed) {
					return nil
				}
				return err
			}
		}
	}
}

func eventError(event string, args []any) error {
	if len(args) > 0 {
		if err, ok := args[0].(error); ok {
			return err
		}
		return fmt.Errorf("%s: %v", event, args[0])
	}
	return errors.New(event)
}

// eventMessage wraps a server event. An object payload becomes the message;
// any other payload is carried in data.
func eventMessage(event string, args []any) message.Message {
	var payload any
	if len(args) > 0 {
		payload = args[0]
	}
	if obj, ok := payload.(map[string]any); ok {
		if msg, err := message.FromMap(obj); err == nil {
			return msg.With("event", message.String(event))
		}
	}
	data, err := message.FromAny(payload)
	if err != nil {
		data = message.String(fmt.Sprint(payload))
	}
	return message.New(map[string]message.Value{
		"event": message.String(event),
		"data":  data,
	})
}
