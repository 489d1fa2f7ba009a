// Package stdin provides a source that turns each line of standard input
// into a message.
package stdin

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vk/gridrouter/internal/channel"
	"github.com/vk/gridrouter/internal/config"
	"github.com/vk/gridrouter/internal/ctxlog"
	"github.com/vk/gridrouter/internal/message"
	"github.com/vk/gridrouter/internal/module"
	"github.com/vk/gridrouter/internal/registry"
)

const TypeName = "stdin"

type Module struct{}

func (m *Module) Register(r *registry.Registry) {
	r.Register(TypeName, New)
}

// Reader emits {data, timestamp} for every line read. End of input
// completes the module.
type Reader struct {
	*module.Ports
	in      io.Reader
	maxLine int
}

// New is the stdin factory. The only setting is max_line_size in bytes.
func New(name string, s config.Settings) (module.Module, error) {
	maxLine, err := s.Int("max_line_size", bufio.MaxScanTokenSize)
	if err != nil {
		return nil, err
	}
	return NewReader(os.Stdin, maxLine), nil
}

// NewReader returns a line source reading from in.
func NewReader(in io.Reader, maxLine int) *Reader {
	return &Reader{Ports: module.SourcePorts(), in: in, maxLine: maxLine}
}

func (r *Reader) Transport() module.Transport { return module.Stdin }

type line struct {
	text string
	err  error
}

func (r *Reader) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	// Reads block without a deadline, so scanning runs apart from the
	// emit loop and is abandoned on cancellation.
	lines := make(chan line)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r.in)
		sc.Buffer(make([]byte, 0, 4096), r.maxLine)
		for sc.Scan() {
			select {
			case lines <- line{text: sc.Text()}:
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			select {
			case lines <- line{err: err}:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				logger.Debug("End of input reached.")
				return nil
			}
			if l.err != nil {
				return module.WrapTransport("stdin read", l.err)
			}
			msg := message.New(map[string]message.Value{
				"data":      message.String(strings.TrimSpace(l.text)),
				"timestamp": message.String(time.Now().UTC().Format(time.RFC3339Nano)),
			})
			if err := r.Emit(ctx, msg); err != nil {
				if errors.Is(err, channel.ErrClosed) {
					return nil
				}
				return err
			}
		}
	}
}
