// Package filewriter provides a sink that appends every message to a file
// as one JSON document per line.
package filewriter

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"

	"github.com/vk/gridrouter/internal/config"
	"github.com/vk/gridrouter/internal/ctxlog"
	"github.com/vk/gridrouter/internal/module"
	"github.com/vk/gridrouter/internal/registry"
)

const TypeName = "file_writer"

type Module struct{}

func (m *Module) Register(r *registry.Registry) {
	r.Register(TypeName, New)
}

type Settings struct {
	Path string `cty:"path"`
	// Truncate empties the file on start instead of appending.
	Truncate bool `cty:"truncate"`
	// Sync flushes to disk after every message.
	Sync bool `cty:"sync"`
}

// Writer is the file sink.
type Writer struct {
	*module.Ports
	settings Settings
}

func New(name string, s config.Settings) (module.Module, error) {
	var settings Settings
	if err := s.Decode(&settings); err != nil {
		return nil, err
	}
	if settings.Path == "" {
		return nil, errors.New("path is required")
	}
	return &Writer{Ports: module.SinkPorts(), settings: settings}, nil
}

func (w *Writer) Transport() module.Transport { return module.File }

func (w *Writer) Run(ctx context.Context) (err error) {
	logger := ctxlog.FromContext(ctx)

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if w.settings.Truncate {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(w.settings.Path, flags, 0o644)
	if err != nil {
		return module.WrapTransport("file open", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = module.WrapTransport("file close", cerr)
		}
	}()

	buf := bufio.NewWriter(f)
	enc := json.NewEncoder(buf)
	written := 0
	for msg := range w.Incoming(ctx) {
		if err := enc.Encode(msg); err != nil {
			return module.WrapTransport("file write", err)
		}
		written++
		if w.settings.Sync {
			if err := buf.Flush(); err != nil {
				return module.WrapTransport("file write", err)
			}
			if err := f.Sync(); err != nil {
				return module.WrapTransport("file sync", err)
			}
		}
	}
	if err := buf.Flush(); err != nil {
		return module.WrapTransport("file write", err)
	}
	logger.Debug("File writer finished.", "path", w.settings.Path, "written", written)
	return ctx.Err()
}
