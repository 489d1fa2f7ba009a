// Package filewatch provides a source that emits a message for every
// filesystem change under a watched path.
package filewatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/vk/gridrouter/internal/channel"
	"github.com/vk/gridrouter/internal/config"
	"github.com/vk/gridrouter/internal/ctxlog"
	"github.com/vk/gridrouter/internal/message"
	"github.com/vk/gridrouter/internal/module"
	"github.com/vk/gridrouter/internal/registry"
)

const TypeName = "file_watcher"

type Module struct{}

func (m *Module) Register(r *registry.Registry) {
	r.Register(TypeName, New)
}

var opNames = map[string]fsnotify.Op{
	"create": fsnotify.Create,
	"modify": fsnotify.Write,
	"remove": fsnotify.Remove,
	"rename": fsnotify.Rename,
	"chmod":  fsnotify.Chmod,
}

type Settings struct {
	FilePath string   `cty:"file_path"`
	WatchFor []string `cty:"watch_for"`
}

// Watcher emits {path, op, timestamp} for each matching event.
type Watcher struct {
	*module.Ports
	settings Settings
	mask     fsnotify.Op
	ready    chan struct{}
}

func New(name string, s config.Settings) (module.Module, error) {
	settings := Settings{WatchFor: []string{"modify", "create", "remove", "rename"}}
	if err := s.Decode(&settings); err != nil {
		return nil, err
	}
	if settings.FilePath == "" {
		return nil, errors.New("file_path is required")
	}
	var mask fsnotify.Op
	for _, w := range settings.WatchFor {
		op, ok := opNames[strings.ToLower(w)]
		if !ok {
			return nil, fmt.Errorf("unknown watch_for value %q", w)
		}
		mask |= op
	}
	if mask == 0 {
		return nil, errors.New("watch_for must name at least one operation")
	}
	return &Watcher{Ports: module.SourcePorts(), settings: settings, mask: mask, ready: make(chan struct{})}, nil
}

func (w *Watcher) Transport() module.Transport { return module.File }

// Ready is closed once the watch is established.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

func (w *Watcher) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	path, err := filepath.Abs(w.settings.FilePath)
	if err != nil {
		return module.WrapTransport("watch resolve", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return module.WrapTransport("watch stat", err)
	}

	// A single file is watched through its directory so atomic saves, which
	// replace the file, are still seen.
	dir, only := path, ""
	if !info.IsDir() {
		dir, only = filepath.Dir(path), path
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return module.WrapTransport("watch create", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return module.WrapTransport("watch add", err)
	}
	close(w.ready)
	logger.Info("Watching for file changes.", "path", path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if only != "" && filepath.Clean(event.Name) != only {
				continue
			}
			op := event.Op & w.mask
			if op == 0 {
				continue
			}
			msg := message.New(map[string]message.Value{
				"path":      message.String(event.Name),
				"op":        message.String(opString(op)),
				"timestamp": message.String(time.Now().UTC().Format(time.RFC3339Nano)),
			})
			if err := w.Emit(ctx, msg); err != nil {
				if errors.Is(err, channel.ErrClosed) {
					return nil
				}
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("File watcher error.", "error", err)
		}
	}
}

// opString names op with the watch_for vocabulary, joined by '|'.
func opString(op fsnotify.Op) string {
	var names []string
	for _, name := range []string{"create", "modify", "remove", "rename", "chmod"} {
		if op.Has(opNames[name]) {
			names = append(names, name)
		}
	}
	return strings.Join(names, "|")
}
