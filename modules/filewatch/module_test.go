package filewatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/gridrouter/internal/channel"
	"github.com/vk/gridrouter/internal/config"
	"github.com/vk/gridrouter/internal/message"
	"github.com/vk/gridrouter/internal/module"
)

func start(t *testing.T, ctx context.Context, settings map[string]any) (*channel.Receiver, <-chan error) {
	t.Helper()
	m, err := New("watch", config.MustSettings(settings))
	require.NoError(t, err)
	w := m.(*Watcher)

	tx, rx := channel.New("r1", 64)
	require.NoError(t, w.SetOutbox(tx))
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case <-w.Ready():
	case err := <-done:
		t.Fatalf("watcher stopped early: %v", err)
	}
	return rx, done
}

func next(t *testing.T, ctx context.Context, rx *channel.Receiver) message.Message {
	t.Helper()
	msg, err := rx.Recv(ctx)
	require.NoError(t, err)
	return msg
}

func field(m message.Message, key string) string {
	v, _ := m.Get(key)
	return v.String()
}

func TestWatcher_DirectoryCreate(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	dir := t.TempDir()
	rx, done := start(t, ctx, map[string]any{"file_path": dir, "watch_for": []any{"create"}})

	path := filepath.Join(dir, "new.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	msg := next(t, ctx, rx)
	assert.Equal(t, path, field(msg, "path"))
	assert.Equal(t, "create", field(msg, "op"))

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatcher_SingleFileIgnoresSiblings(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	dir := t.TempDir()
	target := filepath.Join(dir, "watched.txt")
	require.NoError(t, os.WriteFile(target, nil, 0o644))
	rx, _ := start(t, ctx, map[string]any{"file_path": target, "watch_for": []any{"modify"}})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(target, []byte("changed"), 0o644))

	msg := next(t, ctx, rx)
	assert.Equal(t, target, field(msg, "path"))
	assert.Equal(t, "modify", field(msg, "op"))
}

func TestWatcher_MissingPath(t *testing.T) {
	m, err := New("watch", config.MustSettings(map[string]any{"file_path": filepath.Join(t.TempDir(), "nope")}))
	require.NoError(t, err)

	var te *module.TransportError
	require.ErrorAs(t, m.Run(context.Background()), &te)
	assert.Equal(t, "watch stat", te.Op)
}

func TestNew_Validation(t *testing.T) {
	_, err := New("watch", config.Settings{})
	assert.ErrorContains(t, err, "file_path is required")

	_, err = New("watch", config.MustSettings(map[string]any{"file_path": "/tmp", "watch_for": []any{"explode"}}))
	assert.ErrorContains(t, err, "unknown watch_for value")

	_, err = New("watch", config.MustSettings(map[string]any{"file_path": "/tmp", "watch_for": []any{}}))
	assert.Error(t, err)
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "create|modify", opString(fsnotify.Create|fsnotify.Write))
	assert.Equal(t, "rename", opString(fsnotify.Rename))
}
