// Package harness runs whole topologies through the app for the
// integration suites.
package harness

import (
	"context"
	"testing"
	"time"

	"github.com/vk/gridrouter/internal/app"
	"github.com/vk/gridrouter/internal/registry"
	"github.com/vk/gridrouter/internal/testutil"
)

// Result is what one run produced.
type Result struct {
	App  *app.App
	Err  error
	Logs *testutil.SafeBuffer
}

// Run writes files into a temp dir, loads the dir and runs it with
// modules, or the built-in module table when none are given. The run is
// cancelled after timeout.
func Run(t *testing.T, files map[string]string, timeout time.Duration, modules ...registry.Module) Result {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		testutil.WriteFile(t, dir, name, content)
	}

	logs := &testutil.SafeBuffer{}
	cfg, err := app.NewConfig(app.Config{ConfigPaths: []string{dir}, LogLevel: "debug"})
	if err != nil {
		t.Fatalf("invalid config: %v", err)
	}
	a, err := app.NewApp(logs, cfg, nil, modules...)
	if err != nil {
		return Result{Err: err, Logs: logs}
	}
	t.Cleanup(func() { a.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return Result{App: a, Err: a.Run(ctx), Logs: logs}
}
