package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/gridrouter/internal/config"
	"github.com/vk/gridrouter/internal/manager"
	"github.com/vk/gridrouter/internal/module"
	"github.com/vk/gridrouter/internal/status"
	"github.com/vk/gridrouter/internal/testutil"
)

const pipelineHCL = `
module "src" {
  module = "list_source"
  module_settings = {
    data = ["a", "b"]
  }
}

module "sink" {
  module = "capture"
}

module "idle" {
  module = "capture"
}

route "r1" {
  from = "src"
  to   = "sink"
}
`

func newTestApp(t *testing.T, paths ...string) (*App, *testutil.Recorder[*testutil.Capture], *bytes.Buffer) {
	t.Helper()
	sinks := &testutil.Recorder[*testutil.Capture]{}
	var out bytes.Buffer
	cfg, err := NewConfig(Config{ConfigPaths: paths, LogLevel: "debug"})
	require.NoError(t, err)

	a, err := NewApp(&out, cfg, nil, testutil.SourceModule(nil), testutil.CaptureModule(sinks))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, sinks, &out
}

func TestApp_RunDeliversAndReports(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "grid.hcl", pipelineHCL)
	a, sinks, out := newTestApp(t, path)

	require.NoError(t, a.Run(context.Background()))

	sink, ok := sinks.Get("sink")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, sink.Data())

	idle, ok := sinks.Get("idle")
	require.True(t, ok)
	assert.False(t, idle.Ran())

	e, ok := a.Status().Get("idle")
	require.True(t, ok)
	assert.Equal(t, status.NotRouted, e.Status)
	assert.Contains(t, out.String(), "Execution finished.")
}

func TestApp_StartupErrorRunsNothing(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "grid.hcl", `
module "sink" { module = "capture" }
route "r1" {
  from = "ghost"
  to   = "sink"
}
`)
	a, sinks, _ := newTestApp(t, path)

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to build topology")
	sink, _ := sinks.Get("sink")
	assert.False(t, sink.Ran())
}

func TestApp_ModuleFailureIsReturned(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "grid.hcl", `
module "src" {
  module = "list_source"
  module_settings = { data = ["x"] }
}
module "bad" { module = "broken" }
route "r1" {
  from = "src"
  to   = "bad"
}
`)
	cfg, err := NewConfig(Config{ConfigPaths: []string{path}})
	require.NoError(t, err)
	a, err := NewApp(&bytes.Buffer{}, cfg, nil,
		testutil.SourceModule(nil),
		testutil.FuncModule("broken", module.Sink, func(context.Context, *module.Ports) error { return assert.AnError }),
	)
	require.NoError(t, err)

	err = a.Run(context.Background())
	var me *manager.ModuleError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "bad", me.Module)
}

func TestNewApp_LoadErrorIsReturned(t *testing.T) {
	cfg, err := NewConfig(Config{ConfigPaths: []string{filepath.Join(t.TempDir(), "missing.hcl")}})
	require.NoError(t, err)

	_, err = NewApp(&bytes.Buffer{}, cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestNewRegistry_DefaultsToCoreModules(t *testing.T) {
	reg := NewRegistry()
	for _, typ := range []string{
		"echo", "generator", "stdin", "udp_listener", "tcp_listener", "tcp_writer",
		"file_watcher", "file_writer", "stats", "socketio",
		"kafka_producer", "kafka_consumer", "nats_publisher", "nats_subscriber",
		"udpsocketlistener", "tcpsocketlistener",
	} {
		assert.True(t, reg.Has(typ), "missing %s", typ)
	}

	custom := NewRegistry(testutil.CaptureModule(&testutil.Recorder[*testutil.Capture]{}))
	assert.Equal(t, []string{"capture"}, custom.Types())
}

func TestFormatLoader_MergesHCLAndYAML(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "modules.hcl", `module "src" { module = "generator" }`)
	testutil.WriteFile(t, dir, "routes.yaml", `
modules:
  sink:
    module: echo
routes:
  r1:
    from: src
    to: sink
`)

	topo, err := newFormatLoader().Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, topo.Modules, 2)
	require.Len(t, topo.Routes, 1)
	assert.Equal(t, "r1", topo.Routes[0].Name)
}

func TestFormatLoader_ByExtension(t *testing.T) {
	dir := t.TempDir()
	yml := testutil.WriteFile(t, dir, "a.yml", "modules:\n  sink:\n    module: echo\n")
	txt := testutil.WriteFile(t, dir, "a.txt", "nothing")

	topo, err := newFormatLoader().Load(context.Background(), yml)
	require.NoError(t, err)
	assert.Len(t, topo.Modules, 1)

	_, err = newFormatLoader().Load(context.Background(), txt)
	assert.ErrorContains(t, err, "unsupported topology file")

	_, err = newFormatLoader().Load(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, config.ErrNoDocuments)
}

func TestNewConfig_Validation(t *testing.T) {
	_, err := NewConfig(Config{})
	assert.Error(t, err)

	_, err = NewConfig(Config{ConfigPaths: []string{"x"}, HealthcheckPort: 70000})
	assert.Error(t, err)

	_, err = NewConfig(Config{ConfigPaths: []string{"x"}, LogFormat: "xml"})
	assert.Error(t, err)

	cfg, err := NewConfig(Config{ConfigPaths: []string{"x"}, LogFormat: "json", HealthcheckPort: 8080})
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HealthcheckPort)
}

func TestNewLogger_WritesRotatedFile(t *testing.T) {
	var out bytes.Buffer
	path := filepath.Join(t.TempDir(), "gridrouter.log")
	logger, closer := newLogger("warn", "json", path, &out)

	logger.Info("hidden")
	logger.Warn("visible", "k", "v")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"visible"`)
	assert.NotContains(t, string(data), "hidden")
	assert.Equal(t, string(data), out.String())
}

func TestRouter_HealthStatusMetrics(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "grid.hcl", pipelineHCL)
	a, _, _ := newTestApp(t, path)
	require.NoError(t, a.Run(context.Background()))

	srv := httptest.NewServer(a.router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/status")
	require.NoError(t, err)
	var body statusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	require.Len(t, body.Modules, 3)
	assert.Equal(t, 2, body.Counts[status.Completed])
	assert.Equal(t, 1, body.Counts[status.NotRouted])
	assert.Equal(t, a.Topology().StageID.String(), body.StageID)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	metricsBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(metricsBody), "gridrouter_messages_sent_total")
}
