package config_loading

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/gridrouter/internal/config"
	"github.com/vk/gridrouter/internal/integration_tests/harness"
)

func TestLoading_HCLEnvironmentVariables(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.jsonl")
	t.Setenv("GRIDROUTER_IT_OUT", out)

	res := harness.Run(t, map[string]string{"grid.hcl": `
module "src" {
  module = "generator"
  module_settings = { count = 2 }
}
module "sink" {
  module = "file_writer"
  module_settings = { path = env.GRIDROUTER_IT_OUT }
}
route "r1" {
  from = "src"
  to   = "sink"
}
`}, 5*time.Second)
	require.NoError(t, res.Err)

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(b), "\n"))
}

func TestLoading_YAMLAndHCLMerge(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.jsonl")
	res := harness.Run(t, map[string]string{
		"modules.hcl": `
module "src" {
  module = "generator"
  module_settings = { count = 3 }
}
`,
		"sinks/sink.yaml": `
modules:
  sink:
    module: file_writer
    module_settings:
      path: ` + out + `
routes:
  r1:
    from: src
    to: [sink]
`,
	}, 5*time.Second)
	require.NoError(t, res.Err)

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(b), "\n"))
	assert.Len(t, res.App.Topology().Modules, 2)
}

func TestLoading_EmptyDirectory(t *testing.T) {
	res := harness.Run(t, nil, time.Second)
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, config.ErrNoDocuments)
	assert.Nil(t, res.App)
}

func TestLoading_InvalidHCLIsRejected(t *testing.T) {
	res := harness.Run(t, map[string]string{"grid.hcl": `module "src" {`}, time.Second)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "failed to load configuration")
}
