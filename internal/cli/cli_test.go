package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_DefaultConfigPath(t *testing.T) {
	cfg, exit, err := Parse(nil, &bytes.Buffer{})
	require.NoError(t, err)
	require.False(t, exit)
	assert.Equal(t, []string{DefaultConfigPath}, cfg.ConfigPaths)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestParse_Flags(t *testing.T) {
	cfg, exit, err := Parse([]string{
		"-c", "grid.yaml",
		"--log-level", "DEBUG",
		"--log-format", "json",
		"--log-file", "/tmp/gr.log",
		"--healthcheck-port", "9090",
		"extra.hcl",
	}, &bytes.Buffer{})
	require.NoError(t, err)
	require.False(t, exit)
	assert.Equal(t, []string{"grid.yaml", "extra.hcl"}, cfg.ConfigPaths)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "/tmp/gr.log", cfg.LogFile)
	assert.Equal(t, 9090, cfg.HealthcheckPort)
}

func TestParse_ConfigFlagWinsOverShorthand(t *testing.T) {
	cfg, _, err := Parse([]string{"--config", "a.hcl", "-c", "b.hcl"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.hcl"}, cfg.ConfigPaths)
}

func TestParse_Help(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse([]string{"-h"}, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "gridrouter - A declarative module-graph message router.")
}

func TestParse_ListModules(t *testing.T) {
	var out bytes.Buffer
	_, exit, err := Parse([]string{"--list-modules"}, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Contains(t, out.String(), "generator\n")
	assert.Contains(t, out.String(), "udp_listener\n")
}

func TestParse_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"unknown flag", []string{"--nope"}, 2},
		{"bad format", []string{"--log-format", "xml"}, 2},
		{"bad level", []string{"--log-level", "loud"}, 2},
		{"bad port", []string{"--healthcheck-port", "-1"}, 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Parse(tc.args, &bytes.Buffer{})
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, tc.code, exitErr.Code)
		})
	}
}
