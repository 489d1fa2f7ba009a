package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/gridrouter/internal/config"
	"github.com/vk/gridrouter/internal/module"
)

type nopModule struct {
	*module.Ports
	name string
}

func (m *nopModule) Run(context.Context) error { return nil }

func nopFactory(name string, _ config.Settings) (module.Module, error) {
	return &nopModule{Ports: module.SinkPorts(), name: name}, nil
}

type nopPackage struct{}

func (nopPackage) Register(r *Registry) { r.Register("nop", nopFactory) }

func TestResolve(t *testing.T) {
	r := New()
	r.RegisterAll(nopPackage{})

	m, err := r.Resolve("nop", "first", config.Settings{})
	require.NoError(t, err)
	assert.Equal(t, "first", m.(*nopModule).name)
	assert.True(t, r.Has("nop"))
}

func TestResolve_UnknownType(t *testing.T) {
	_, err := New().Resolve("teleporter", "x", config.Settings{})
	var ute *UnknownModuleTypeError
	require.ErrorAs(t, err, &ute)
	assert.Equal(t, "teleporter", ute.Type)
	assert.Equal(t, "unknown module type 'teleporter'", err.Error())
}

func TestResolve_FactoryErrorsBecomeConfigurationErrors(t *testing.T) {
	boom := errors.New("port is required")
	r := New()
	r.Register("plain", func(string, config.Settings) (module.Module, error) { return nil, boom })
	r.Register("typed", func(name string, _ config.Settings) (module.Module, error) {
		return nil, &module.ConfigurationError{Err: boom}
	})
	r.Register("nil", func(string, config.Settings) (module.Module, error) { return nil, nil })

	for _, typ := range []string{"plain", "typed"} {
		_, err := r.Resolve(typ, "inst", config.Settings{})
		var ce *module.ConfigurationError
		require.ErrorAs(t, err, &ce, typ)
		assert.Equal(t, "inst", ce.Module)
		assert.Equal(t, typ, ce.Type)
		assert.ErrorIs(t, err, boom)
	}

	_, err := r.Resolve("nil", "inst", config.Settings{})
	var ce *module.ConfigurationError
	assert.ErrorAs(t, err, &ce)
}

func TestRegister_DuplicatePanics(t *testing.T) {
	r := New()
	r.Register("nop", nopFactory)
	assert.Panics(t, func() { r.Register("nop", nopFactory) })
}

func TestTypes_Sorted(t *testing.T) {
	r := New()
	r.Register("udp_listener", nopFactory)
	r.Register("echo", nopFactory)
	r.Register("generator", nopFactory)
	assert.Equal(t, []string{"echo", "generator", "udp_listener"}, r.Types())
}
