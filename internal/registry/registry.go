package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/vk/gridrouter/internal/config"
	"github.com/vk/gridrouter/internal/module"
)

// Module is the interface that every module package must implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// UnknownModuleTypeError reports a type tag with no registered factory.
type UnknownModuleTypeError struct {
	Type string
}

func (e *UnknownModuleTypeError) Error() string {
	return fmt.Sprintf("unknown module type '%s'", e.Type)
}

// Registry holds the factory table for a single application instance.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]module.Factory
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{factories: make(map[string]module.Factory)}
}

// Register adds a factory under typeName. Registering the same type twice is
// a programming error and panics.
func (r *Registry) Register(typeName string, f module.Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[typeName]; exists {
		panic(fmt.Sprintf("module type '%s' already registered", typeName))
	}
	slog.Debug("Registering module type.", "type", typeName)
	r.factories[typeName] = f
}

// RegisterAll calls Register on every module package in mods.
func (r *Registry) RegisterAll(mods ...Module) {
	for _, m := range mods {
		m.Register(r)
	}
}

// Resolve constructs a module instance. An unknown type yields
// *UnknownModuleTypeError; a factory failure is always reported as
// *module.ConfigurationError.
func (r *Registry) Resolve(typeName, name string, settings config.Settings) (module.Module, error) {
	r.mu.RLock()
	f, ok := r.factories[typeName]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownModuleTypeError{Type: typeName}
	}

	m, err := f(name, settings)
	if err != nil {
		var ce *module.ConfigurationError
		if errors.As(err, &ce) {
			if ce.Type == "" {
				ce.Type = typeName
			}
			if ce.Module == "" {
				ce.Module = name
			}
			return nil, err
		}
		return nil, &module.ConfigurationError{Module: name, Type: typeName, Err: err}
	}
	if m == nil {
		return nil, &module.ConfigurationError{Module: name, Type: typeName, Err: errors.New("factory returned no module")}
	}
	return m, nil
}

// Has reports whether typeName is registered.
func (r *Registry) Has(typeName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[typeName]
	return ok
}

// Types returns every registered type tag in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
