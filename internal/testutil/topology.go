package testutil

import (
	"github.com/vk/gridrouter/internal/config"
)

// TopologyBuilder assembles a config.Topology in code.
type TopologyBuilder struct {
	topo *config.Topology
}

// NewTopology starts an empty topology.
func NewTopology() *TopologyBuilder {
	return &TopologyBuilder{topo: config.NewTopology()}
}

// Module declares a managed module.
func (b *TopologyBuilder) Module(name, typeName string, settings map[string]any) *TopologyBuilder {
	b.topo.Modules = append(b.topo.Modules, config.NewModuleDescriptor(name, typeName, config.MustSettings(settings)))
	return b
}

// Route declares a route with the default capacity.
func (b *TopologyBuilder) Route(name string, from, to config.Cardinality) *TopologyBuilder {
	return b.RouteWithCapacity(name, from, to, 0)
}

// RouteWithCapacity declares a route with an explicit capacity.
func (b *TopologyBuilder) RouteWithCapacity(name string, from, to config.Cardinality, capacity int) *TopologyBuilder {
	b.topo.Routes = append(b.topo.Routes, &config.RouteDescriptor{Name: name, From: from, To: to, Capacity: capacity})
	return b
}

// Build returns the assembled topology.
func (b *TopologyBuilder) Build() *config.Topology { return b.topo }
