// Package metrics provides Prometheus metrics collection for the router.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gridrouter"

// Collector holds all Prometheus metrics for one router instance.
type Collector struct {
	registry *prometheus.Registry

	// Message metrics
	MessagesSent     *prometheus.CounterVec
	MessagesReceived *prometheus.CounterVec

	// Module lifecycle metrics
	ModulesRunning prometheus.Gauge
	ModuleOutcomes *prometheus.CounterVec
	RoutesWired    prometheus.Gauge
}

// New creates a collector on its own private registry, so several routers
// (or tests) in one process never collide.
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		MessagesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_sent_total",
				Help:      "Total number of messages emitted by a module onto a route",
			},
			[]string{"module", "route"},
		),
		MessagesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_received_total",
				Help:      "Total number of messages taken by a module from a route",
			},
			[]string{"module", "route"},
		),
		ModulesRunning: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "modules_running",
				Help:      "Number of modules currently running",
			},
		),
		ModuleOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "module_outcomes_total",
				Help:      "Terminal module outcomes by kind",
			},
			[]string{"outcome"},
		),
		RoutesWired: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "routes_wired",
				Help:      "Number of routes resolved into channels",
			},
		),
	}
}

// Registry exposes the underlying registry, mainly for Gather in tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// MessageSent implements module.Meter.
func (c *Collector) MessageSent(module, route string) {
	c.MessagesSent.WithLabelValues(module, route).Inc()
}

// MessageReceived implements module.Meter.
func (c *Collector) MessageReceived(module, route string) {
	c.MessagesReceived.WithLabelValues(module, route).Inc()
}

// Handler serves the collector in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
