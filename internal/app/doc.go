// Package app wires a loaded topology to the module registry and runs it.
// It owns the logger, the optional health and status server, and the metrics
// registry, and is independent of the command-line entrypoint.
package app
