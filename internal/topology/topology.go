// Package topology resolves route declarations against the set of declared
// modules.
//
// Resolve validates every route, expands cardinalities into module-name sets
// and produces a Plan: the immutable structure of who sends on which route
// and who receives from it. The Plan holds no channels and no module
// instances, so it can be built and inspected before anything is allocated.
package topology

import (
	"fmt"
	"sort"

	"github.com/vk/gridrouter/internal/config"
	"go.uber.org/multierr"
)

// DanglingRouteReferenceError reports a route endpoint naming a module that
// was never declared.
type DanglingRouteReferenceError struct {
	Route  string
	Module string
}

func (e *DanglingRouteReferenceError) Error() string {
	return fmt.Sprintf("route '%s' references undeclared module '%s'", e.Route, e.Module)
}

// InvalidRouteError reports a route that is malformed on its own, such as an
// empty endpoint set or a repeated route name.
type InvalidRouteError struct {
	Route  string
	Reason string
}

func (e *InvalidRouteError) Error() string {
	return fmt.Sprintf("invalid route '%s': %s", e.Route, e.Reason)
}

// Edge is one resolved route.
type Edge struct {
	Route    string
	From     []string
	To       []string
	Capacity int
}

// Plan is the resolved route structure. It is read-only once built.
type Plan struct {
	edges    []Edge
	outbound map[string][]string
	inbound  map[string][]string
}

// Resolve validates routes against the declared module names. Routes are
// visited in sorted name order, so diagnostics are deterministic. Every
// problem found is reported; the returned error supports errors.As for each
// of them.
func Resolve(modules []string, routes []*config.RouteDescriptor) (*Plan, error) {
	declared := make(map[string]struct{}, len(modules))
	for _, m := range modules {
		declared[m] = struct{}{}
	}

	sorted := append([]*config.RouteDescriptor(nil), routes...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	p := &Plan{
		outbound: make(map[string][]string),
		inbound:  make(map[string][]string),
	}
	var errs error
	seen := make(map[string]struct{}, len(sorted))

	for _, rd := range sorted {
		if _, dup := seen[rd.Name]; dup {
			errs = multierr.Append(errs, &InvalidRouteError{Route: rd.Name, Reason: "declared more than once"})
			continue
		}
		seen[rd.Name] = struct{}{}

		from, to := rd.From.Names(), rd.To.Names()
		if len(from) == 0 {
			errs = multierr.Append(errs, &InvalidRouteError{Route: rd.Name, Reason: "'from' names no module"})
		}
		if len(to) == 0 {
			errs = multierr.Append(errs, &InvalidRouteError{Route: rd.Name, Reason: "'to' names no module"})
		}
		if rd.Capacity < 0 {
			errs = multierr.Append(errs, &InvalidRouteError{Route: rd.Name, Reason: fmt.Sprintf("capacity %d is negative", rd.Capacity)})
		}

		dangling := false
		for _, name := range append(append([]string(nil), from...), to...) {
			if _, ok := declared[name]; !ok {
				errs = multierr.Append(errs, &DanglingRouteReferenceError{Route: rd.Name, Module: name})
				dangling = true
			}
		}
		if dangling || len(from) == 0 || len(to) == 0 {
			continue
		}

		p.edges = append(p.edges, Edge{Route: rd.Name, From: from, To: to, Capacity: rd.Capacity})
		for _, name := range from {
			p.outbound[name] = append(p.outbound[name], rd.Name)
		}
		for _, name := range to {
			p.inbound[name] = append(p.inbound[name], rd.Name)
		}
	}
	if errs != nil {
		return nil, errs
	}
	return p, nil
}

// Edges returns the resolved routes in sorted name order.
func (p *Plan) Edges() []Edge {
	return append([]Edge(nil), p.edges...)
}

// Outbound returns the routes module sends on.
func (p *Plan) Outbound(module string) []string {
	return append([]string(nil), p.outbound[module]...)
}

// Inbound returns the routes module receives from.
func (p *Plan) Inbound(module string) []string {
	return append([]string(nil), p.inbound[module]...)
}

// Routable reports whether module takes part in at least one route.
func (p *Plan) Routable(module string) bool {
	return len(p.outbound[module]) > 0 || len(p.inbound[module]) > 0
}

// Classify splits names into routable and unrouted, keeping input order.
func (p *Plan) Classify(names []string) (routable, unrouted []string) {
	for _, n := range names {
		if p.Routable(n) {
			routable = append(routable, n)
		} else {
			unrouted = append(unrouted, n)
		}
	}
	return routable, unrouted
}
