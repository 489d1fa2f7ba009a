// Package manager turns a topology document into running modules.
//
// A Manager works in strict phases:
//
//  1. Instantiate every managed module through the registry.
//  2. Resolve routes into a topology plan and allocate one channel per route,
//     handing each sender a clone of the route's sending half and each
//     receiver a clone of its receiving half.
//  3. Classify modules: those that received no endpoint are reported as not
//     routed and never run.
//  4. Launch every routable module on its own goroutine.
//  5. Supervise: consume terminal outcomes in arrival order until every
//     launched module has reported.
//
// Any error in phases 1 to 3 aborts before a single module runs. A failure in
// phase 5 is isolated to the module that failed.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/vk/gridrouter/internal/channel"
	"github.com/vk/gridrouter/internal/config"
	"github.com/vk/gridrouter/internal/ctxlog"
	"github.com/vk/gridrouter/internal/metrics"
	"github.com/vk/gridrouter/internal/module"
	"github.com/vk/gridrouter/internal/registry"
	"github.com/vk/gridrouter/internal/status"
	"github.com/vk/gridrouter/internal/task"
	"github.com/vk/gridrouter/internal/topology"
)

// ErrAlreadyStarted is returned when Build or Run is called twice.
var ErrAlreadyStarted = errors.New("manager already started")

// DuplicateModuleNameError reports two module declarations sharing a name.
type DuplicateModuleNameError struct {
	Name string
}

func (e *DuplicateModuleNameError) Error() string {
	return fmt.Sprintf("module name '%s' is declared more than once", e.Name)
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics reports message and lifecycle counts to c.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Manager) { m.metrics = c }
}

// WithStatus records module lifecycle in s.
func WithStatus(s *status.Store) Option {
	return func(m *Manager) { m.status = s }
}

// instance is one instantiated module together with the endpoint clones the
// manager handed to it. The manager owns those clones and closes them when
// the module's task ends.
type instance struct {
	desc      *config.ModuleDescriptor
	module    module.Module
	senders   []*channel.Sender
	receivers []*channel.Receiver
}

func (i *instance) release() {
	for _, s := range i.senders {
		s.Close()
	}
	for _, r := range i.receivers {
		r.Close()
	}
}

// Manager instantiates, wires and supervises the modules of one topology.
type Manager struct {
	registry *registry.Registry
	metrics  *metrics.Collector
	status   *status.Store

	instances []*instance
	byName    map[string]*instance
	plan      *topology.Plan

	built   atomic.Bool
	started atomic.Bool
}

// New creates a Manager that constructs modules from reg.
func New(reg *registry.Registry, opts ...Option) *Manager {
	m := &Manager{
		registry: reg,
		byName:   make(map[string]*instance),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.status == nil {
		m.status = status.New()
	}
	return m
}

// Status returns the store the manager records lifecycle into.
func (m *Manager) Status() *status.Store { return m.status }

// Plan returns the resolved route plan, nil before Build.
func (m *Manager) Plan() *topology.Plan { return m.plan }

// Start builds the topology and runs it to completion.
func (m *Manager) Start(ctx context.Context, topo *config.Topology) (*Report, error) {
	if err := m.Build(ctx, topo); err != nil {
		return nil, err
	}
	return m.Run(ctx)
}

// Build performs the instantiate, resolve and wire phases. Nothing runs.
func (m *Manager) Build(ctx context.Context, topo *config.Topology) error {
	if !m.built.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Building topology.", "stage_id", topo.StageID, "modules", len(topo.Modules), "routes", len(topo.Routes))

	if err := m.instantiate(ctx, topo.Modules); err != nil {
		return err
	}

	names := make([]string, len(m.instances))
	for i, inst := range m.instances {
		names[i] = inst.desc.Name
	}
	plan, err := topology.Resolve(names, topo.Routes)
	if err != nil {
		return err
	}
	m.plan = plan

	if err := m.wire(ctx); err != nil {
		for _, inst := range m.instances {
			inst.release()
		}
		return err
	}
	logger.Debug("Topology built.", "routes_wired", len(plan.Edges()))
	return nil
}

func (m *Manager) instantiate(ctx context.Context, descs []*config.ModuleDescriptor) error {
	logger := ctxlog.FromContext(ctx)

	seen := make(map[string]struct{}, len(descs))
	for _, d := range descs {
		if _, dup := seen[d.Name]; dup {
			return &DuplicateModuleNameError{Name: d.Name}
		}
		seen[d.Name] = struct{}{}
	}

	for _, d := range descs {
		if d.Address.Kind != config.AddressManaged {
			return &module.ConfigurationError{
				Module: d.Name,
				Type:   d.Type,
				Err:    fmt.Errorf("address_type %s is not supported by this runtime", d.Address),
			}
		}

		mod, err := m.registry.Resolve(d.Type, d.Name, d.Settings)
		if err != nil {
			return err
		}
		if in, ok := mod.(module.Instrumentable); ok && m.metrics != nil {
			in.Instrument(d.Name, m.metrics)
		}

		inst := &instance{desc: d, module: mod}
		m.instances = append(m.instances, inst)
		m.byName[d.Name] = inst
		m.status.Declare(d.Name, d.Type, module.TransportOf(mod).String())
		logger.Debug("Module instantiated.", "module", d.Name, "type", d.Type, "id", d.ID)
	}
	return nil
}

// wire allocates one channel per route and hands out clones. The original
// halves are released once every participant holds its own clone, so the
// participants alone decide when the route ends.
func (m *Manager) wire(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	for _, edge := range m.plan.Edges() {
		sender, receiver := channel.New(edge.Route, edge.Capacity)
		err := m.wireEdge(edge, sender, receiver)
		sender.Close()
		receiver.Close()
		if err != nil {
			return err
		}
		if m.metrics != nil {
			m.metrics.RoutesWired.Inc()
		}
		logger.Debug("Route wired.", "route", edge.Route, "from", edge.From, "to", edge.To)
	}
	return nil
}

func (m *Manager) wireEdge(edge topology.Edge, sender *channel.Sender, receiver *channel.Receiver) error {
	for _, name := range edge.From {
		inst := m.byName[name]
		s := sender.Clone()
		inst.senders = append(inst.senders, s)
		if err := inst.module.SetOutbox(s); err != nil {
			return fmt.Errorf("wiring route '%s' into module '%s': %w", edge.Route, name, err)
		}
	}
	for _, name := range edge.To {
		inst := m.byName[name]
		r := receiver.Clone()
		inst.receivers = append(inst.receivers, r)
		if err := inst.module.SetInbox(r); err != nil {
			return fmt.Errorf("wiring route '%s' into module '%s': %w", edge.Route, name, err)
		}
	}
	return nil
}

// Run launches every routable module and blocks until each of them has
// reported. The returned error aggregates the failures; it is nil when every
// launched module completed.
func (m *Manager) Run(ctx context.Context) (*Report, error) {
	if !m.built.Load() {
		return nil, errors.New("manager: Run called before Build")
	}
	if !m.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}
	logger := ctxlog.FromContext(ctx)
	report := &Report{}

	names := make([]string, len(m.instances))
	for i, inst := range m.instances {
		names[i] = inst.desc.Name
	}
	routableNames, unrouted := m.plan.Classify(names)
	for _, name := range unrouted {
		inst := m.byName[name]
		logger.Warn("Module is not configured in any route and will not be run.", "module", name)
		m.status.Set(name, status.NotRouted, nil)
		m.countOutcome(status.NotRouted)
		report.add(Outcome{Name: name, Type: inst.desc.Type, Status: status.NotRouted})
	}
	routable := make([]*instance, len(routableNames))
	for i, name := range routableNames {
		routable[i] = m.byName[name]
	}

	if len(routable) == 0 {
		logger.Warn("No routable modules, nothing to run.")
		return report, nil
	}

	results := make(chan task.Outcome, len(routable))
	for _, inst := range routable {
		if s, ok := inst.module.(module.Sealer); ok {
			s.Seal()
		}
		mctx, mlog := ctxlog.With(ctx, "module", inst.desc.Name)
		task.New(inst.desc.Name, inst.module, inst.release).Launch(mctx, results)

		m.status.Set(inst.desc.Name, status.Running, nil)
		if m.metrics != nil {
			m.metrics.ModulesRunning.Inc()
		}
		mlog.Info("Module started.",
			"type", inst.desc.Type,
			"transport", module.TransportOf(inst.module).String(),
			"inbound", m.plan.Inbound(inst.desc.Name),
			"outbound", m.plan.Outbound(inst.desc.Name),
		)
	}

	for range routable {
		o := <-results
		inst := m.byName[o.Name]
		if m.metrics != nil {
			m.metrics.ModulesRunning.Dec()
		}

		out := Outcome{Name: o.Name, Type: inst.desc.Type, Err: o.Err, Duration: o.Duration}
		if o.State == task.Failed {
			out.Status = status.Failed
			logger.Error("Module failed.", "module", o.Name, "error", o.Err, "duration", o.Duration)
		} else {
			out.Status = status.Completed
			logger.Info("Module completed.", "module", o.Name, "duration", o.Duration)
		}
		m.status.Set(o.Name, out.Status, o.Err)
		m.countOutcome(out.Status)
		report.add(out)
	}

	logger.Info("All modules finished.", "launched", len(routable), "failed", len(report.Failed()))
	return report, report.Err()
}

func (m *Manager) countOutcome(s status.Status) {
	if m.metrics != nil {
		m.metrics.ModuleOutcomes.WithLabelValues(string(s)).Inc()
	}
}
