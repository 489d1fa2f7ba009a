package manager

import (
	"fmt"
	"time"

	"github.com/vk/gridrouter/internal/status"
	"go.uber.org/multierr"
)

// Outcome is the terminal result of one declared module.
type Outcome struct {
	Name     string
	Type     string
	Status   status.Status
	Err      error
	Duration time.Duration
}

// ModuleError ties a failure to the module that produced it.
type ModuleError struct {
	Module string
	Err    error
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("module '%s' failed: %v", e.Module, e.Err)
}

func (e *ModuleError) Unwrap() error { return e.Err }

// Report lists the outcome of every declared module. Not-routed modules come
// first, in declaration order; launched modules follow in arrival order.
type Report struct {
	Outcomes []Outcome
}

func (r *Report) add(o Outcome) { r.Outcomes = append(r.Outcomes, o) }

// Get returns the outcome for name.
func (r *Report) Get(name string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Name == name {
			return o, true
		}
	}
	return Outcome{}, false
}

func (r *Report) names(s status.Status) []string {
	var out []string
	for _, o := range r.Outcomes {
		if o.Status == s {
			out = append(out, o.Name)
		}
	}
	return out
}

// Completed returns the names of modules that completed.
func (r *Report) Completed() []string { return r.names(status.Completed) }

// Failed returns the names of modules that failed.
func (r *Report) Failed() []string { return r.names(status.Failed) }

// NotRouted returns the names of modules that were never run.
func (r *Report) NotRouted() []string { return r.names(status.NotRouted) }

// Err aggregates every failure into one error, nil if nothing failed.
func (r *Report) Err() error {
	var err error
	for _, o := range r.Outcomes {
		if o.Status == status.Failed {
			err = multierr.Append(err, &ModuleError{Module: o.Name, Err: o.Err})
		}
	}
	return err
}
