// Package task is the concurrency harness that runs one launched module.
//
// Each Task runs its module on its own goroutine, recovers a panic into a
// failure, and delivers exactly one Outcome on the results channel it was
// launched with. Tasks never cancel one another.
package task

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/vk/gridrouter/internal/ctxlog"
	"github.com/vk/gridrouter/internal/module"
)

// State represents the lifecycle state of a task.
type State int32

const (
	// Pending indicates the task has been created but not started.
	Pending State = iota
	// Running indicates the module's Run is executing.
	Running
	// Completed indicates Run returned without error or was cancelled.
	Completed
	// Failed indicates Run returned an error or panicked.
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Outcome is the terminal report of one task.
type Outcome struct {
	Name     string
	State    State
	Err      error
	Duration time.Duration
}

// PanicError is the failure reported when a module's Run panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("module panicked: %v", e.Value)
}

// Task is the handle of one launched module.
type Task struct {
	Name   string
	Module module.Module

	state   atomic.Int32
	started time.Time
	// cleanup runs after Run returns and before the outcome is delivered.
	cleanup func()
}

// New prepares a task. cleanup may be nil.
func New(name string, m module.Module, cleanup func()) *Task {
	return &Task{Name: name, Module: m, cleanup: cleanup}
}

// State atomically retrieves the task's state.
func (t *Task) State() State { return State(t.state.Load()) }

// Launch starts the module on its own goroutine. Exactly one Outcome is sent
// on results when the module terminates. The module runs under a context of
// its own that is cancelled as soon as Run returns, so helpers it started on
// that context stop even if Run abandoned them.
func (t *Task) Launch(ctx context.Context, results chan<- Outcome) {
	t.state.Store(int32(Running))
	t.started = time.Now()
	mctx, cancel := context.WithCancel(ctx)
	go func() {
		err := t.run(mctx)
		cancel()
		if t.cleanup != nil {
			t.cleanup()
		}

		out := Outcome{Name: t.Name, Duration: time.Since(t.started)}
		if err != nil {
			out.State, out.Err = Failed, err
		} else {
			out.State = Completed
		}
		t.state.Store(int32(out.State))
		results <- out
	}()
}

func (t *Task) run(ctx context.Context) (err error) {
	logger := ctxlog.FromContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
			logger.Error("Module panicked.", "module", t.Name, "panic", r)
		}
	}()

	err = t.Module.Run(ctx)
	if err == nil {
		return nil
	}
	// Cancellation is the shutdown path, not a failure.
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return nil
	}
	return err
}
