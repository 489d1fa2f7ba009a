package app

import (
	"context"
	"fmt"

	"github.com/vk/gridrouter/internal/ctxlog"
	"github.com/vk/gridrouter/internal/manager"
)

// Run builds the loaded topology and runs it until every module has
// finished or ctx is cancelled. Startup errors are returned before any
// module runs; otherwise the error aggregates every module failure.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.ctx = ctx
	a.logger.Debug("App.Run method started.")

	a.healthCheckServer()
	defer a.closeHealthCheckServer()

	mgr := manager.New(a.registry, manager.WithMetrics(a.metrics), manager.WithStatus(a.status))
	if err := mgr.Build(ctx, a.topology); err != nil {
		return fmt.Errorf("failed to build topology: %w", err)
	}

	a.logger.Info("Starting modules.", "declared", len(a.topology.Modules), "routes", len(mgr.Plan().Edges()))
	report, err := mgr.Run(ctx)
	if report != nil {
		a.logger.Info("Execution finished.",
			"completed", len(report.Completed()),
			"failed", len(report.Failed()),
			"not_routed", len(report.NotRouted()),
		)
	}
	if err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}
