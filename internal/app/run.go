package app

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/drawqueue/internal/buildgate"
	"github.com/vk/drawqueue/internal/ctxlog"
	"github.com/vk/drawqueue/internal/events"
	"github.com/vk/drawqueue/internal/inventory"
	"github.com/vk/drawqueue/internal/pipeline"
	"github.com/vk/drawqueue/internal/report"
	"github.com/vk/drawqueue/internal/scheduler"
	"github.com/vk/drawqueue/internal/task"
)

// Run executes one incremental build: scan, resolve the pending set, build the
// executable if anything is pending, then run every pending task. Fatal
// problems (scan, build) are returned as is; task failures come back as a
// *scheduler.BatchError unless the configuration tolerates them.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	logger := a.logger
	logger.Debug("App.Run method started.")
	startedAt := a.now()

	if err := a.healthCheckServer(ctx); err != nil {
		return err
	}
	defer a.closeHealthCheckServer(ctx)

	publisher := a.openPublisher(ctx)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("Closing event publisher failed.", "error", err)
		}
	}()

	inv, err := inventory.New(a.config.SourceRoot, a.config.OutputRoot).Scan(ctx)
	if err != nil {
		return err
	}
	pending := inv.Pending()
	a.store.Register(pending.Slice()...)
	logger.Info("Inventory scanned.",
		"sources", inv.Source.Len(),
		"produced", inv.Produced.Len(),
		"pending", pending.Len(),
	)

	if pending.Len() == 0 {
		logger.Info("✅ Nothing to do, every source is already produced.")
		a.finish(ctx, publisher, startedAt, false, nil)
		return nil
	}

	gate := buildgate.New(a.launcher, a.config.BuildCommand, a.config.ProjectRoot)
	if err := gate.Ensure(ctx); err != nil {
		return err
	}

	runner := pipeline.New(a.launcher, a.config.Executable,
		pipeline.WithTaskPrefix(a.config.TaskPrefix),
		pipeline.WithTimeout(a.config.TaskTimeout),
		pipeline.WithDir(a.config.ProjectRoot),
		pipeline.WithClock(a.now),
	)
	sched := scheduler.New(runner, a.config.Workers,
		scheduler.WithStore(a.store),
		scheduler.WithPublisher(publisher),
		scheduler.WithRunID(a.runID),
		scheduler.WithClock(a.now),
	)

	logger.Info("🚀 Starting tasks...", "pending", pending.Len(), "workers", sched.Concurrency())
	rep := sched.Schedule(ctx, pending)
	logger.Info("🏁 Tasks finished.",
		"succeeded", rep.Succeeded,
		"failed", rep.Failed,
		"elapsed", rep.Duration(),
	)
	a.finish(ctx, publisher, startedAt, true, rep.Outcomes)

	if ctx.Err() != nil {
		return fmt.Errorf("run interrupted: %w", ctx.Err())
	}
	if err := rep.Err(); err != nil {
		if a.config.AllowTaskFailures {
			logger.Warn("Some tasks failed; failures are allowed by configuration.", "error", err)
			return nil
		}
		return err
	}

	logger.Debug("App.Run method finished.")
	return nil
}

// openPublisher dials the configured event sink. A sink that cannot be reached
// is logged and replaced by a no-op so the run itself is unaffected.
func (a *App) openPublisher(ctx context.Context) events.Publisher {
	if a.publisher != nil {
		return a.publisher
	}
	if a.config.EventsURL == "" {
		return events.Noop{}
	}

	pub, err := events.DialSocketIO(ctx, events.SocketIOOptions{
		URL:       a.config.EventsURL,
		Namespace: a.config.EventsNamespace,
	})
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Event sink unavailable, continuing without progress events.", "error", err)
		return events.Noop{}
	}
	return pub
}

// finish publishes the closing event and writes the run report.
func (a *App) finish(ctx context.Context, publisher events.Publisher, startedAt time.Time, built bool, outcomes []task.Outcome) {
	logger := ctxlog.FromContext(ctx)
	finishedAt := a.now()
	summary := a.store.Summary()

	publisher.Publish(ctx, events.Completed(a.runID, summary, finishedAt))

	if a.config.Report == "" {
		return
	}
	doc := &report.Document{
		RunID:      a.runID,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Duration:   finishedAt.Sub(startedAt).Round(time.Millisecond).String(),
		SourceRoot: a.config.SourceRoot,
		OutputRoot: a.config.OutputRoot,
		Built:      built,
		Summary:    summary,
		Tasks:      report.Entries(outcomes),
	}
	if err := report.Write(a.config.Report, doc); err != nil {
		logger.Error("Writing run report failed.", "path", a.config.Report, "error", err)
		return
	}
	logger.Info("Run report written.", "path", a.config.Report)
}
