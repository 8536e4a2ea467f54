// Package pipeline runs one task through its two ordered phases against the
// external executable: interpreter first, then drawer only if the interpreter
// exited 0.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vk/drawqueue/internal/ctxlog"
	"github.com/vk/drawqueue/internal/executor"
	"github.com/vk/drawqueue/internal/task"
)

// Runner executes tasks. It is safe for concurrent use: it holds no per-task
// state and the executable is treated as read-only.
type Runner struct {
	launcher   executor.Launcher
	executable string
	dir        string
	prefix     string
	timeout    time.Duration
	now        func() time.Time
}

// Option customizes a Runner.
type Option func(*Runner)

// WithTaskPrefix prepends prefix to the task identifier when it is passed to
// the executable, e.g. "repair_guide/" turns task "p1" into "repair_guide/p1".
func WithTaskPrefix(prefix string) Option {
	return func(r *Runner) { r.prefix = prefix }
}

// WithTimeout bounds the combined duration of both phases of a task. Zero
// disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithDir sets the working directory of the phase processes.
func WithDir(dir string) Option {
	return func(r *Runner) { r.dir = dir }
}

// WithClock injects the clock used for outcome timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a Runner invoking executable through launcher.
func New(launcher executor.Launcher, executable string, opts ...Option) *Runner {
	r := &Runner{launcher: launcher, executable: executable, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Argument returns the string passed to the executable for id.
func (r *Runner) Argument(id task.ID) string {
	return r.prefix + string(id)
}

// Run executes both phases of id and returns its outcome. It never returns
// early for reasons other than a failed phase or the end of ctx; a failure is
// recorded in the outcome, not raised.
func (r *Runner) Run(ctx context.Context, id task.ID) task.Outcome {
	logger := ctxlog.FromContext(ctx).With("task", string(id))
	outcome := task.Outcome{ID: id, StartedAt: r.now()}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	for _, phase := range task.Phases {
		if failure := r.runPhase(ctx, id, phase); failure != nil {
			outcome.Status = task.Failed
			outcome.Failure = failure
			outcome.FinishedAt = r.now()
			logger.Warn("Task failed.", "phase", string(failure.Phase), "exit_status", failure.ExitStatus, "error", failure.Err)
			return outcome
		}
	}

	outcome.Status = task.Succeeded
	outcome.FinishedAt = r.now()
	logger.Info("✅ Task finished", "elapsed", outcome.Duration())
	return outcome
}

func (r *Runner) runPhase(ctx context.Context, id task.ID, phase task.Phase) *task.PhaseFailure {
	logger := ctxlog.FromContext(ctx).With("task", string(id), "phase", string(phase))

	if err := ctx.Err(); err != nil {
		return &task.PhaseFailure{Task: id, Phase: phase, ExitStatus: task.LaunchFailed, Err: describe(err)}
	}

	cmd := executor.Command{
		Path: r.executable,
		Args: []string{string(phase), r.Argument(id)},
		Dir:  r.dir,
	}
	logger.Debug("▶️ Starting phase")
	res, err := r.launcher.Launch(ctx, cmd)
	if err != nil {
		return &task.PhaseFailure{Task: id, Phase: phase, ExitStatus: task.LaunchFailed, Err: describe(err)}
	}
	if res.ExitStatus != 0 {
		logger.Debug("Phase output.", "output", string(res.Output))
		return &task.PhaseFailure{Task: id, Phase: phase, ExitStatus: res.ExitStatus}
	}
	logger.Debug("Phase finished.")
	return nil
}

// describe makes a per-task deadline readable in logs while keeping the
// sentinel reachable through errors.Is.
func describe(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("task timed out: %w", err)
	}
	return err
}
