// Package buildgate refreshes the external executable once per run, before
// any task is dispatched, so that every task runs against a binary built from
// the same source snapshot.
package buildgate

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/drawqueue/internal/ctxlog"
	"github.com/vk/drawqueue/internal/executor"
)

// BuildError reports a build command that could not be launched or exited
// non-zero. It is fatal: no task is dispatched after it.
type BuildError struct {
	Command    string
	ExitStatus int
	Output     []byte
	Err        error
}

func (e *BuildError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("build %q failed: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("build %q exited with status %d", e.Command, e.ExitStatus)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Gate runs the build command.
type Gate struct {
	launcher executor.Launcher
	command  []string
	dir      string
}

// New creates a Gate that runs command (program followed by its arguments)
// in dir. An empty command turns Ensure into a no-op.
func New(launcher executor.Launcher, command []string, dir string) *Gate {
	return &Gate{launcher: launcher, command: command, dir: dir}
}

// Ensure runs the build synchronously.
func (g *Gate) Ensure(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	if len(g.command) == 0 {
		logger.Info("Build step disabled, using existing executable.")
		return nil
	}

	cmd := executor.Command{Path: g.command[0], Args: g.command[1:], Dir: g.dir}
	logger.Info("🔨 Building executable", "command", cmd.String())
	start := time.Now()

	res, err := g.launcher.Launch(ctx, cmd)
	if err != nil {
		return &BuildError{Command: cmd.String(), ExitStatus: res.ExitStatus, Output: res.Output, Err: err}
	}
	if res.ExitStatus != 0 {
		logger.Error("Build failed.", "exit_status", res.ExitStatus, "output", string(res.Output))
		return &BuildError{Command: cmd.String(), ExitStatus: res.ExitStatus, Output: res.Output}
	}

	logger.Info("Build finished.", "elapsed", time.Since(start))
	return nil
}
