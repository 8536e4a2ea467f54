// Package executor launches the external processes the orchestrator depends
// on: the build command and the two phases of every task. It only reports
// how a process ended; deciding what an exit status means is left to callers.
package executor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/vk/drawqueue/internal/ctxlog"
)

// Command describes one process invocation.
type Command struct {
	Path string
	Args []string
	// Dir is the working directory of the process. Empty means the
	// orchestrator's own working directory.
	Dir string
}

// String renders the command line for logs and error messages.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Path
	}
	return c.Path + " " + strings.Join(c.Args, " ")
}

// Result is what the launcher observed about a finished process.
type Result struct {
	// ExitStatus is the process exit code, or -1 when the process could not be
	// started or was terminated by a signal.
	ExitStatus int
	// Output holds the tail of the combined stdout/stderr stream.
	Output []byte
}

// Launcher runs a command to completion. Launch blocks until the process
// exits. A non-zero exit is reported through Result.ExitStatus with a nil
// error; the error is reserved for processes that could not be started or were
// killed because ctx ended.
type Launcher interface {
	Launch(ctx context.Context, cmd Command) (Result, error)
}

// Exec is the os/exec backed Launcher.
type Exec struct {
	// OutputLimit caps how many trailing bytes of process output are kept.
	OutputLimit int
	// WaitDelay bounds how long Launch waits for output pipes after the
	// process was killed.
	WaitDelay time.Duration
}

const (
	defaultOutputLimit = 8 << 10
	defaultWaitDelay   = 5 * time.Second
)

// New creates an Exec launcher with default limits.
func New() *Exec {
	return &Exec{OutputLimit: defaultOutputLimit, WaitDelay: defaultWaitDelay}
}

// Launch implements Launcher.
func (e *Exec) Launch(ctx context.Context, c Command) (Result, error) {
	logger := ctxlog.FromContext(ctx).With("command", c.String())

	limit := e.OutputLimit
	if limit <= 0 {
		limit = defaultOutputLimit
	}
	out := newTailBuffer(limit)

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = e.WaitDelay

	logger.Debug("Launching process.", "dir", c.Dir)
	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	res := Result{ExitStatus: -1, Output: out.Bytes()}
	if cmd.ProcessState != nil {
		res.ExitStatus = cmd.ProcessState.ExitCode()
	}

	if err == nil {
		logger.Debug("Process exited.", "exit_status", res.ExitStatus, "elapsed", elapsed)
		return res, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		logger.Debug("Process stopped by context.", "error", ctxErr, "elapsed", elapsed)
		return res, fmt.Errorf("%s: %w", c.Path, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && res.ExitStatus >= 0 {
		logger.Debug("Process exited.", "exit_status", res.ExitStatus, "elapsed", elapsed)
		return res, nil
	}

	logger.Debug("Process failed to run.", "error", err)
	return res, fmt.Errorf("launch %s: %w", c.Path, err)
}
