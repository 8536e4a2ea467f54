// Package testutil holds test doubles and helpers shared by the package tests.
package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/drawqueue/internal/executor"
)

// Call is one recorded invocation of FakeLauncher.
type Call struct {
	Command executor.Command
	Start   time.Time
	End     time.Time
}

// Mode returns the first argument of the command, which for phase calls is
// the phase name.
func (c Call) Mode() string {
	if len(c.Command.Args) == 0 {
		return ""
	}
	return c.Command.Args[0]
}

// Target returns the second argument, the task argument for phase calls.
func (c Call) Target() string {
	if len(c.Command.Args) < 2 {
		return ""
	}
	return c.Command.Args[1]
}

// FakeLauncher implements executor.Launcher without starting processes. It
// records every call and reports the exit status chosen by ExitFor.
type FakeLauncher struct {
	// ExitFor decides the exit status of a command. Nil means always 0.
	ExitFor func(cmd executor.Command) int
	// ErrFor optionally fails a command as if it could not be launched.
	ErrFor func(cmd executor.Command) error
	// Delay is slept inside each call, honoring ctx.
	Delay time.Duration

	mu       sync.Mutex
	calls    []Call
	inFlight atomic.Int32
	peak     atomic.Int32
}

// Launch implements executor.Launcher.
func (f *FakeLauncher) Launch(ctx context.Context, cmd executor.Command) (executor.Result, error) {
	start := time.Now()
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if cur <= p || f.peak.CompareAndSwap(p, cur) {
			break
		}
	}

	var err error
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			err = ctx.Err()
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, Call{Command: cmd, Start: start, End: time.Now()})
	f.mu.Unlock()

	if err != nil {
		return executor.Result{ExitStatus: -1}, err
	}
	if f.ErrFor != nil {
		if err := f.ErrFor(cmd); err != nil {
			return executor.Result{ExitStatus: -1}, err
		}
	}
	if f.ExitFor != nil {
		return executor.Result{ExitStatus: f.ExitFor(cmd)}, nil
	}
	return executor.Result{}, nil
}

// Calls returns a copy of the recorded calls in completion order.
func (f *FakeLauncher) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsFor returns the recorded calls whose mode is mode.
func (f *FakeLauncher) CallsFor(mode string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Mode() == mode {
			out = append(out, c)
		}
	}
	return out
}

// Targets returns the task arguments of the calls with the given mode.
func (f *FakeLauncher) Targets(mode string) []string {
	var out []string
	for _, c := range f.CallsFor(mode) {
		out = append(out, c.Target())
	}
	return out
}

// PeakConcurrency is the largest number of calls observed in flight at once.
func (f *FakeLauncher) PeakConcurrency() int {
	return int(f.peak.Load())
}

// FailWhen returns an ExitFor function failing with status when the command
// mode and target match.
func FailWhen(mode, target string, status int) func(executor.Command) int {
	return func(cmd executor.Command) int {
		c := Call{Command: cmd}
		if c.Mode() == mode && c.Target() == target {
			return status
		}
		return 0
	}
}
