package task

import (
	"errors"
	"fmt"
	"time"
)

// Phase is one of the two ordered invocations that make up a task.
type Phase string

const (
	// PhaseInterpreter materializes the intermediate state for a task.
	PhaseInterpreter Phase = "interpreter"
	// PhaseDrawer consumes the interpreter's output and produces the result.
	PhaseDrawer Phase = "drawer"
)

// Phases lists the phases in execution order.
var Phases = []Phase{PhaseInterpreter, PhaseDrawer}

// LaunchFailed is the exit status recorded when a phase process could not be
// started or did not exit normally.
const LaunchFailed = -1

// Status is the terminal state of a task.
type Status string

const (
	Succeeded Status = "succeeded"
	Failed    Status = "failed"
)

// PhaseFailure describes the first phase of a task that did not exit 0.
type PhaseFailure struct {
	Task       ID
	Phase      Phase
	ExitStatus int
	Err        error
}

func (e *PhaseFailure) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("task %s: phase %s failed (exit status %d): %v", e.Task, e.Phase, e.ExitStatus, e.Err)
	}
	return fmt.Sprintf("task %s: phase %s exited with status %d", e.Task, e.Phase, e.ExitStatus)
}

func (e *PhaseFailure) Unwrap() error { return e.Err }

// Outcome is the result of running one task. A task is atomic from the
// scheduler's point of view: it either succeeded in both phases or failed in
// exactly one of them.
type Outcome struct {
	ID         ID
	Status     Status
	Failure    *PhaseFailure
	StartedAt  time.Time
	FinishedAt time.Time
}

// Succeeded reports whether both phases exited 0.
func (o Outcome) Succeeded() bool {
	return o.Status == Succeeded
}

// Duration returns the wall time spent on the task.
func (o Outcome) Duration() time.Duration {
	if o.FinishedAt.IsZero() || o.StartedAt.IsZero() {
		return 0
	}
	return o.FinishedAt.Sub(o.StartedAt)
}

// Err returns the phase failure as an error, or nil for a successful task.
func (o Outcome) Err() error {
	if o.Failure == nil {
		return nil
	}
	return o.Failure
}

// AsPhaseFailure extracts a *PhaseFailure from err's chain.
func AsPhaseFailure(err error) (*PhaseFailure, bool) {
	var pf *PhaseFailure
	if errors.As(err, &pf) {
		return pf, true
	}
	return nil, false
}
