package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vk/drawqueue/internal/task"
)

// Report aggregates the outcomes of one Schedule call.
type Report struct {
	Outcomes   []task.Outcome
	Succeeded  int
	Failed     int
	StartedAt  time.Time
	FinishedAt time.Time
}

func (r *Report) add(o task.Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	if o.Succeeded() {
		r.Succeeded++
	} else {
		r.Failed++
	}
}

func (r *Report) sort() {
	sort.Slice(r.Outcomes, func(i, j int) bool { return r.Outcomes[i].ID < r.Outcomes[j].ID })
}

// Total is the number of tasks that received an outcome.
func (r *Report) Total() int {
	return len(r.Outcomes)
}

// Duration is the wall time of the whole batch.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// FailedOutcomes returns the outcomes of failed tasks, ordered by identifier.
func (r *Report) FailedOutcomes() []task.Outcome {
	var out []task.Outcome
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			out = append(out, o)
		}
	}
	return out
}

// Err returns a *BatchError when at least one task failed.
func (r *Report) Err() error {
	failed := r.FailedOutcomes()
	if len(failed) == 0 {
		return nil
	}
	return &BatchError{Total: r.Total(), Failed: failed}
}

// BatchError is the aggregate result of a batch in which some tasks failed.
type BatchError struct {
	Total  int
	Failed []task.Outcome
}

func (e *BatchError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, o := range e.Failed {
		if o.Failure != nil {
			parts = append(parts, fmt.Sprintf("%s (%s: %d)", o.ID, o.Failure.Phase, o.Failure.ExitStatus))
		} else {
			parts = append(parts, string(o.ID))
		}
	}
	return fmt.Sprintf("%d of %d tasks failed: %s", len(e.Failed), e.Total, strings.Join(parts, ", "))
}

// Unwrap exposes the individual phase failures to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, o := range e.Failed {
		if o.Failure != nil {
			errs = append(errs, o.Failure)
		}
	}
	return errs
}
