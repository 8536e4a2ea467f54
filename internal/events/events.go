// Package events publishes run progress to an external observer. Publishing
// is best effort: a failing sink is logged and never changes a task outcome.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/vk/drawqueue/internal/inmemorystore"
	"github.com/vk/drawqueue/internal/task"
)

// Kind names an event.
type Kind string

const (
	TaskStarted  Kind = "task_started"
	TaskFinished Kind = "task_finished"
	RunFinished  Kind = "run_finished"
)

// Event is one progress notification.
type Event struct {
	Kind       Kind
	RunID      string
	Task       task.ID
	Status     task.Status
	Phase      task.Phase
	ExitStatus int
	Error      string
	Time       time.Time
	Summary    *inmemorystore.Summary
}

// Started builds a TaskStarted event.
func Started(runID string, id task.ID, at time.Time) Event {
	return Event{Kind: TaskStarted, RunID: runID, Task: id, Time: at}
}

// Finished builds a TaskFinished event from an outcome.
func Finished(runID string, o task.Outcome) Event {
	ev := Event{Kind: TaskFinished, RunID: runID, Task: o.ID, Status: o.Status, Time: o.FinishedAt}
	if o.Failure != nil {
		ev.Phase = o.Failure.Phase
		ev.ExitStatus = o.Failure.ExitStatus
		if o.Failure.Err != nil {
			ev.Error = o.Failure.Err.Error()
		}
	}
	return ev
}

// Completed builds the RunFinished event closing a run.
func Completed(runID string, summary inmemorystore.Summary, at time.Time) Event {
	return Event{Kind: RunFinished, RunID: runID, Time: at, Summary: &summary}
}

// Payload renders the event as a plain map for wire encoding.
func (e Event) Payload() map[string]any {
	p := map[string]any{
		"run_id": e.RunID,
		"time":   e.Time.UTC().Format(time.RFC3339Nano),
	}
	if e.Task != "" {
		p["task"] = string(e.Task)
	}
	if e.Status != "" {
		p["status"] = string(e.Status)
	}
	if e.Phase != "" {
		p["phase"] = string(e.Phase)
		p["exit_status"] = e.ExitStatus
	}
	if e.Error != "" {
		p["error"] = e.Error
	}
	if e.Summary != nil {
		p["summary"] = map[string]any{
			"total":     e.Summary.Total,
			"succeeded": e.Summary.Succeeded,
			"failed":    e.Summary.Failed,
		}
	}
	return p
}

// Publisher delivers events. Publish must be safe for concurrent use and must
// not block a worker for long.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
	Close() error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) {}

func (Noop) Close() error { return nil }

// Recorder keeps every event in memory. It is used by tests and by callers
// that want to inspect a run after the fact.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfKind returns the recorded events with kind k.
func (r *Recorder) OfKind(k Kind) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Kind == k {
			out = append(out, ev)
		}
	}
	return out
}
