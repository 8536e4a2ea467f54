package inmemorystore

import (
	"sort"
	"sync"

	"github.com/vk/drawqueue/internal/task"
)

// State is the progress of one task within the current run.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Summary counts tasks by state.
type Summary struct {
	Total     int `json:"total" yaml:"total"`
	Pending   int `json:"pending" yaml:"pending"`
	Running   int `json:"running" yaml:"running"`
	Succeeded int `json:"succeeded" yaml:"succeeded"`
	Failed    int `json:"failed" yaml:"failed"`
}

// Store keeps per-task state in sync.Maps. Each key is written by exactly one
// worker, so per-key contention never occurs.
type Store struct {
	states   sync.Map // task.ID -> State
	outcomes sync.Map // task.ID -> task.Outcome
}

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// Register marks every id as pending. Ids that already have a state keep it.
func (s *Store) Register(ids ...task.ID) {
	for _, id := range ids {
		s.states.LoadOrStore(id, StatePending)
	}
}

// MarkRunning records that a worker picked up id.
func (s *Store) MarkRunning(id task.ID) {
	s.states.Store(id, StateRunning)
}

// Record stores the terminal outcome of a task.
func (s *Store) Record(o task.Outcome) {
	s.outcomes.Store(o.ID, o)
	if o.Succeeded() {
		s.states.Store(o.ID, StateSucceeded)
	} else {
		s.states.Store(o.ID, StateFailed)
	}
}

// State returns the state of id and whether it is known to the store.
func (s *Store) State(id task.ID) (State, bool) {
	v, ok := s.states.Load(id)
	if !ok {
		return "", false
	}
	return v.(State), true
}

// States returns a snapshot of every known task and its state.
func (s *Store) States() map[task.ID]State {
	out := make(map[task.ID]State)
	s.states.Range(func(k, v any) bool {
		out[k.(task.ID)] = v.(State)
		return true
	})
	return out
}

// Outcome returns the recorded outcome of id, if it finished.
func (s *Store) Outcome(id task.ID) (task.Outcome, bool) {
	v, ok := s.outcomes.Load(id)
	if !ok {
		return task.Outcome{}, false
	}
	return v.(task.Outcome), true
}

// Outcomes returns every recorded outcome ordered by task identifier.
func (s *Store) Outcomes() []task.Outcome {
	var out []task.Outcome
	s.outcomes.Range(func(_, v any) bool {
		out = append(out, v.(task.Outcome))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Summary counts the tasks known to the store by state.
func (s *Store) Summary() Summary {
	var sum Summary
	s.states.Range(func(_, v any) bool {
		sum.Total++
		switch v.(State) {
		case StatePending:
			sum.Pending++
		case StateRunning:
			sum.Running++
		case StateSucceeded:
			sum.Succeeded++
		case StateFailed:
			sum.Failed++
		}
		return true
	})
	return sum
}
