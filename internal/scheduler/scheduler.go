package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/vk/drawqueue/internal/ctxlog"
	"github.com/vk/drawqueue/internal/events"
	"github.com/vk/drawqueue/internal/inmemorystore"
	"github.com/vk/drawqueue/internal/task"
)

// DefaultConcurrency is the pool size used when none is configured.
const DefaultConcurrency = 8

// TaskRunner runs one task to completion and reports its outcome.
type TaskRunner interface {
	Run(ctx context.Context, id task.ID) task.Outcome
}

// Scheduler owns the worker pool.
type Scheduler struct {
	runner      TaskRunner
	concurrency int
	store       *inmemorystore.Store
	publisher   events.Publisher
	runID       string
	now         func() time.Time
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithStore records task progress into store.
func WithStore(store *inmemorystore.Store) Option {
	return func(s *Scheduler) {
		if store != nil {
			s.store = store
		}
	}
}

// WithPublisher sends task start/finish events to p.
func WithPublisher(p events.Publisher) Option {
	return func(s *Scheduler) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithRunID tags published events with the run identifier.
func WithRunID(id string) Option {
	return func(s *Scheduler) { s.runID = id }
}

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a scheduler with a pool of concurrency workers. Values below 1
// fall back to DefaultConcurrency.
func New(runner TaskRunner, concurrency int, opts ...Option) *Scheduler {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	s := &Scheduler{
		runner:      runner,
		concurrency: concurrency,
		store:       inmemorystore.New(),
		publisher:   events.Noop{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Concurrency returns the configured pool size.
func (s *Scheduler) Concurrency() int {
	return s.concurrency
}

// Store returns the progress store the scheduler writes to.
func (s *Scheduler) Store() *inmemorystore.Store {
	return s.store
}

// Schedule runs every task in pending exactly once and blocks until all of
// them have an outcome. The pool has Concurrency() workers, or one per task
// when fewer tasks are pending, since a worker with an empty queue would only
// exit.
func (s *Scheduler) Schedule(ctx context.Context, pending task.Set) *Report {
	logger := ctxlog.FromContext(ctx)
	report := &Report{StartedAt: s.now()}

	ids := pending.Slice()
	if len(ids) == 0 {
		report.FinishedAt = report.StartedAt
		return report
	}
	s.store.Register(ids...)

	queue := make(chan task.ID, len(ids))
	for _, id := range ids {
		queue <- id
	}
	close(queue)

	workers := s.concurrency
	if workers > len(ids) {
		workers = len(ids)
	}

	results := make(chan task.Outcome, len(ids))
	var wg sync.WaitGroup
	logger.Debug("Starting worker pool.", "workers", workers, "tasks", len(ids))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID, queue, results)
		}(i)
	}

	wg.Wait()
	close(results)

	for o := range results {
		report.add(o)
	}
	report.FinishedAt = s.now()
	report.sort()

	logger.Debug("Worker pool drained.", "succeeded", report.Succeeded, "failed", report.Failed)
	return report
}

// worker is the processing loop for a single pool slot.
func (s *Scheduler) worker(ctx context.Context, workerID int, queue <-chan task.ID, results chan<- task.Outcome) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for id := range queue {
		taskCtx := ctxlog.With(ctx, "workerID", workerID)
		workerLogger := ctxlog.FromContext(taskCtx).With("task", string(id))

		if ctx.Err() != nil {
			workerLogger.Warn("Context canceled, task not started.")
		} else {
			workerLogger.Info("▶️ Starting task")
		}

		s.store.MarkRunning(id)
		s.publisher.Publish(taskCtx, events.Started(s.runID, id, s.now()))

		outcome := s.runner.Run(taskCtx, id)
		outcome.ID = id

		s.store.Record(outcome)
		s.publisher.Publish(taskCtx, events.Finished(s.runID, outcome))
		results <- outcome
	}

	logger.Debug("Worker finished.", "workerID", workerID)
}
