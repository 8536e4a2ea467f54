package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/drawqueue/internal/events"
	"github.com/vk/drawqueue/internal/inmemorystore"
	"github.com/vk/drawqueue/internal/pipeline"
	"github.com/vk/drawqueue/internal/task"
	"github.com/vk/drawqueue/internal/testutil"
)

// countingRunner tracks how many tasks are inside Run at once.
type countingRunner struct {
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
	mu       sync.Mutex
	runs     map[task.ID]int
}

func (r *countingRunner) Run(_ context.Context, id task.ID) task.Outcome {
	cur := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		p := r.peak.Load()
		if cur <= p || r.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	time.Sleep(r.delay)

	r.mu.Lock()
	if r.runs == nil {
		r.runs = make(map[task.ID]int)
	}
	r.runs[id]++
	r.mu.Unlock()
	return task.Outcome{ID: id, Status: task.Succeeded}
}

func idsN(n int) task.Set {
	s := task.NewSet()
	for i := 0; i < n; i++ {
		s.Add(task.ID(fmt.Sprintf("t%02d", i)))
	}
	return s
}

func TestSchedule_EveryTaskExactlyOnceWithinPoolBound(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx, _ := testutil.LogContext(t)
	runner := &countingRunner{delay: 20 * time.Millisecond}
	pending := idsN(12)
	sched := New(runner, 3)

	// --- Act ---
	report := sched.Schedule(ctx, pending)

	// --- Assert ---
	require.Equal(t, 12, report.Total())
	assert.Equal(t, 12, report.Succeeded)
	assert.Zero(t, report.Failed)
	assert.NoError(t, report.Err())
	for id := range pending {
		assert.Equal(t, 1, runner.runs[id], "task %s must run exactly once", id)
	}
	assert.LessOrEqual(t, int(runner.peak.Load()), 3)
	assert.Greater(t, int(runner.peak.Load()), 1, "independent tasks should overlap")
}

func TestSchedule_PhaseCountsThroughPipeline(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx, _ := testutil.LogContext(t)
	launcher := &testutil.FakeLauncher{
		Delay:   5 * time.Millisecond,
		ExitFor: testutil.FailWhen("interpreter", "t03", 1),
	}
	runner := pipeline.New(launcher, "main")
	sched := New(runner, 4)

	// --- Act ---
	report := sched.Schedule(ctx, idsN(10))

	// --- Assert ---
	assert.Len(t, launcher.CallsFor("interpreter"), 10)
	assert.Len(t, launcher.CallsFor("drawer"), 9)
	assert.NotContains(t, launcher.Targets("drawer"), "t03")
	assert.LessOrEqual(t, launcher.PeakConcurrency(), 4)
	assert.Equal(t, 9, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
}

func TestSchedule_FailureDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	ctx, _ := testutil.LogContext(t)
	launcher := &testutil.FakeLauncher{ExitFor: testutil.FailWhen("interpreter", "x", 1)}
	sched := New(pipeline.New(launcher, "main"), 1)

	report := sched.Schedule(ctx, task.NewSet("x", "y", "z"))

	require.Equal(t, 3, report.Total())
	byID := map[task.ID]task.Outcome{}
	for _, o := range report.Outcomes {
		byID[o.ID] = o
	}
	assert.Equal(t, task.Failed, byID["x"].Status)
	assert.Equal(t, task.Succeeded, byID["y"].Status)
	assert.Equal(t, task.Succeeded, byID["z"].Status)

	err := report.Err()
	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, "1 of 3 tasks failed: x (interpreter: 1)", err.Error())
	pf, ok := task.AsPhaseFailure(err)
	require.True(t, ok)
	assert.Equal(t, task.ID("x"), pf.Task)
}

func TestSchedule_EmptyPendingRunsNothing(t *testing.T) {
	t.Parallel()

	runner := &countingRunner{}
	report := New(runner, 8).Schedule(context.Background(), task.NewSet())

	assert.Zero(t, report.Total())
	assert.NoError(t, report.Err())
	assert.Empty(t, runner.runs)
}

func TestSchedule_RecordsProgressAndEvents(t *testing.T) {
	t.Parallel()

	ctx, _ := testutil.LogContext(t)
	store := inmemorystore.New()
	rec := &events.Recorder{}
	launcher := &testutil.FakeLauncher{ExitFor: testutil.FailWhen("drawer", "b", 2)}
	sched := New(pipeline.New(launcher, "main"), 2, WithStore(store), WithPublisher(rec), WithRunID("run-7"))

	sched.Schedule(ctx, task.NewSet("a", "b"))

	assert.Equal(t, inmemorystore.Summary{Total: 2, Succeeded: 1, Failed: 1}, store.Summary())
	assert.Len(t, rec.OfKind(events.TaskStarted), 2)
	finished := rec.OfKind(events.TaskFinished)
	require.Len(t, finished, 2)
	sort.Slice(finished, func(i, j int) bool { return finished[i].Task < finished[j].Task })
	assert.Equal(t, "run-7", finished[0].RunID)
	assert.Equal(t, task.Succeeded, finished[0].Status)
	assert.Equal(t, task.PhaseDrawer, finished[1].Phase)
	assert.Equal(t, 2, finished[1].ExitStatus)
}

func TestSchedule_CanceledContextStillYieldsOneOutcomePerTask(t *testing.T) {
	t.Parallel()

	launcher := &testutil.FakeLauncher{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := New(pipeline.New(launcher, "main"), 2).Schedule(ctx, idsN(5))

	assert.Equal(t, 5, report.Total())
	assert.Equal(t, 5, report.Failed)
	assert.Empty(t, launcher.Calls())
	assert.True(t, errors.Is(report.Err(), context.Canceled))
}

func TestNew_DefaultConcurrency(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultConcurrency, New(&countingRunner{}, 0).Concurrency())
	assert.Equal(t, 3, New(&countingRunner{}, 3).Concurrency())
	assert.NotNil(t, New(&countingRunner{}, 1).Store())
}

func TestReport_Duration(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var calls atomic.Int64
	clock := func() time.Time {
		return base.Add(time.Duration(calls.Add(1)) * time.Minute)
	}

	report := New(&countingRunner{}, 2, WithClock(clock)).Schedule(context.Background(), idsN(2))

	assert.Equal(t, 2, report.Total())
	assert.Greater(t, report.Duration(), time.Duration(0))
}
