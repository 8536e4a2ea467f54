package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/drawqueue/internal/executor"
	"github.com/vk/drawqueue/internal/task"
	"github.com/vk/drawqueue/internal/testutil"
)

func TestRun_BothPhasesInOrder(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx, _ := testutil.LogContext(t)
	launcher := &testutil.FakeLauncher{}
	runner := New(launcher, "target/release/main", WithDir("/project"), WithTaskPrefix("repair_guide/"))

	// --- Act ---
	outcome := runner.Run(ctx, "page1")

	// --- Assert ---
	assert.Equal(t, task.Succeeded, outcome.Status)
	assert.Nil(t, outcome.Failure)
	assert.False(t, outcome.FinishedAt.Before(outcome.StartedAt))

	calls := launcher.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, executor.Command{Path: "target/release/main", Args: []string{"interpreter", "repair_guide/page1"}, Dir: "/project"}, calls[0].Command)
	assert.Equal(t, executor.Command{Path: "target/release/main", Args: []string{"drawer", "repair_guide/page1"}, Dir: "/project"}, calls[1].Command)
}

func TestRun_InterpreterFailureSkipsDrawer(t *testing.T) {
	t.Parallel()

	ctx, _ := testutil.LogContext(t)
	launcher := &testutil.FakeLauncher{ExitFor: testutil.FailWhen("interpreter", "x", 1)}

	outcome := New(launcher, "main").Run(ctx, "x")

	assert.Equal(t, task.Failed, outcome.Status)
	require.NotNil(t, outcome.Failure)
	assert.Equal(t, task.PhaseInterpreter, outcome.Failure.Phase)
	assert.Equal(t, 1, outcome.Failure.ExitStatus)
	assert.Equal(t, task.ID("x"), outcome.Failure.Task)
	assert.Empty(t, launcher.CallsFor("drawer"), "drawer must never launch after a failed interpreter")
}

func TestRun_DrawerFailureRecordsDrawerStatus(t *testing.T) {
	t.Parallel()

	ctx, _ := testutil.LogContext(t)
	launcher := &testutil.FakeLauncher{ExitFor: testutil.FailWhen("drawer", "y", 7)}

	outcome := New(launcher, "main").Run(ctx, "y")

	assert.Equal(t, task.Failed, outcome.Status)
	require.NotNil(t, outcome.Failure)
	assert.Equal(t, task.PhaseDrawer, outcome.Failure.Phase)
	assert.Equal(t, 7, outcome.Failure.ExitStatus)
	assert.Len(t, launcher.CallsFor("interpreter"), 1)
	assert.Len(t, launcher.CallsFor("drawer"), 1)
}

func TestRun_LaunchFailureIsPhaseFailure(t *testing.T) {
	t.Parallel()

	ctx, _ := testutil.LogContext(t)
	missing := errors.New("no such file")
	launcher := &testutil.FakeLauncher{ErrFor: func(executor.Command) error { return missing }}

	outcome := New(launcher, "main").Run(ctx, "z")

	require.NotNil(t, outcome.Failure)
	assert.Equal(t, task.PhaseInterpreter, outcome.Failure.Phase)
	assert.Equal(t, task.LaunchFailed, outcome.Failure.ExitStatus)
	assert.ErrorIs(t, outcome.Err(), missing)
	assert.Empty(t, launcher.CallsFor("drawer"))
}

func TestRun_TimeoutFailsTask(t *testing.T) {
	t.Parallel()

	ctx, _ := testutil.LogContext(t)
	launcher := &testutil.FakeLauncher{Delay: time.Second}

	start := time.Now()
	outcome := New(launcher, "main", WithTimeout(50*time.Millisecond)).Run(ctx, "slow")

	assert.Less(t, time.Since(start), 900*time.Millisecond)
	assert.Equal(t, task.Failed, outcome.Status)
	require.NotNil(t, outcome.Failure)
	assert.Equal(t, task.PhaseInterpreter, outcome.Failure.Phase)
	assert.ErrorIs(t, outcome.Err(), context.DeadlineExceeded)
	assert.Contains(t, outcome.Err().Error(), "timed out")
	assert.Empty(t, launcher.CallsFor("drawer"))
}

func TestRun_CanceledContextLaunchesNothing(t *testing.T) {
	t.Parallel()

	launcher := &testutil.FakeLauncher{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := New(launcher, "main").Run(ctx, "a")

	assert.Equal(t, task.Failed, outcome.Status)
	assert.ErrorIs(t, outcome.Err(), context.Canceled)
	assert.Empty(t, launcher.Calls())
}

func TestRun_UsesInjectedClock(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ticks := 0
	clock := func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * time.Second)
	}

	outcome := New(&testutil.FakeLauncher{}, "main", WithClock(clock)).Run(context.Background(), "a")

	assert.Equal(t, time.Second, outcome.Duration())
}

func TestArgument(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "p", New(nil, "main").Argument("p"))
	assert.Equal(t, "repair_guide/p", New(nil, "main", WithTaskPrefix("repair_guide/")).Argument("p"))
}
