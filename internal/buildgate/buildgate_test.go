package buildgate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/drawqueue/internal/executor"
	"github.com/vk/drawqueue/internal/testutil"
)

func TestEnsure_RunsBuildInProjectRoot(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx, _ := testutil.LogContext(t)
	launcher := &testutil.FakeLauncher{}
	gate := New(launcher, []string{"cargo", "build", "--release"}, "/project")

	// --- Act ---
	err := gate.Ensure(ctx)

	// --- Assert ---
	require.NoError(t, err)
	calls := launcher.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, executor.Command{Path: "cargo", Args: []string{"build", "--release"}, Dir: "/project"}, calls[0].Command)
}

func TestEnsure_NonZeroExitIsBuildError(t *testing.T) {
	t.Parallel()

	ctx, _ := testutil.LogContext(t)
	launcher := &testutil.FakeLauncher{ExitFor: func(executor.Command) int { return 101 }}

	err := New(launcher, []string{"cargo", "build"}, "").Ensure(ctx)

	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, 101, buildErr.ExitStatus)
	assert.Equal(t, `build "cargo build" exited with status 101`, err.Error())
}

func TestEnsure_LaunchFailureIsBuildError(t *testing.T) {
	t.Parallel()

	ctx, _ := testutil.LogContext(t)
	notFound := errors.New("executable file not found")
	launcher := &testutil.FakeLauncher{ErrFor: func(executor.Command) error { return notFound }}

	err := New(launcher, []string{"make"}, "").Ensure(ctx)

	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.ErrorIs(t, err, notFound)
	assert.Equal(t, -1, buildErr.ExitStatus)
}

func TestEnsure_EmptyCommandIsNoop(t *testing.T) {
	t.Parallel()

	launcher := &testutil.FakeLauncher{}

	err := New(launcher, nil, "").Ensure(context.Background())

	require.NoError(t, err)
	assert.Empty(t, launcher.Calls())
}
