package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/drawqueue/internal/cli"
)

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// The "-h" (help) flag should cause cli.Parse to return `shouldExit=true`.
	args := []string{"-h"}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(context.Background(), out, args)

	// --- Assert ---
	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	args := []string{"--this-is-not-a-valid-flag"}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(context.Background(), out, args)

	// --- Assert ---
	require.Error(t, err, "run() should return an error when argument parsing fails")
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
	assert.Equal(t, cli.ExitUsage, cli.ExitCode(err))
}

func TestRun_NothingPending(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// Every source already has an output, so neither the build nor the
	// executable is needed and none of them exists.
	root := t.TempDir()
	for _, dir := range []string{"src/a", "out/a"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	}
	args := []string{"-project-root", root, "-source", "src", "-output", "out", "-build-command", "false"}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(context.Background(), out, args)

	// --- Assert ---
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Nothing to do")
}

func TestRun_MissingSourceIsFatal(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// Only the output root exists.
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "cache", "repair_guide"), 0o755))
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(context.Background(), out, []string{"-project-root", root})

	// --- Assert ---
	require.Error(t, err)
	assert.Equal(t, cli.ExitFatal, cli.ExitCode(err))
	assert.Contains(t, err.Error(), "scan source root")
	assert.NotContains(t, err.Error(), "output root")
}

func TestRun_FreshCheckoutNamesSourceRoot(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	out := &bytes.Buffer{}

	err := run(context.Background(), out, []string{"-project-root", root})

	require.Error(t, err)
	assert.Equal(t, cli.ExitFatal, cli.ExitCode(err))
	assert.Contains(t, err.Error(), "scan source root")
}
