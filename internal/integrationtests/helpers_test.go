package integrationtests

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/drawqueue/internal/app"
	"github.com/vk/drawqueue/internal/config"
	"github.com/vk/drawqueue/internal/testutil"
)

// toolScript stands in for the real executable. It appends "<mode> <name>" to
// calls.log and creates the output entry in drawer mode. Marker files inside
// a source directory make a phase fail or hang.
const toolScript = `#!/bin/sh
mode="$1"
name="${2#repair_guide/}"
echo "$mode $name" >> calls.log
src="data/repair_guide/$name"
case "$mode" in
interpreter)
	[ -f "$src/fail_interpreter" ] && exit 7
	[ -f "$src/hang" ] && exec sleep 5
	;;
drawer)
	[ -f "$src/fail_drawer" ] && exit 9
	: > "cache/repair_guide/$name"
	;;
*)
	exit 64
	;;
esac
exit 0
`

// integrationResult holds the outcome of one app run.
type integrationResult struct {
	Err  error
	App  *app.App
	Logs *testutil.SafeBuffer
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

// writeProject creates a project root with the default layout, the fake tool
// and the given extra files. Keys ending in "/" create directories.
func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for _, dir := range []string{"data/repair_guide", "cache/repair_guide"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "tool.sh"), []byte(toolScript), 0o755))

	for name, content := range files {
		path := filepath.Join(root, name)
		if strings.HasSuffix(name, "/") {
			require.NoError(t, os.MkdirAll(path, 0o755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

// projectConfig returns a config for root that runs tool.sh and records each
// build in build.log.
func projectConfig(root string) *config.Config {
	cfg := config.Default()
	cfg.ProjectRoot = root
	cfg.Executable = "./tool.sh"
	cfg.BuildCommand = []string{"sh", "-c", "echo built >> build.log"}
	cfg.Workers = 3
	cfg.LogLevel = "debug"
	return cfg
}

func runApp(t *testing.T, cfg *config.Config) *integrationResult {
	t.Helper()

	logs := &testutil.SafeBuffer{}
	a, err := app.NewApp(logs, cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		if os.Getenv("DRAWQUEUE_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
		}
	})

	return &integrationResult{Err: a.Run(context.Background()), App: a, Logs: logs}
}

// readLines returns the lines of path, or nil if it does not exist.
func readLines(t *testing.T, path string) []string {
	t.Helper()

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}
