package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/drawqueue/internal/config"
	"github.com/vk/drawqueue/internal/scheduler"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitFatal       = 1
	ExitUsage       = 2
	ExitTasksFailed = 3
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// ExitCode maps an error returned by a run to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var batch *scheduler.BatchError
	if errors.As(err, &batch) {
		return ExitTasksFailed
	}
	return ExitFatal
}

// Parse processes command-line arguments. It returns the merged
// configuration, a boolean indicating if the program should exit cleanly, or
// an ExitError.
func Parse(args []string, output io.Writer) (*config.Config, bool, error) {
	slog.Debug("CLI parser started.")
	defaults := config.Default()
	flagSet := flag.NewFlagSet("drawqueue", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
drawqueue - Incremental batch runner for the interpreter/drawer pipeline.

Every entry of the source directory without a counterpart in the output
directory is a pending task. If any task is pending the executable is built
once, then each task runs "interpreter" followed by "drawer" on a fixed pool
of workers.

Usage:
  drawqueue [options]

Exit codes:
  0 success or nothing to do, 1 fatal error, 2 usage error, 3 tasks failed

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to an HCL config file. Defaults to "+config.FileName+" in the project root, if present.")
	projectRootFlag := flagSet.String("project-root", defaults.ProjectRoot, "Directory all relative paths are resolved against.")
	sourceFlag := flagSet.String("source", defaults.SourceRoot, "Directory whose entries are the tasks.")
	outputFlag := flagSet.String("output", defaults.OutputRoot, "Directory whose entries mark produced tasks.")
	prefixFlag := flagSet.String("task-prefix", defaults.TaskPrefix, "Prefix prepended to the task name passed to the executable.")
	executableFlag := flagSet.String("executable", defaults.Executable, "Executable invoked with 'interpreter' and 'drawer'.")
	buildFlag := flagSet.String("build-command", strings.Join(defaults.BuildCommand, " "), "Command building the executable. Empty disables the build step.")
	workersFlag := flagSet.Int("workers", defaults.Workers, "Number of tasks run concurrently.")
	timeoutFlag := flagSet.Duration("task-timeout", defaults.TaskTimeout, "Upper bound for both phases of one task. 0 disables it.")
	allowFailuresFlag := flagSet.Bool("allow-task-failures", defaults.AllowTaskFailures, "Exit 0 even if some tasks failed.")
	reportFlag := flagSet.String("report", defaults.Report, "Write a YAML run report to this path.")
	eventsURLFlag := flagSet.String("events-url", defaults.EventsURL, "socket.io server receiving progress events. Empty disables events.")
	eventsNamespaceFlag := flagSet.String("events-namespace", defaults.EventsNamespace, "socket.io namespace for progress events.")
	healthPortFlag := flagSet.Int("healthcheck-port", defaults.HealthcheckPort, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", defaults.LogFormat, "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", defaults.LogLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	if flagSet.NArg() > 0 {
		return nil, false, &ExitError{Code: ExitUsage, Message: fmt.Sprintf("unexpected arguments: %s", strings.Join(flagSet.Args(), " "))}
	}
	slog.Debug("Arguments parsed successfully.")

	cfg := defaults
	cfg.ProjectRoot = *projectRootFlag

	path, found, err := config.Locate(cfg.ProjectRoot, *configFlag)
	if err != nil {
		return nil, false, &ExitError{Code: ExitFatal, Message: err.Error()}
	}
	if found {
		cfg, err = config.Load(context.Background(), path, cfg)
		if err != nil {
			return nil, false, &ExitError{Code: ExitFatal, Message: err.Error()}
		}
		slog.Debug("Config file loaded.", "path", path)
	}

	// Explicitly set flags win over the file.
	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "source":
			cfg.SourceRoot = *sourceFlag
		case "output":
			cfg.OutputRoot = *outputFlag
		case "task-prefix":
			cfg.TaskPrefix = *prefixFlag
		case "executable":
			cfg.Executable = *executableFlag
		case "build-command":
			cfg.BuildCommand = strings.Fields(*buildFlag)
		case "workers":
			cfg.Workers = *workersFlag
		case "task-timeout":
			cfg.TaskTimeout = *timeoutFlag
		case "allow-task-failures":
			cfg.AllowTaskFailures = *allowFailuresFlag
		case "report":
			cfg.Report = *reportFlag
		case "events-url":
			cfg.EventsURL = *eventsURLFlag
		case "events-namespace":
			cfg.EventsNamespace = *eventsNamespaceFlag
		case "healthcheck-port":
			cfg.HealthcheckPort = *healthPortFlag
		case "log-format":
			cfg.LogFormat = strings.ToLower(*logFormatFlag)
		case "log-level":
			cfg.LogLevel = strings.ToLower(*logLevelFlag)
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", cfg)
	return cfg, false, nil
}
