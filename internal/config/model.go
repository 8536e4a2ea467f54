package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/vk/drawqueue/internal/fsutil"
)

// FileName is the configuration file picked up from the project root when no
// explicit path is given.
const FileName = "drawqueue.hcl"

// Config is the complete set of knobs for one run.
type Config struct {
	ProjectRoot string

	SourceRoot   string
	OutputRoot   string
	TaskPrefix   string
	Executable   string
	BuildCommand []string

	Workers           int
	TaskTimeout       time.Duration
	AllowTaskFailures bool

	Report          string
	EventsURL       string
	EventsNamespace string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

// Default returns the layout of the repair guide project.
func Default() *Config {
	return &Config{
		ProjectRoot:     ".",
		SourceRoot:      filepath.Join("data", "repair_guide"),
		OutputRoot:      filepath.Join("cache", "repair_guide"),
		TaskPrefix:      "repair_guide/",
		Executable:      filepath.Join("target", "release", "main"),
		BuildCommand:    []string{"cargo", "build", "--release"},
		Workers:         8,
		EventsNamespace: "/",
		LogFormat:       "text",
		LogLevel:        "info",
	}
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.BuildCommand = append([]string(nil), c.BuildCommand...)
	return &out
}

// Path resolves p against the project root.
func (c *Config) Path(p string) string {
	return fsutil.Resolve(c.ProjectRoot, p)
}

// Resolved returns a copy with the project root made absolute and every path
// field resolved against it. The executable is resolved only when it contains
// a path separator, so a bare command name is still looked up on PATH.
func (c *Config) Resolved() (*Config, error) {
	root, err := filepath.Abs(c.ProjectRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve project root %q: %w", c.ProjectRoot, err)
	}

	out := c.Clone()
	out.ProjectRoot = root
	out.SourceRoot = out.Path(c.SourceRoot)
	out.OutputRoot = out.Path(c.OutputRoot)
	if strings.ContainsAny(c.Executable, `/\`) {
		out.Executable = out.Path(c.Executable)
	}
	if c.Report != "" {
		out.Report = out.Path(c.Report)
	}
	return out, nil
}

// Validate checks the configuration for values no run can work with.
func (c *Config) Validate() error {
	var errs []error
	if c.SourceRoot == "" {
		errs = append(errs, errors.New("source_root must not be empty"))
	}
	if c.OutputRoot == "" {
		errs = append(errs, errors.New("output_root must not be empty"))
	}
	if c.Executable == "" {
		errs = append(errs, errors.New("executable must not be empty"))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.TaskTimeout < 0 {
		errs = append(errs, fmt.Errorf("task_timeout must not be negative, got %s", c.TaskTimeout))
	}
	if c.HealthcheckPort < 0 || c.HealthcheckPort > 65535 {
		errs = append(errs, fmt.Errorf("healthcheck_port out of range: %d", c.HealthcheckPort))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q: must be 'text' or 'json'", c.LogFormat))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log level %q: must be 'debug', 'info', 'warn', or 'error'", c.LogLevel))
	}
	return errors.Join(errs...)
}
