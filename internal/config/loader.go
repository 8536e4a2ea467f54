package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/drawqueue/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// fileRoot mirrors the accepted attributes and blocks of a configuration file.
// Every field is optional; nil means "keep the value from the layer below".
type fileRoot struct {
	SourceRoot        *string      `hcl:"source_root,optional"`
	OutputRoot        *string      `hcl:"output_root,optional"`
	TaskPrefix        *string      `hcl:"task_prefix,optional"`
	Executable        *string      `hcl:"executable,optional"`
	BuildCommand      *[]string    `hcl:"build_command,optional"`
	Workers           *int         `hcl:"workers,optional"`
	TaskTimeout       *string      `hcl:"task_timeout,optional"`
	AllowTaskFailures *bool        `hcl:"allow_task_failures,optional"`
	Report            *string      `hcl:"report,optional"`
	HealthcheckPort   *int         `hcl:"healthcheck_port,optional"`
	Events            *eventsBlock `hcl:"events,block"`
	Log               *logBlock    `hcl:"log,block"`
}

type eventsBlock struct {
	URL       string  `hcl:"url"`
	Namespace *string `hcl:"namespace,optional"`
}

type logBlock struct {
	Level  *string `hcl:"level,optional"`
	Format *string `hcl:"format,optional"`
}

// Locate returns the configuration file to load. An explicit path must exist;
// otherwise FileName in projectRoot is used when present. ok is false when
// there is nothing to load.
func Locate(projectRoot, explicit string) (path string, ok bool, err error) {
	if explicit != "" {
		path = filepath.Clean(explicit)
		if _, err := os.Stat(path); err != nil {
			return "", false, fmt.Errorf("config file: %w", err)
		}
		return path, true, nil
	}

	path = filepath.Join(projectRoot, FileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("config file: %w", err)
	}
	return path, true, nil
}

// Load parses the HCL file at path and applies its values on top of a copy of
// base. Expressions may reference project_root and call join, format, lower
// and upper.
func Load(ctx context.Context, path string, base *Config) (*Config, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading configuration file.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, diags)
	}

	root, err := filepath.Abs(base.ProjectRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve project root %q: %w", base.ProjectRoot, err)
	}

	var raw fileRoot
	diags = gohcl.DecodeBody(file.Body, evalContext(root), &raw)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, diags)
	}

	cfg, err := raw.apply(base.Clone())
	if err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	logger.Debug("Configuration file applied.", "path", path)
	return cfg, nil
}

func evalContext(projectRoot string) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"project_root": cty.StringVal(projectRoot),
		},
		Functions: map[string]function.Function{
			"join":   stdlib.JoinFunc,
			"format": stdlib.FormatFunc,
			"lower":  stdlib.LowerFunc,
			"upper":  stdlib.UpperFunc,
		},
	}
}

func (f *fileRoot) apply(cfg *Config) (*Config, error) {
	setString(&cfg.SourceRoot, f.SourceRoot)
	setString(&cfg.OutputRoot, f.OutputRoot)
	setString(&cfg.TaskPrefix, f.TaskPrefix)
	setString(&cfg.Executable, f.Executable)
	setString(&cfg.Report, f.Report)
	if f.BuildCommand != nil {
		cfg.BuildCommand = append([]string(nil), (*f.BuildCommand)...)
	}
	if f.Workers != nil {
		cfg.Workers = *f.Workers
	}
	if f.AllowTaskFailures != nil {
		cfg.AllowTaskFailures = *f.AllowTaskFailures
	}
	if f.HealthcheckPort != nil {
		cfg.HealthcheckPort = *f.HealthcheckPort
	}
	if f.TaskTimeout != nil {
		d, err := time.ParseDuration(*f.TaskTimeout)
		if err != nil {
			return nil, fmt.Errorf("task_timeout: %w", err)
		}
		cfg.TaskTimeout = d
	}
	if f.Events != nil {
		cfg.EventsURL = f.Events.URL
		setString(&cfg.EventsNamespace, f.Events.Namespace)
	}
	if f.Log != nil {
		setString(&cfg.LogLevel, f.Log.Level)
		setString(&cfg.LogFormat, f.Log.Format)
	}
	return cfg, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
