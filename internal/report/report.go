// Package report writes a human-readable YAML record of a finished run. The
// file is diagnostic only; it is never read back to decide pending work.
package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vk/drawqueue/internal/inmemorystore"
	"github.com/vk/drawqueue/internal/task"
	"gopkg.in/yaml.v3"
)

// Document is the on-disk shape of a run report.
type Document struct {
	RunID      string                `yaml:"run_id"`
	StartedAt  time.Time             `yaml:"started_at"`
	FinishedAt time.Time             `yaml:"finished_at"`
	Duration   string                `yaml:"duration"`
	SourceRoot string                `yaml:"source_root"`
	OutputRoot string                `yaml:"output_root"`
	Built      bool                  `yaml:"built"`
	Summary    inmemorystore.Summary `yaml:"summary"`
	Tasks      []TaskEntry           `yaml:"tasks,omitempty"`
}

// TaskEntry is the report line for one task.
type TaskEntry struct {
	ID         string `yaml:"id"`
	Status     string `yaml:"status"`
	Phase      string `yaml:"phase,omitempty"`
	ExitStatus *int   `yaml:"exit_status,omitempty"`
	Error      string `yaml:"error,omitempty"`
	Duration   string `yaml:"duration"`
}

// Entries converts outcomes to report lines, preserving their order.
func Entries(outcomes []task.Outcome) []TaskEntry {
	entries := make([]TaskEntry, 0, len(outcomes))
	for _, o := range outcomes {
		e := TaskEntry{
			ID:       string(o.ID),
			Status:   string(o.Status),
			Duration: o.Duration().Round(time.Millisecond).String(),
		}
		if f := o.Failure; f != nil {
			status := f.ExitStatus
			e.Phase = string(f.Phase)
			e.ExitStatus = &status
			if f.Err != nil {
				e.Error = f.Err.Error()
			}
		}
		entries = append(entries, e)
	}
	return entries
}

// Write encodes doc to path, replacing any previous report atomically.
func Write(path string, doc *Document) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*.yaml")
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Read decodes a report written by Write.
func Read(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", path, err)
	}
	return &doc, nil
}
