// Package inventory enumerates the source items and the already-produced
// items of a run. Both listings are flat: only the immediate children of each
// root are considered.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/drawqueue/internal/ctxlog"
	"github.com/vk/drawqueue/internal/fsutil"
	"github.com/vk/drawqueue/internal/task"
	"golang.org/x/sync/errgroup"
)

// Role names which of the two roots a listing came from.
type Role string

const (
	RoleSource Role = "source"
	RoleOutput Role = "output"
)

// ScanError reports a root that is missing or unreadable. It is fatal for the
// whole run because no pending set can be computed without both listings.
type ScanError struct {
	Role Role
	Root string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s root %q: %v", e.Role, e.Root, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// Inventory is the snapshot taken at scan time. It is never refreshed during
// a run.
type Inventory struct {
	Source   task.Set
	Produced task.Set
}

// Pending returns the tasks present in the source root but not in the output
// root.
func (inv Inventory) Pending() task.Set {
	return task.Resolve(inv.Source, inv.Produced)
}

// Scanner lists the two roots.
type Scanner struct {
	SourceRoot string
	OutputRoot string
}

// New creates a Scanner for the given roots. Paths are used as given; the
// caller resolves them against the project root.
func New(sourceRoot, outputRoot string) *Scanner {
	return &Scanner{SourceRoot: sourceRoot, OutputRoot: outputRoot}
}

// Scan reads both roots concurrently and returns their listings. It has no
// side effects. When a root cannot be listed the error holds one *ScanError
// per failed root, source first.
func (s *Scanner) Scan(ctx context.Context) (Inventory, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Scanning inventory.", "source_root", s.SourceRoot, "output_root", s.OutputRoot)

	var (
		inv            Inventory
		srcErr, outErr error
		g              errgroup.Group
	)
	g.Go(func() error {
		inv.Source, srcErr = list(ctx, RoleSource, s.SourceRoot)
		return nil
	})
	g.Go(func() error {
		inv.Produced, outErr = list(ctx, RoleOutput, s.OutputRoot)
		return nil
	})
	_ = g.Wait()

	// Both listings always finish so a missing source root is reported even
	// when the output root is missing too. The source error comes first.
	if err := errors.Join(srcErr, outErr); err != nil {
		return Inventory{}, err
	}

	logger.Debug("Inventory scanned.", "source_count", inv.Source.Len(), "produced_count", inv.Produced.Len())
	return inv, nil
}

func list(ctx context.Context, role Role, root string) (task.Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ScanError{Role: role, Root: root, Err: err}
	}
	names, err := fsutil.ListEntries(root)
	if err != nil {
		return nil, &ScanError{Role: role, Root: root, Err: err}
	}
	set := make(task.Set, len(names))
	for _, name := range names {
		set.Add(task.ID(name))
	}
	return set, nil
}
