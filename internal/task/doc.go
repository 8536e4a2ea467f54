// Package task defines the unit of work the orchestrator schedules: an opaque
// task identifier, unordered sets of identifiers, the pending-set resolver, and
// the terminal outcome of running one task through its phases.
//
// Identifiers carry no structure beyond equality. Each identifier is expected
// to name a filesystem subtree that no other task reads or writes; the
// scheduler relies on that precondition and applies no cross-task locking.
package task
