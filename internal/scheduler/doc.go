// Package scheduler dispatches the pending tasks of a run onto a fixed-size
// pool of workers.
//
// # How It Works
//
// The pending set is partitioned once: every task identifier is placed on a
// buffered queue that is closed before the workers start, so no identifier
// can be handed to two workers. Each worker pulls one identifier at a time
// and stays occupied for the task's entire two-phase run before taking the
// next one, which bounds the number of in-flight tasks by the pool size.
//
// Tasks are independent. The scheduler imposes no ordering between them and
// takes no locks on their behalf; it relies on every task touching a disjoint
// part of the filesystem. A failed task is recorded and the worker moves on
// (fail-soft), so one failure never blocks or cancels another task.
//
// Cancelling the context stops new phases from launching. Tasks still queued
// are drained and recorded as failed with the context error, so every pending
// task still ends with exactly one outcome.
package scheduler
