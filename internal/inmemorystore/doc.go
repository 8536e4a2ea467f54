// Package inmemorystore provides an ephemeral, thread-safe record of the
// progress of one run: the state of every dispatched task and its terminal
// outcome once known.
//
// Nothing here is persisted. Whether a task is "produced" is decided only by
// the output root on disk; the store exists so that the status endpoint, the
// run report, and the final summary can observe a run while workers write
// to it concurrently.
package inmemorystore
