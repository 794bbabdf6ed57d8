// Package queuectl provides a durable, multi-worker job queue for shell
// commands. Jobs carry a priority and an optional earliest start time;
// workers claim them atomically, execute them as OS child processes under a
// hard timeout, and retry failures with jittered exponential backoff until
// the retry budget is spent, at which point the job lands in the dead state
// for inspection and manual requeue.
//
// Queuectl is designed as a library, not a service. Import it, open a
// store, and run workers in-process or through the bundled CLI.
//
// # Quick Start
//
//	st, err := sqlite.Open(ctx, "queuectl.db")
//	eng := queue.New(st)
//	j, err := eng.Enqueue(ctx, "echo hello", job.WithPriority(5))
//
// # Architecture
//
// The store is a small interface over a single jobs table. The SQLite and
// Postgres backends implement the claim as one atomic statement, so
// concurrent workers never hold the same job at the same time.
//
// All job IDs use TypeID: type-prefixed, K-sortable, UUIDv7-based
// identifiers, so ID order recovers insertion order within a second.
package queuectl
