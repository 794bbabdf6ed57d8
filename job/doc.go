// Package job defines the job entity, state machine, and store interface.
//
// # Job Entity
//
// A [Job] represents one shell command to run. It progresses through a
// state machine:
//
//	pending → processing → completed
//	pending → processing → pending (retry, run_at pushed into the future)
//	pending → processing → dead
//	dead → pending (manual requeue)
//
// Fields of note:
//   - Priority: higher values are claimed first
//   - MaxRetries / Attempts: controls the execution budget
//   - RunAt: earliest time the job may be claimed (nil = immediately)
//   - Stdout / Stderr: last captured process output
//
// # Store
//
// [Store] is the persistence contract. Its central operation is
// [Store.ClaimJob], an atomic claim that marks the winning job processing
// and increments its attempt count, so no two concurrent workers ever
// receive the same job. Backends live in store/sqlite, store/postgres,
// and store/memory.
package job
