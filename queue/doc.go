// Package queue implements the engine that applies the job state machine
// over a store.
//
// The [Engine] owns every legal transition:
//
//	Enqueue  → pending
//	Claim    → processing (attempts+1, atomic pick inside the store)
//	Complete → completed
//	Fail     → pending with a backoff delay, or dead once the attempt
//	           budget is spent
//	Requeue  → pending (from dead only)
//
// Workers call Claim, Complete, and Fail; producers call Enqueue and the
// inspection helpers (Get, List, Count, Stats). All timestamps the engine
// writes are UTC at whole-second precision.
package queue
