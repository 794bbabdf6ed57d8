// Package sqlite implements job.Store on a single SQLite file via the Bun
// query builder and the CGO-free modernc driver. Suitable for CLI tools,
// embedded deployments, and single-host workers.
//
// Open owns the connection it creates and applies the WAL, synchronous, and
// busy-timeout pragmas the claim path relies on:
//
//	store, err := sqlite.Open(ctx, "queuectl.db")
//	if err != nil { ... }
//	defer store.Close()
//
// New wraps an existing *bun.DB instead; the caller keeps ownership and
// Close becomes a no-op.
package sqlite
