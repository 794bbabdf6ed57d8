// Package middleware provides composable middleware for job execution.
// Middleware wraps the execution call synchronously and can modify it
// (recover from panics, log outcomes).
package middleware

import (
	"context"

	"github.com/xraph/queuectl/job"
	"github.com/xraph/queuectl/runner"
)

// Handler is the terminal function that executes a claimed job and reports
// how the child process fared.
type Handler func(ctx context.Context, j *job.Job) (*runner.Outcome, error)

// Middleware wraps a Handler with cross-cutting logic.
// It receives the current context, the job being executed, and the
// next handler to call. Middleware MUST call next to continue the chain
// (unless short-circuiting on error).
type Middleware func(ctx context.Context, j *job.Job, next Handler) (*runner.Outcome, error)

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover) executes as:
//
//	logging → recover → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) (*runner.Outcome, error) {
		// Build the chain from the end backwards.
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context, j *job.Job) (*runner.Outcome, error) {
				return mw(ctx, j, prev)
			}
		}
		return h(ctx, j)
	}
}
