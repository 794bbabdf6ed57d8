// Package middleware provides composable middleware for job execution.
//
// A [Middleware] is a function that wraps the execution handler. Middleware
// are composed into a chain using [Chain] and applied around each claimed
// job. They are applied right-to-left: the first middleware in the slice is
// the outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging] logs job id, command, duration, and outcome at each execution
//   - [Recover] catches panics and converts them to errors
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, j *job.Job, next middleware.Handler) (*runner.Outcome, error) {
//	        // pre-processing
//	        out, err := next(ctx, j)
//	        // post-processing
//	        return out, err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting.
package middleware
