// Package worker executes claimed jobs: an Executor settles a single job
// through middleware and the command runner, and a Pool manages the
// concurrent polling goroutines that feed it.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/queuectl/job"
	"github.com/xraph/queuectl/middleware"
	"github.com/xraph/queuectl/queue"
	"github.com/xraph/queuectl/runner"
)

// Executor runs one claimed job through the middleware chain and the
// runner, then reports the outcome to the engine as a Complete or Fail
// transition.
type Executor struct {
	engine *queue.Engine
	runner *runner.Runner
	mw     middleware.Middleware
	logger *slog.Logger
}

// NewExecutor creates an Executor. Middleware wrap the runner invocation
// outermost first.
func NewExecutor(engine *queue.Engine, r *runner.Runner, logger *slog.Logger, mws ...middleware.Middleware) *Executor {
	return &Executor{
		engine: engine,
		runner: r,
		mw:     middleware.Chain(mws...),
		logger: logger,
	}
}

// Execute runs a claimed job and settles it. Exit 0 reports Complete with
// the captured output. A non-zero exit, a timeout, or a launch failure
// reports Fail, which schedules a retry or moves the job to dead once its
// budget is spent. A panic anywhere in the chain is recovered and settled
// as a Fail too, so a claimed job is never left stranded in processing.
// The returned error reports settlement problems, not how the command fared.
func (e *Executor) Execute(ctx context.Context, j *job.Job) error {
	out, err := e.run(ctx, j)

	switch {
	case err != nil:
		return e.engine.Fail(ctx, j, err.Error())
	case out.TimedOut:
		return e.engine.Fail(ctx, j, fmt.Sprintf("timed out after %s", e.runner.Timeout()))
	case out.ExitCode != 0:
		stderr := out.Stderr
		if stderr == "" {
			stderr = fmt.Sprintf("exit status %d", out.ExitCode)
		}
		return e.engine.Fail(ctx, j, stderr)
	default:
		return e.engine.Complete(ctx, j, out.Stdout, out.Stderr)
	}
}

// run invokes the middleware chain around the runner, converting a panic
// into an error so the caller's Fail path applies.
func (e *Executor) run(ctx context.Context, j *job.Job) (out *runner.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("job execution panicked",
				slog.String("job_id", j.ID.String()),
				slog.Any("panic", r),
			)
			out = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return e.mw(ctx, j, func(ctx context.Context, j *job.Job) (*runner.Outcome, error) {
		return e.runner.Execute(ctx, j.Command)
	})
}
