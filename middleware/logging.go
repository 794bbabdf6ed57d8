package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/queuectl/job"
	"github.com/xraph/queuectl/runner"
)

// Logging returns middleware that logs job start and outcome.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) (*runner.Outcome, error) {
		logger.Info("job started",
			slog.String("job_id", j.ID.String()),
			slog.String("command", j.Command),
			slog.Int("attempt", j.Attempts),
		)

		start := time.Now()
		out, err := next(ctx, j)
		elapsed := time.Since(start)

		switch {
		case err != nil:
			logger.Error("job could not start",
				slog.String("job_id", j.ID.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		case out.TimedOut:
			logger.Warn("job timed out",
				slog.String("job_id", j.ID.String()),
				slog.Duration("elapsed", elapsed),
			)
		case out.ExitCode != 0:
			logger.Warn("job exited non-zero",
				slog.String("job_id", j.ID.String()),
				slog.Int("exit_code", out.ExitCode),
				slog.Duration("elapsed", elapsed),
			)
		default:
			logger.Info("job completed",
				slog.String("job_id", j.ID.String()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return out, err
	}
}
