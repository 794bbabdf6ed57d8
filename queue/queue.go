package queue

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/backoff"
	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
)

// Engine applies the job state machine over a job.Store. It owns every
// legal transition; workers and the CLI never touch the store directly.
type Engine struct {
	store   job.Store
	backoff backoff.Strategy
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithBackoff sets the retry backoff strategy.
// If not set, backoff.Default() (jittered exponential, base 2) is used.
func WithBackoff(b backoff.Strategy) Option {
	return func(e *Engine) {
		e.backoff = b
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock overrides the time source. Tests use it to pin timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an Engine over the given store.
func New(store job.Store, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		backoff: backoff.Default(),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// clock returns the current time in the queue's canonical form:
// UTC, whole seconds.
func (e *Engine) clock() time.Time {
	return e.now().UTC().Truncate(time.Second)
}

// Enqueue validates and persists a new pending job.
func (e *Engine) Enqueue(ctx context.Context, command string, opts ...job.Option) (*job.Job, error) {
	if strings.TrimSpace(command) == "" {
		return nil, queuectl.ErrEmptyCommand
	}

	jobOpts := job.DefaultOptions()
	for _, opt := range opts {
		opt(&jobOpts)
	}

	now := e.clock()
	j := &job.Job{
		ID:         id.NewJobID(),
		Command:    command,
		State:      job.StatePending,
		Attempts:   0,
		MaxRetries: jobOpts.MaxRetries,
		Priority:   jobOpts.Priority,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if !jobOpts.RunAt.IsZero() {
		runAt := jobOpts.RunAt.UTC().Truncate(time.Second)
		j.RunAt = &runAt
	}

	if err := e.store.CreateJob(ctx, j); err != nil {
		return nil, err
	}

	e.logger.Debug("job enqueued",
		slog.String("job_id", j.ID.String()),
		slog.Int("priority", j.Priority),
		slog.Int("max_retries", j.MaxRetries),
	)

	return j, nil
}

// Claim atomically claims the most eligible pending job: due run_at,
// highest priority, oldest first. It returns (nil, nil) when nothing is
// eligible; callers sleep their poll interval before trying again.
func (e *Engine) Claim(ctx context.Context) (*job.Job, error) {
	return e.store.ClaimJob(ctx)
}

// Complete transitions a processing job to completed, recording both output
// streams. Empty strings are captured values and overwrite prior output.
func (e *Engine) Complete(ctx context.Context, j *job.Job, stdout, stderr string) error {
	if err := e.store.UpdateJob(ctx, j.ID, job.Update{
		State:  job.StateCompleted,
		Stdout: &stdout,
		Stderr: &stderr,
	}); err != nil {
		return err
	}

	j.State = job.StateCompleted
	j.Stdout = &stdout
	j.Stderr = &stderr
	j.RunAt = nil
	j.UpdatedAt = e.clock()

	e.logger.Info("job completed",
		slog.String("job_id", j.ID.String()),
		slog.Int("attempts", j.Attempts),
	)

	return nil
}

// Fail routes a failed execution. The job goes dead once its attempt count
// has reached the retry budget; otherwise it returns to pending with run_at
// pushed out by the backoff strategy. j is mutated to reflect the outcome.
func (e *Engine) Fail(ctx context.Context, j *job.Job, stderr string) error {
	now := e.clock()

	if j.Attempts >= j.MaxRetries {
		if err := e.store.UpdateJob(ctx, j.ID, job.Update{
			State:  job.StateDead,
			Stderr: &stderr,
		}); err != nil {
			return err
		}

		j.State = job.StateDead
		j.Stderr = &stderr
		j.RunAt = nil
		j.UpdatedAt = now

		e.logger.Warn("job dead after exhausting retries",
			slog.String("job_id", j.ID.String()),
			slog.Int("attempts", j.Attempts),
			slog.Int("max_retries", j.MaxRetries),
		)

		return nil
	}

	delay := e.backoff.Delay(j.Attempts)
	runAt := now.Add(delay).Truncate(time.Second)

	if err := e.store.UpdateJob(ctx, j.ID, job.Update{
		State:  job.StatePending,
		Stderr: &stderr,
		RunAt:  &runAt,
	}); err != nil {
		return err
	}

	j.State = job.StatePending
	j.Stderr = &stderr
	j.RunAt = &runAt
	j.UpdatedAt = now

	e.logger.Info("job scheduled for retry",
		slog.String("job_id", j.ID.String()),
		slog.Int("attempt", j.Attempts),
		slog.Int("max_retries", j.MaxRetries),
		slog.Duration("delay", delay),
	)

	return nil
}

// Requeue resets a dead job to pending with a fresh attempt budget.
// The boolean mirrors the store conditional: false means the job was
// missing or not dead, which is a no-op rather than an error.
func (e *Engine) Requeue(ctx context.Context, jobID id.JobID) (bool, error) {
	ok, err := e.store.RequeueJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	if ok {
		e.logger.Info("job requeued", slog.String("job_id", jobID.String()))
	}
	return ok, nil
}

// Get retrieves a job by ID.
func (e *Engine) Get(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return e.store.GetJob(ctx, jobID)
}

// List returns jobs in the given state, oldest first.
func (e *Engine) List(ctx context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	return e.store.ListJobsByState(ctx, state, opts)
}

// Count returns the number of jobs in the given state.
func (e *Engine) Count(ctx context.Context, state job.State) (int64, error) {
	return e.store.CountJobs(ctx, job.CountOpts{State: state})
}

// Stats returns per-state job counts.
func (e *Engine) Stats(ctx context.Context) (map[job.State]int64, error) {
	stats := make(map[job.State]int64, len(job.States()))
	for _, st := range job.States() {
		n, err := e.store.CountJobs(ctx, job.CountOpts{State: st})
		if err != nil {
			return nil, err
		}
		stats[st] = n
	}
	return stats, nil
}

// ReleaseStale returns processing jobs untouched for longer than olderThan
// to pending. Attempts are kept, so the interrupted claim still counts
// toward the budget.
func (e *Engine) ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := e.clock().Add(-olderThan)
	n, err := e.store.ReleaseStaleJobs(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		e.logger.Warn("released stale processing jobs",
			slog.Int64("count", n),
			slog.Duration("older_than", olderThan),
		)
	}
	return n, nil
}
