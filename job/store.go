package job

import (
	"context"
	"time"

	"github.com/xraph/queuectl/id"
)

// ListOpts controls pagination for job list queries.
type ListOpts struct {
	// Limit is the maximum number of jobs to return. Zero means no limit.
	Limit int
	// Offset is the number of jobs to skip.
	Offset int
}

// CountOpts controls filtering for job count queries.
type CountOpts struct {
	// State filters by job state. Empty means all states.
	State State
}

// Update is a partial update applied to an existing job. Stdout and Stderr
// are written only when non-nil, so a transition that captured no output
// leaves the previous capture in place. RunAt is written unconditionally;
// nil clears the column.
type Update struct {
	State  State
	Stdout *string
	Stderr *string
	RunAt  *time.Time
}

// Store defines the persistence contract for jobs.
type Store interface {
	// CreateJob persists a new job in pending state.
	CreateJob(ctx context.Context, j *Job) error

	// ClaimJob atomically claims the single most eligible pending job:
	// run_at absent or due, highest priority first, then earliest
	// created_at, then smallest ID. The claimed job is set to processing
	// with attempts incremented and run_at cleared, and is returned in its
	// post-claim form. Returns (nil, nil) when no job is eligible or the
	// store is transiently contended.
	ClaimJob(ctx context.Context) (*Job, error)

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// UpdateJob applies a partial update to an existing job and refreshes
	// its updated_at timestamp.
	UpdateJob(ctx context.Context, jobID id.JobID, u Update) error

	// RequeueJob resets a dead job to pending with attempts, run_at, stdout
	// and stderr cleared. Returns true only if the job existed and was dead;
	// false is a no-op, not an error.
	RequeueJob(ctx context.Context, jobID id.JobID) (bool, error)

	// ListJobsByState returns jobs in the given state, oldest first.
	ListJobsByState(ctx context.Context, state State, opts ListOpts) ([]*Job, error)

	// CountJobs returns the number of jobs matching the given options.
	CountJobs(ctx context.Context, opts CountOpts) (int64, error)

	// ReleaseStaleJobs returns processing jobs whose updated_at is older
	// than cutoff to pending, keeping their attempt count. It reports how
	// many rows were released.
	ReleaseStaleJobs(ctx context.Context, cutoff time.Time) (int64, error)
}
