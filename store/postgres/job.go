package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
)

// CreateJob persists a new job in pending state.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	m := toJobModel(j)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		if isDuplicateKey(err) {
			return queuectl.ErrJobAlreadyExists
		}
		return fmt.Errorf("queuectl/postgres: create job: %w", err)
	}
	return nil
}

// ClaimJob atomically claims the most eligible pending job. Uses SELECT FOR
// UPDATE SKIP LOCKED so concurrent claimers never block on or take the same
// row. Eligibility and the claim timestamp both come from the database
// clock, which keeps multi-host deployments honest about run_at.
func (s *Store) ClaimJob(ctx context.Context) (*job.Job, error) {
	var models []jobModel
	_, err := s.db.NewRaw(`
		WITH claimed AS (
			UPDATE jobs
			SET state = ?0, attempts = attempts + 1, run_at = NULL,
			    updated_at = date_trunc('second', NOW())
			WHERE id IN (
				SELECT id FROM jobs
				WHERE state = ?1 AND (run_at IS NULL OR run_at <= NOW())
				ORDER BY priority DESC, created_at ASC, id ASC
				FOR UPDATE SKIP LOCKED
				LIMIT 1
			)
			RETURNING *
		)
		SELECT * FROM claimed`,
		string(job.StateProcessing), string(job.StatePending),
	).Exec(ctx, &models)
	if err != nil {
		return nil, fmt.Errorf("queuectl/postgres: claim job: %w", err)
	}
	if len(models) == 0 {
		return nil, nil
	}
	return fromJobModel(&models[0])
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	m := new(jobModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", jobID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, queuectl.ErrJobNotFound
		}
		return nil, fmt.Errorf("queuectl/postgres: get job: %w", err)
	}
	return fromJobModel(m)
}

// UpdateJob applies a partial update. State and updated_at are always
// written; stdout and stderr only when non-nil; run_at unconditionally,
// so a nil RunAt clears any leftover schedule.
func (s *Store) UpdateJob(ctx context.Context, jobID id.JobID, u job.Update) error {
	q := s.db.NewUpdate().
		TableExpr("jobs").
		Set("state = ?", string(u.State)).
		Set("stdout = COALESCE(?, stdout)", u.Stdout).
		Set("stderr = COALESCE(?, stderr)", u.Stderr).
		Set("updated_at = date_trunc('second', NOW())")

	if u.RunAt != nil {
		q = q.Set("run_at = ?", u.RunAt.UTC().Truncate(time.Second))
	} else {
		q = q.Set("run_at = NULL")
	}

	res, err := q.Where("id = ?", jobID.String()).Exec(ctx)
	if err != nil {
		return fmt.Errorf("queuectl/postgres: update job: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return queuectl.ErrJobNotFound
	}
	return nil
}

// RequeueJob returns a dead job to pending with a fresh retry budget. The
// state check lives in the WHERE clause, so requeueing a job in any other
// state (or a missing one) reports false without an error.
func (s *Store) RequeueJob(ctx context.Context, jobID id.JobID) (bool, error) {
	res, err := s.db.NewUpdate().
		TableExpr("jobs").
		Set("state = ?", string(job.StatePending)).
		Set("attempts = 0").
		Set("run_at = NULL").
		Set("stdout = NULL").
		Set("stderr = NULL").
		Set("updated_at = date_trunc('second', NOW())").
		Where("id = ?", jobID.String()).
		Where("state = ?", string(job.StateDead)).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("queuectl/postgres: requeue job: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	return rows > 0, nil
}

// ListJobsByState returns jobs matching the given state, oldest first.
func (s *Store) ListJobsByState(ctx context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	var models []jobModel
	q := s.db.NewSelect().Model(&models).
		Where("state = ?", string(state)).
		OrderExpr("created_at ASC, id ASC")

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("queuectl/postgres: list jobs by state: %w", err)
	}

	jobs := make([]*job.Job, 0, len(models))
	for i := range models {
		j, convErr := fromJobModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("queuectl/postgres: list jobs convert: %w", convErr)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// CountJobs returns the number of jobs matching the given options.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	q := s.db.NewSelect().TableExpr("jobs")

	if opts.State != "" {
		q = q.Where("state = ?", string(opts.State))
	}

	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("queuectl/postgres: count jobs: %w", err)
	}
	return int64(count), nil
}

// ReleaseStaleJobs returns processing jobs untouched since before cutoff to
// pending. Attempts are kept: the interrupted claim still spent one.
func (s *Store) ReleaseStaleJobs(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.NewUpdate().
		TableExpr("jobs").
		Set("state = ?", string(job.StatePending)).
		Set("updated_at = date_trunc('second', NOW())").
		Where("state = ?", string(job.StateProcessing)).
		Where("updated_at < ?", cutoff.UTC().Truncate(time.Second)).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("queuectl/postgres: release stale jobs: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	return rows, nil
}
