// Package memory provides a fully in-memory job store.
// Safe for concurrent access. Intended for unit testing and development;
// nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
)

// Ensure Store implements the job store contract at compile time.
var _ job.Store = (*Store)(nil)

// Store keeps all jobs in a map guarded by a single lock, which makes every
// operation, including the claim, trivially atomic.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*job.Job
	now  func() time.Time
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs: make(map[string]*job.Job),
		now:  time.Now,
	}
}

// clock returns the current time in canonical form: UTC, whole seconds.
func (m *Store) clock() time.Time {
	return m.now().UTC().Truncate(time.Second)
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Job Store
// ──────────────────────────────────────────────────

// CreateJob persists a new job in pending state.
func (m *Store) CreateJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, exists := m.jobs[key]; exists {
		return queuectl.ErrJobAlreadyExists
	}
	m.jobs[key] = copyJob(j)
	return nil
}

// ClaimJob atomically claims the most eligible pending job: due run_at,
// highest priority first, then earliest created_at, then smallest ID.
// Returns (nil, nil) when nothing is eligible.
func (m *Store) ClaimJob(_ context.Context) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()

	// Collect candidates.
	candidates := make([]*job.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if j.State != job.StatePending {
			continue
		}
		if j.RunAt != nil && j.RunAt.After(now) {
			continue
		}
		candidates = append(candidates, j)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Sort: priority DESC, created_at ASC, ID ASC.
	sort.Slice(candidates, func(i, k int) bool {
		if candidates[i].Priority != candidates[k].Priority {
			return candidates[i].Priority > candidates[k].Priority
		}
		if !candidates[i].CreatedAt.Equal(candidates[k].CreatedAt) {
			return candidates[i].CreatedAt.Before(candidates[k].CreatedAt)
		}
		return candidates[i].ID.String() < candidates[k].ID.String()
	})

	winner := candidates[0]
	winner.State = job.StateProcessing
	winner.Attempts++
	winner.RunAt = nil
	winner.UpdatedAt = now

	// Return a copy so callers can mutate without racing with the store.
	return copyJob(winner), nil
}

// GetJob retrieves a job by ID.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, queuectl.ErrJobNotFound
	}
	return copyJob(j), nil
}

// UpdateJob applies a partial update: stdout/stderr only when captured,
// run_at unconditionally, updated_at always refreshed.
func (m *Store) UpdateJob(_ context.Context, jobID id.JobID, u job.Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return queuectl.ErrJobNotFound
	}

	j.State = u.State
	if u.Stdout != nil {
		s := *u.Stdout
		j.Stdout = &s
	}
	if u.Stderr != nil {
		s := *u.Stderr
		j.Stderr = &s
	}
	if u.RunAt != nil {
		t := u.RunAt.UTC().Truncate(time.Second)
		j.RunAt = &t
	} else {
		j.RunAt = nil
	}
	j.UpdatedAt = m.clock()
	return nil
}

// RequeueJob resets a dead job to pending. Returns false when the job is
// missing or not dead.
func (m *Store) RequeueJob(_ context.Context, jobID id.JobID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok || j.State != job.StateDead {
		return false, nil
	}

	j.State = job.StatePending
	j.Attempts = 0
	j.RunAt = nil
	j.Stdout = nil
	j.Stderr = nil
	j.UpdatedAt = m.clock()
	return true, nil
}

// ListJobsByState returns jobs in the given state, oldest first.
func (m *Store) ListJobsByState(_ context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*job.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if j.State != state {
			continue
		}
		result = append(result, copyJob(j))
	}

	// Sort by CreatedAt, then ID, for deterministic output.
	sort.Slice(result, func(i, k int) bool {
		if !result[i].CreatedAt.Equal(result[k].CreatedAt) {
			return result[i].CreatedAt.Before(result[k].CreatedAt)
		}
		return result[i].ID.String() < result[k].ID.String()
	})

	// Apply offset / limit.
	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// CountJobs returns the number of jobs matching the given options.
func (m *Store) CountJobs(_ context.Context, opts job.CountOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, j := range m.jobs {
		if opts.State != "" && j.State != opts.State {
			continue
		}
		count++
	}
	return count, nil
}

// ReleaseStaleJobs returns processing jobs whose updated_at is older than
// cutoff to pending, keeping their attempt count.
func (m *Store) ReleaseStaleJobs(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	var count int64
	for _, j := range m.jobs {
		if j.State != job.StateProcessing {
			continue
		}
		if !j.UpdatedAt.Before(cutoff) {
			continue
		}
		j.State = job.StatePending
		j.UpdatedAt = now
		count++
	}
	return count, nil
}

// copyJob returns a deep enough copy: pointer fields get fresh values so
// neither side can see the other's later writes.
func copyJob(j *job.Job) *job.Job {
	cp := *j
	if j.RunAt != nil {
		t := *j.RunAt
		cp.RunAt = &t
	}
	if j.Stdout != nil {
		s := *j.Stdout
		cp.Stdout = &s
	}
	if j.Stderr != nil {
		s := *j.Stderr
		cp.Stderr = &s
	}
	return &cp
}
