//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
	"github.com/xraph/queuectl/store/postgres"
)

// startPostgres runs a throwaway Postgres container and returns its DSN.
func startPostgres(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("queuectl_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}
	return connStr
}

func setupTestStore(t *testing.T) *postgres.Store {
	t.Helper()

	ctx := context.Background()
	s, err := postgres.Open(ctx, startPostgres(t), postgres.WithLogger(slog.Default()))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func newJob(command string, state job.State, priority int) *job.Job {
	now := time.Now().UTC().Truncate(time.Second)
	return &job.Job{
		ID:         id.NewJobID(),
		Command:    command,
		State:      state,
		MaxRetries: 3,
		Priority:   priority,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// ──────────────────────────────────────────────────
// Lifecycle tests
// ──────────────────────────────────────────────────

func TestStore_OpenAndPing(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
	// Second migrate should be a no-op.
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}

func TestStore_CallerOwnedDB(t *testing.T) {
	ctx := context.Background()
	connStr := startPostgres(t)

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connStr)))
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() {
		_ = db.Close()
	})

	s := postgres.New(db, postgres.WithLogger(slog.Default()))
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// The store does not own the handle, so closing it must leave the
	// caller's connection usable.
	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("caller db unusable after store close: %v", err)
	}
}

// ──────────────────────────────────────────────────
// Job store tests
// ──────────────────────────────────────────────────

func TestJobStore_CreateAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	runAt := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	j := newJob("echo hello", job.StatePending, 5)
	j.RunAt = &runAt

	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("create job: %v", err)
	}

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Command != j.Command {
		t.Errorf("command = %q, want %q", got.Command, j.Command)
	}
	if got.Priority != 5 {
		t.Errorf("priority = %d, want 5", got.Priority)
	}
	if got.RunAt == nil || !got.RunAt.Equal(runAt) {
		t.Errorf("run_at = %v, want %v", got.RunAt, runAt)
	}
	if !got.CreatedAt.Equal(j.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, j.CreatedAt)
	}

	if err := s.CreateJob(ctx, j); !errors.Is(err, queuectl.ErrJobAlreadyExists) {
		t.Errorf("duplicate create error = %v, want ErrJobAlreadyExists", err)
	}
	if _, err := s.GetJob(ctx, id.NewJobID()); !errors.Is(err, queuectl.ErrJobNotFound) {
		t.Errorf("get missing error = %v, want ErrJobNotFound", err)
	}
}

func TestJobStore_ClaimOrdering(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)

	high := newJob("echo high", job.StatePending, 10)
	high.CreatedAt, high.UpdatedAt = base, base
	older := newJob("echo older", job.StatePending, 5)
	older.CreatedAt, older.UpdatedAt = base, base
	newer := newJob("echo newer", job.StatePending, 5)
	newer.CreatedAt, newer.UpdatedAt = base.Add(time.Minute), base.Add(time.Minute)

	// Same priority and created_at; the smaller ID wins.
	tieA := newJob("echo tie-a", job.StatePending, 0)
	tieA.CreatedAt, tieA.UpdatedAt = base, base
	tieB := newJob("echo tie-b", job.StatePending, 0)
	tieB.CreatedAt, tieB.UpdatedAt = base, base
	lo, hi := tieA, tieB
	if strings.Compare(lo.ID.String(), hi.ID.String()) > 0 {
		lo, hi = hi, lo
	}

	for _, j := range []*job.Job{newer, tieB, high, tieA, older} {
		if err := s.CreateJob(ctx, j); err != nil {
			t.Fatalf("create %q: %v", j.Command, err)
		}
	}

	want := []string{high.Command, older.Command, newer.Command, lo.Command, hi.Command}
	for i, cmd := range want {
		claimed, err := s.ClaimJob(ctx)
		if err != nil {
			t.Fatalf("claim %d: %v", i, err)
		}
		if claimed == nil {
			t.Fatalf("claim %d: got nil, want %q", i, cmd)
		}
		if claimed.Command != cmd {
			t.Errorf("claim %d: command = %q, want %q", i, claimed.Command, cmd)
		}
		if claimed.State != job.StateProcessing {
			t.Errorf("claim %d: state = %q, want %q", i, claimed.State, job.StateProcessing)
		}
		if claimed.Attempts != 1 {
			t.Errorf("claim %d: attempts = %d, want 1", i, claimed.Attempts)
		}
	}

	extra, err := s.ClaimJob(ctx)
	if err != nil {
		t.Fatalf("claim on empty queue: %v", err)
	}
	if extra != nil {
		t.Fatalf("claim on empty queue returned %v", extra.ID)
	}
}

func TestJobStore_ClaimSkipsFutureRunAt(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	future := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	scheduled := newJob("echo later", job.StatePending, 10)
	scheduled.RunAt = &future

	due := newJob("echo now", job.StatePending, 1)

	for _, j := range []*job.Job{scheduled, due} {
		if err := s.CreateJob(ctx, j); err != nil {
			t.Fatalf("create %q: %v", j.Command, err)
		}
	}

	claimed, err := s.ClaimJob(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed == nil || claimed.ID != due.ID {
		t.Fatalf("claimed %+v, want the due job despite its lower priority", claimed)
	}
	if claimed.RunAt != nil {
		t.Errorf("claimed run_at = %v, want nil", claimed.RunAt)
	}

	// Only the future job remains; nothing is eligible.
	second, err := s.ClaimJob(ctx)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if second != nil {
		t.Fatalf("claimed scheduled job %v before its run_at", second.ID)
	}
}

func TestJobStore_UpdatePartialFields(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	j := newJob("echo hello", job.StatePending, 0)
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("create job: %v", err)
	}

	stdout := "hello\n"
	if err := s.UpdateJob(ctx, j.ID, job.Update{State: job.StateCompleted, Stdout: &stdout}); err != nil {
		t.Fatalf("update job: %v", err)
	}

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.State != job.StateCompleted {
		t.Errorf("state = %q, want %q", got.State, job.StateCompleted)
	}
	if got.Stdout == nil || *got.Stdout != stdout {
		t.Errorf("stdout = %v, want %q", got.Stdout, stdout)
	}

	// A later update without output must not erase the captured stdout,
	// and a nil RunAt must clear any schedule.
	runAt := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	if err := s.UpdateJob(ctx, j.ID, job.Update{State: job.StatePending, RunAt: &runAt}); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if err := s.UpdateJob(ctx, j.ID, job.Update{State: job.StatePending}); err != nil {
		t.Fatalf("clear schedule: %v", err)
	}

	got, err = s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("get job after updates: %v", err)
	}
	if got.Stdout == nil || *got.Stdout != stdout {
		t.Errorf("stdout after partial update = %v, want %q preserved", got.Stdout, stdout)
	}
	if got.RunAt != nil {
		t.Errorf("run_at = %v, want cleared", got.RunAt)
	}

	err = s.UpdateJob(ctx, id.NewJobID(), job.Update{State: job.StateCompleted})
	if !errors.Is(err, queuectl.ErrJobNotFound) {
		t.Errorf("update missing error = %v, want ErrJobNotFound", err)
	}
}

func TestJobStore_Requeue(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	dead := newJob("echo dead", job.StateDead, 0)
	dead.Attempts = 3
	stderr := "boom"
	dead.Stderr = &stderr

	pending := newJob("echo pending", job.StatePending, 0)

	for _, j := range []*job.Job{dead, pending} {
		if err := s.CreateJob(ctx, j); err != nil {
			t.Fatalf("create %q: %v", j.Command, err)
		}
	}

	tests := []struct {
		name  string
		jobID id.JobID
		want  bool
	}{
		{"dead job requeues", dead.ID, true},
		{"pending job does not", pending.ID, false},
		{"missing job does not", id.NewJobID(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.RequeueJob(ctx, tt.jobID)
			if err != nil {
				t.Fatalf("requeue: %v", err)
			}
			if got != tt.want {
				t.Errorf("requeue = %v, want %v", got, tt.want)
			}
		})
	}

	revived, err := s.GetJob(ctx, dead.ID)
	if err != nil {
		t.Fatalf("get revived job: %v", err)
	}
	if revived.State != job.StatePending {
		t.Errorf("state = %q, want %q", revived.State, job.StatePending)
	}
	if revived.Attempts != 0 {
		t.Errorf("attempts = %d, want 0", revived.Attempts)
	}
	if revived.Stderr != nil {
		t.Errorf("stderr = %v, want cleared", revived.Stderr)
	}
}

func TestJobStore_ListAndCount(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	var pending []*job.Job
	for i := 0; i < 3; i++ {
		j := newJob("echo pending", job.StatePending, 0)
		j.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		j.UpdatedAt = j.CreatedAt
		pending = append(pending, j)
	}
	completed := newJob("echo done", job.StateCompleted, 0)

	// Insert out of creation order; listing must still be oldest first.
	for _, j := range []*job.Job{pending[2], completed, pending[0], pending[1]} {
		if err := s.CreateJob(ctx, j); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := s.ListJobsByState(ctx, job.StatePending, job.ListOpts{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d pending jobs, want 3", len(got))
	}
	for i, j := range got {
		if j.ID != pending[i].ID {
			t.Errorf("list[%d] = %v, want %v", i, j.ID, pending[i].ID)
		}
	}

	limited, err := s.ListJobsByState(ctx, job.StatePending, job.ListOpts{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("list with limit: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != pending[1].ID {
		t.Fatalf("list limit/offset = %v, want only %v", limited, pending[1].ID)
	}

	total, err := s.CountJobs(ctx, job.CountOpts{})
	if err != nil {
		t.Fatalf("count all: %v", err)
	}
	if total != 4 {
		t.Errorf("count all = %d, want 4", total)
	}

	donecount, err := s.CountJobs(ctx, job.CountOpts{State: job.StateCompleted})
	if err != nil {
		t.Fatalf("count completed: %v", err)
	}
	if donecount != 1 {
		t.Errorf("count completed = %d, want 1", donecount)
	}
}

func TestJobStore_ReleaseStale(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	stale := newJob("echo stale", job.StatePending, 10)
	fresh := newJob("echo fresh", job.StatePending, 0)
	for _, j := range []*job.Job{stale, fresh} {
		if err := s.CreateJob(ctx, j); err != nil {
			t.Fatalf("create %q: %v", j.Command, err)
		}
	}
	for i := 0; i < 2; i++ {
		if _, err := s.ClaimJob(ctx); err != nil {
			t.Fatalf("claim %d: %v", i, err)
		}
	}

	// Backdate one claim to look abandoned.
	_, err := s.DB().ExecContext(ctx,
		"UPDATE jobs SET updated_at = NOW() - INTERVAL '10 minutes' WHERE id = ?",
		stale.ID.String(),
	)
	if err != nil {
		t.Fatalf("backdate: %v", err)
	}

	released, err := s.ReleaseStaleJobs(ctx, time.Now().UTC().Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("release stale: %v", err)
	}
	if released != 1 {
		t.Fatalf("released = %d, want 1", released)
	}

	got, err := s.GetJob(ctx, stale.ID)
	if err != nil {
		t.Fatalf("get released job: %v", err)
	}
	if got.State != job.StatePending {
		t.Errorf("released state = %q, want %q", got.State, job.StatePending)
	}
	if got.Attempts != 1 {
		t.Errorf("released attempts = %d, want 1 kept", got.Attempts)
	}

	untouched, err := s.GetJob(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("get fresh job: %v", err)
	}
	if untouched.State != job.StateProcessing {
		t.Errorf("fresh state = %q, want %q", untouched.State, job.StateProcessing)
	}
}

func TestJobStore_ConcurrentClaimsExactlyOnce(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	const total = 30
	for i := 0; i < total; i++ {
		if err := s.CreateJob(ctx, newJob("echo n", job.StatePending, i%5)); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	var (
		mu     sync.Mutex
		claims = make(map[id.JobID]int)
		count  atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < 8; w++ {
		g.Go(func() error {
			for {
				j, err := s.ClaimJob(gctx)
				if err != nil {
					return err
				}
				if j == nil {
					// SKIP LOCKED can report empty while rivals hold
					// rows; only stop once everything is accounted for.
					if count.Load() >= total {
						return nil
					}
					continue
				}
				count.Add(1)
				mu.Lock()
				claims[j.ID]++
				mu.Unlock()
			}
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent claims: %v", err)
	}

	if len(claims) != total {
		t.Fatalf("claimed %d distinct jobs, want %d", len(claims), total)
	}
	for jobID, n := range claims {
		if n != 1 {
			t.Errorf("job %v claimed %d times", jobID, n)
		}
	}
}
