package worker_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/xraph/queuectl/backoff"
	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
	"github.com/xraph/queuectl/middleware"
	"github.com/xraph/queuectl/queue"
	"github.com/xraph/queuectl/runner"
	"github.com/xraph/queuectl/store/memory"
	"github.com/xraph/queuectl/worker"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupTestPool wires a memory store, an engine with zero backoff so
// retries are immediately eligible, and a fast-polling pool.
func setupTestPool(t *testing.T, r *runner.Runner, opts ...worker.Option) (*worker.Pool, *queue.Engine, *memory.Store) {
	t.Helper()

	logger := discardLogger()
	s := memory.New()
	eng := queue.New(s,
		queue.WithLogger(logger),
		queue.WithBackoff(backoff.NewConstant(0)),
	)

	opts = append([]worker.Option{
		worker.WithPollInterval(10 * time.Millisecond),
		worker.WithLogger(logger),
	}, opts...)

	return worker.NewPool(eng, r, opts...), eng, s
}

// waitForState polls until the job reaches the wanted state or the test
// deadline expires.
func waitForState(t *testing.T, eng *queue.Engine, jobID id.JobID, want job.State) *job.Job {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		j, err := eng.Get(context.Background(), jobID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if j.State == want {
			return j
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for state %q, job stuck in %q", want, j.State)
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func stopPool(t *testing.T, pool *worker.Pool) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("stop pool: %v", err)
	}
}

func TestPool_StartStop(t *testing.T) {
	pool, _, _ := setupTestPool(t, runner.New(), worker.WithWorkers(2))

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	// Double start should be a no-op.
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("unexpected double-start error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}

	// Double stop should be a no-op.
	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("unexpected double-stop error: %v", err)
	}
}

func TestPool_ProcessesJob(t *testing.T) {
	pool, eng, _ := setupTestPool(t, runner.New())

	j, err := eng.Enqueue(context.Background(), "echo hello")
	if err != nil {
		t.Fatalf("enqueue error: %v", err)
	}

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}

	got := waitForState(t, eng, j.ID, job.StateCompleted)
	stopPool(t, pool)

	if got.Stdout == nil || *got.Stdout != "hello\n" {
		t.Errorf("stdout = %v, want %q", got.Stdout, "hello\n")
	}
	if got.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", got.Attempts)
	}
}

func TestPool_FailingJobRetriesThenDead(t *testing.T) {
	pool, eng, _ := setupTestPool(t, runner.New())

	j, err := eng.Enqueue(context.Background(), "echo oops >&2; exit 3", job.WithMaxRetries(2))
	if err != nil {
		t.Fatalf("enqueue error: %v", err)
	}

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}

	got := waitForState(t, eng, j.ID, job.StateDead)
	stopPool(t, pool)

	if got.Attempts != 2 {
		t.Errorf("attempts = %d, want the full retry budget of 2", got.Attempts)
	}
	if got.Stderr == nil || *got.Stderr != "oops\n" {
		t.Errorf("stderr = %v, want %q", got.Stderr, "oops\n")
	}
}

func TestPool_SilentFailureGetsFallbackMessage(t *testing.T) {
	pool, eng, _ := setupTestPool(t, runner.New())

	j, err := eng.Enqueue(context.Background(), "exit 7", job.WithMaxRetries(1))
	if err != nil {
		t.Fatalf("enqueue error: %v", err)
	}

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}

	got := waitForState(t, eng, j.ID, job.StateDead)
	stopPool(t, pool)

	if got.Stderr == nil || *got.Stderr != "exit status 7" {
		t.Errorf("stderr = %v, want %q", got.Stderr, "exit status 7")
	}
}

func TestPool_TimeoutMovesJobTowardDead(t *testing.T) {
	pool, eng, _ := setupTestPool(t, runner.New(runner.WithTimeout(100*time.Millisecond)))

	j, err := eng.Enqueue(context.Background(), "sleep 5", job.WithMaxRetries(1))
	if err != nil {
		t.Fatalf("enqueue error: %v", err)
	}

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}

	got := waitForState(t, eng, j.ID, job.StateDead)
	stopPool(t, pool)

	if got.Stderr == nil || !strings.Contains(*got.Stderr, "timed out after") {
		t.Errorf("stderr = %v, want a timeout message", got.Stderr)
	}
}

func TestPool_PanicInMiddlewareSettlesJob(t *testing.T) {
	explode := func(_ context.Context, _ *job.Job, _ middleware.Handler) (*runner.Outcome, error) {
		panic("middleware exploded")
	}
	pool, eng, _ := setupTestPool(t, runner.New(), worker.WithMiddleware(explode))

	j, err := eng.Enqueue(context.Background(), "echo unreachable", job.WithMaxRetries(1))
	if err != nil {
		t.Fatalf("enqueue error: %v", err)
	}

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}

	// The panic must not strand the claim; the job settles as a failure.
	got := waitForState(t, eng, j.ID, job.StateDead)
	stopPool(t, pool)

	if got.Stderr == nil || !strings.Contains(*got.Stderr, "panic") {
		t.Errorf("stderr = %v, want the recovered panic message", got.Stderr)
	}
}

func TestPool_GracefulShutdownDrainsInFlight(t *testing.T) {
	pool, eng, _ := setupTestPool(t, runner.New())

	j, err := eng.Enqueue(context.Background(), "sleep 0.3")
	if err != nil {
		t.Fatalf("enqueue error: %v", err)
	}

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}
	waitForState(t, eng, j.ID, job.StateProcessing)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("graceful stop: %v", err)
	}

	// Stop waited for the sleep to finish rather than killing it.
	got, err := eng.Get(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.State != job.StateCompleted {
		t.Errorf("state after drain = %q, want %q", got.State, job.StateCompleted)
	}
}

func TestPool_StopDeadlineLeavesJobFinishing(t *testing.T) {
	pool, eng, _ := setupTestPool(t, runner.New())

	j, err := eng.Enqueue(context.Background(), "sleep 1")
	if err != nil {
		t.Fatalf("enqueue error: %v", err)
	}

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}
	waitForState(t, eng, j.ID, job.StateProcessing)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := pool.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("stop error = %v, want context.DeadlineExceeded", err)
	}

	// The in-flight command was not killed; it completes in the background.
	waitForState(t, eng, j.ID, job.StateCompleted)
}

func TestPool_JanitorReleasesStrandedJob(t *testing.T) {
	pool, eng, s := setupTestPool(t, runner.New(),
		worker.WithStaleAfter(50*time.Millisecond),
	)

	// Plant a processing job last touched an hour ago, as if its worker
	// process had crashed mid-run.
	old := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	stranded := &job.Job{
		ID:         id.NewJobID(),
		Command:    "echo revived",
		State:      job.StateProcessing,
		Attempts:   1,
		MaxRetries: 3,
		CreatedAt:  old,
		UpdatedAt:  old,
	}
	if err := s.CreateJob(context.Background(), stranded); err != nil {
		t.Fatalf("create stranded job: %v", err)
	}

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}

	// The janitor returns it to pending and a worker then runs it.
	got := waitForState(t, eng, stranded.ID, job.StateCompleted)
	stopPool(t, pool)

	if got.Stdout == nil || *got.Stdout != "revived\n" {
		t.Errorf("stdout = %v, want %q", got.Stdout, "revived\n")
	}
}
