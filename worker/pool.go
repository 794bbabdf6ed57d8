package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/middleware"
	"github.com/xraph/queuectl/queue"
	"github.com/xraph/queuectl/runner"
)

// Pool manages a fixed set of worker goroutines that poll the engine for
// eligible jobs and execute them. Shutdown is cooperative: the stop flag is
// checked between jobs only, so an in-flight command always runs to its own
// completion or timeout.
type Pool struct {
	engine       *queue.Engine
	executor     *Executor
	workers      int
	pollInterval time.Duration
	staleAfter   time.Duration
	mws          []middleware.Middleware
	workerID     id.WorkerID
	logger       *slog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// Option configures a Pool.
type Option func(*Pool)

// WithWorkers sets the number of concurrent worker goroutines.
func WithWorkers(n int) Option {
	return func(p *Pool) { p.workers = n }
}

// WithPollInterval sets how long an idle worker sleeps between claim
// attempts.
func WithPollInterval(d time.Duration) Option {
	return func(p *Pool) { p.pollInterval = d }
}

// WithStaleAfter enables the janitor loop: processing jobs untouched for
// longer than d are returned to pending on each sweep, recovering work
// stranded by a crashed worker process. The threshold must comfortably
// exceed the job timeout, or live workers will have their jobs stolen
// mid-run. Zero disables the janitor.
func WithStaleAfter(d time.Duration) Option {
	return func(p *Pool) { p.staleAfter = d }
}

// WithMiddleware installs middleware around job execution, outermost first.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(p *Pool) { p.mws = mws }
}

// WithLogger sets the pool logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) { p.logger = logger }
}

// NewPool creates a worker pool that executes claimed commands through the
// given runner. By default it runs a single worker polling every second.
func NewPool(engine *queue.Engine, r *runner.Runner, opts ...Option) *Pool {
	p := &Pool{
		engine:       engine,
		workers:      1,
		pollInterval: time.Second,
		workerID:     id.NewWorkerID(),
		logger:       slog.Default(),
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.executor = NewExecutor(engine, r, p.logger, p.mws...)
	return p
}

// WorkerID returns the pool's unique worker identifier.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Start launches the worker goroutines. It returns immediately and is a
// no-op while the pool is already running.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("workers", p.workers),
	)

	for i := range p.workers {
		p.wg.Add(1)
		go p.workLoop(i + 1)
	}

	if p.staleAfter > 0 {
		p.wg.Add(1)
		go p.janitorLoop()
	}

	return nil
}

// Stop signals the workers to finish their current job and exit. In-flight
// commands are never killed. If ctx expires before the drain completes,
// Stop returns ctx.Err() and the remaining jobs finish in the background.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID.String()))

	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped", slog.String("worker_id", p.workerID.String()))
		return nil
	case <-ctx.Done():
		p.logger.Warn("worker pool drain exceeded deadline, in-flight jobs finishing in background")
		return ctx.Err()
	}
}

// workLoop is run by each worker goroutine. Claims and executions use a
// background context so shutdown never cancels a job mid-run.
func (p *Pool) workLoop(slot int) {
	defer p.wg.Done()

	logger := p.logger.With(slog.Int("slot", slot))
	logger.Debug("worker loop started")

	for {
		select {
		case <-p.stopCh:
			logger.Debug("worker loop stopped")
			return
		default:
		}

		j, err := p.engine.Claim(context.Background())
		if err != nil {
			logger.Error("claim error", slog.String("error", err.Error()))
			p.sleep()
			continue
		}
		if j == nil {
			p.sleep()
			continue
		}

		if execErr := p.executor.Execute(context.Background(), j); execErr != nil {
			logger.Error("job settlement failed",
				slog.String("job_id", j.ID.String()),
				slog.String("error", execErr.Error()),
			)
		}
	}
}

// janitorLoop periodically releases processing jobs whose last touch is
// older than the stale threshold.
func (p *Pool) janitorLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.staleAfter)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			released, err := p.engine.ReleaseStale(context.Background(), p.staleAfter)
			if err != nil {
				p.logger.Error("release stale jobs error", slog.String("error", err.Error()))
				continue
			}
			if released > 0 {
				p.logger.Info("released stale jobs", slog.Int64("count", released))
			}
		}
	}
}

func (p *Pool) sleep() {
	select {
	case <-time.After(p.pollInterval):
	case <-p.stopCh:
	}
}
