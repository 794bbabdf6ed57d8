package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/backoff"
	"github.com/xraph/queuectl/middleware"
	"github.com/xraph/queuectl/queue"
	"github.com/xraph/queuectl/runner"
	"github.com/xraph/queuectl/worker"
)

func newWorkerCmd(cfg *queuectl.Config) *cobra.Command {
	var (
		workers      int
		pollInterval time.Duration
		backoffBase  float64
		timeout      time.Duration
		staleAfter   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run worker goroutines until interrupted",
		Long: `Run worker goroutines that claim and execute queued commands.

The process runs until SIGINT or SIGTERM, then stops claiming and waits up
to the shutdown timeout for in-flight jobs to finish. In-flight commands
are never killed by shutdown; only the job timeout bounds them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			if flags.Changed("workers") {
				cfg.Workers = workers
			}
			if flags.Changed("poll-interval") {
				cfg.PollInterval = pollInterval
			}
			if flags.Changed("backoff-base") {
				cfg.BackoffBase = backoffBase
			}
			if flags.Changed("timeout") {
				cfg.JobTimeout = timeout
			}
			if flags.Changed("stale-after") {
				cfg.StaleAfter = staleAfter
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			logger := slog.Default()
			eng := queue.New(s,
				queue.WithLogger(logger),
				queue.WithBackoff(backoff.NewExponential(cfg.BackoffBase)),
			)

			pool := worker.NewPool(eng,
				runner.New(runner.WithTimeout(cfg.JobTimeout)),
				worker.WithWorkers(cfg.Workers),
				worker.WithPollInterval(cfg.PollInterval),
				worker.WithStaleAfter(cfg.StaleAfter),
				worker.WithLogger(logger),
				worker.WithMiddleware(
					middleware.Recover(logger),
					middleware.Logging(logger),
				),
			)

			if err := pool.Start(ctx); err != nil {
				return err
			}

			<-ctx.Done()
			stop()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			return pool.Stop(shutdownCtx)
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "n", 1, "number of concurrent workers")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", time.Second, "idle sleep between claim attempts")
	cmd.Flags().Float64Var(&backoffBase, "backoff-base", 2, "base of the exponential retry delay in seconds")
	cmd.Flags().DurationVar(&timeout, "timeout", runner.DefaultTimeout, "hard wall-clock limit per execution")
	cmd.Flags().DurationVar(&staleAfter, "stale-after", 0, "release processing jobs older than this (0 disables)")
	return cmd
}
