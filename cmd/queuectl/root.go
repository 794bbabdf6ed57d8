package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/backoff"
	"github.com/xraph/queuectl/queue"
	"github.com/xraph/queuectl/store/sqlite"
)

// newRootCmd builds the command tree. Configuration is resolved in three
// layers: compiled defaults, then QUEUECTL_* environment variables, then
// explicitly set flags.
func newRootCmd() *cobra.Command {
	var (
		cfg     = queuectl.DefaultConfig()
		dbPath  string
		verbose bool
	)

	root := &cobra.Command{
		Use:           "queuectl",
		Short:         "Durable multi-worker job queue for shell commands",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := envconfig.Process(cmd.Context(), &cfg); err != nil {
				return fmt.Errorf("load config from environment: %w", err)
			}
			if cmd.Root().PersistentFlags().Changed("db") {
				cfg.DBPath = dbPath
			}
			setupLogging(verbose)
			return cfg.Validate()
		},
	}

	root.PersistentFlags().StringVar(&dbPath, "db", cfg.DBPath, "path to the SQLite database file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newInitDBCmd(&cfg),
		newEnqueueCmd(&cfg),
		newListCmd(&cfg),
		newShowCmd(&cfg),
		newRequeueCmd(&cfg),
		newStatsCmd(&cfg),
		newWorkerCmd(&cfg),
	)

	return root
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// openStore opens the SQLite store at the configured path, applying
// migrations as needed. The caller owns the returned store.
func openStore(ctx context.Context, cfg *queuectl.Config) (*sqlite.Store, error) {
	return sqlite.Open(ctx, cfg.DBPath, sqlite.WithLogger(slog.Default()))
}

// openEngine opens the store and wires a queue engine over it with the
// configured backoff. The caller closes the returned store.
func openEngine(ctx context.Context, cfg *queuectl.Config) (*queue.Engine, *sqlite.Store, error) {
	s, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	eng := queue.New(s,
		queue.WithLogger(slog.Default()),
		queue.WithBackoff(backoff.NewExponential(cfg.BackoffBase)),
	)
	return eng, s, nil
}
