package queuectl

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds the runtime configuration shared by the CLI and the worker
// pool. Core packages receive individual values from it explicitly; only
// cmd reads the environment.
type Config struct {
	// DBPath is the SQLite database file backing the queue.
	DBPath string `env:"QUEUECTL_DB_PATH,default=queuectl.db" validate:"required"`

	// PollInterval is how long an idle worker sleeps between claim attempts.
	PollInterval time.Duration `env:"QUEUECTL_POLL_INTERVAL,default=1s" validate:"gt=0"`

	// BackoffBase is the base of the exponential retry delay, in seconds.
	BackoffBase float64 `env:"QUEUECTL_BACKOFF_BASE,default=2" validate:"gt=0"`

	// JobTimeout is the hard wall-clock limit for a single execution.
	JobTimeout time.Duration `env:"QUEUECTL_JOB_TIMEOUT,default=60s" validate:"gt=0"`

	// Workers is the number of concurrent worker goroutines.
	Workers int `env:"QUEUECTL_WORKERS,default=1" validate:"gte=1"`

	// ShutdownTimeout is the maximum time to wait for in-flight jobs on stop.
	ShutdownTimeout time.Duration `env:"QUEUECTL_SHUTDOWN_TIMEOUT,default=30s" validate:"gt=0"`

	// StaleAfter, when positive, returns processing jobs whose last update is
	// older than this to pending. Zero disables stale recovery.
	StaleAfter time.Duration `env:"QUEUECTL_STALE_AFTER,default=0" validate:"gte=0"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DBPath:          "queuectl.db",
		PollInterval:    1 * time.Second,
		BackoffBase:     2,
		JobTimeout:      60 * time.Second,
		Workers:         1,
		ShutdownTimeout: 30 * time.Second,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct tags and wraps the first violation found.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("queuectl: invalid config: %w", err)
	}
	return nil
}
