package job

import "time"

// Options configures per-job behavior at enqueue time.
type Options struct {
	// MaxRetries is the maximum number of executions before the job is
	// declared dead.
	MaxRetries int

	// Priority determines claim ordering. Higher values are claimed first.
	Priority int

	// RunAt defers the job until a specific time. Zero means immediate.
	RunAt time.Time
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetries: 3,
		Priority:   0,
	}
}

// Option is a functional option for configuring a job at enqueue time.
type Option func(*Options)

// WithMaxRetries sets the maximum number of executions.
func WithMaxRetries(n int) Option {
	return func(o *Options) {
		o.MaxRetries = n
	}
}

// WithPriority sets the job priority. Higher values are claimed first.
func WithPriority(p int) Option {
	return func(o *Options) {
		o.Priority = p
	}
}

// WithRunAt defers the job until a specific time.
func WithRunAt(t time.Time) Option {
	return func(o *Options) {
		o.RunAt = t
	}
}

// WithRunAfter defers the job by a duration from now.
func WithRunAfter(d time.Duration) Option {
	return func(o *Options) {
		o.RunAt = time.Now().Add(d)
	}
}
