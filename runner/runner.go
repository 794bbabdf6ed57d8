// Package runner executes job commands as OS child processes with output
// capture and a hard wall-clock timeout.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"time"
)

// DefaultTimeout bounds a single execution when no override is given.
const DefaultTimeout = 60 * time.Second

// Outcome describes one finished execution.
type Outcome struct {
	// ExitCode is the child's exit status. -1 when the child was killed,
	// including by the timeout.
	ExitCode int
	// Stdout and Stderr hold the captured output as text.
	Stdout string
	Stderr string
	// TimedOut is set when the child was killed for exceeding the timeout.
	TimedOut bool
}

// Runner runs one command per Execute call. It never retries; retry policy
// lives in the engine above it.
type Runner struct {
	timeout time.Duration
	shell   []string
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout overrides the hard wall-clock timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithShell overrides the interpreter argv the command is appended to.
// The default is ["sh", "-c"].
func WithShell(argv ...string) Option {
	return func(r *Runner) {
		r.shell = argv
	}
}

// New creates a Runner with the default shell and timeout.
func New(opts ...Option) *Runner {
	r := &Runner{
		timeout: DefaultTimeout,
		shell:   []string{"sh", "-c"},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Timeout reports the configured hard timeout.
func (r *Runner) Timeout() time.Duration {
	return r.timeout
}

// Execute runs command under the interpreter and waits for it to finish or
// hit the timeout. Non-zero exits and timeouts are reported through the
// Outcome with a nil error; the error return is reserved for commands that
// could not be started at all.
func (r *Runner) Execute(ctx context.Context, command string) (*Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	argv := append(slices.Clone(r.shell), command)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Stop waiting on the output pipes shortly after the child exits or is
	// killed, so a grandchild holding the descriptors cannot stall the
	// worker past the timeout.
	cmd.WaitDelay = time.Second

	err := cmd.Run()

	out := &Outcome{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		out.ExitCode = -1
		out.TimedOut = true
		return out, nil
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		out.ExitCode = 0
	case errors.As(err, &exitErr):
		out.ExitCode = exitErr.ExitCode()
	case errors.Is(err, exec.ErrWaitDelay):
		// The child itself exited zero; only its leaked pipes were closed.
		out.ExitCode = 0
	default:
		return nil, fmt.Errorf("queuectl/runner: launch command: %w", err)
	}

	return out, nil
}
