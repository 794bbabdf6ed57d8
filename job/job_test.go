package job_test

import (
	"errors"
	"testing"
	"time"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/job"
)

func TestParseState(t *testing.T) {
	tests := []struct {
		input   string
		want    job.State
		wantErr bool
	}{
		{"pending", job.StatePending, false},
		{"processing", job.StateProcessing, false},
		{"completed", job.StateCompleted, false},
		{"failed", job.StateFailed, false},
		{"dead", job.StateDead, false},
		{"running", "", true},
		{"PENDING", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := job.ParseState(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseState(%q): expected error, got %q", tt.input, got)
				}
				if !errors.Is(err, queuectl.ErrInvalidState) {
					t.Errorf("ParseState(%q): error %v, want ErrInvalidState", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseState(%q): unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseState(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestStates(t *testing.T) {
	states := job.States()
	if len(states) != 5 {
		t.Fatalf("expected 5 states, got %d", len(states))
	}
	if states[0] != job.StatePending {
		t.Errorf("states[0] = %q, want %q", states[0], job.StatePending)
	}
	if states[len(states)-1] != job.StateDead {
		t.Errorf("last state = %q, want %q", states[len(states)-1], job.StateDead)
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := job.DefaultOptions()
	if opts.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", opts.MaxRetries)
	}
	if opts.Priority != 0 {
		t.Errorf("Priority = %d, want 0", opts.Priority)
	}
	if !opts.RunAt.IsZero() {
		t.Errorf("RunAt = %v, want zero", opts.RunAt)
	}
}

func TestOptions(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	opts := job.DefaultOptions()
	for _, o := range []job.Option{
		job.WithMaxRetries(7),
		job.WithPriority(9),
		job.WithRunAt(at),
	} {
		o(&opts)
	}

	if opts.MaxRetries != 7 {
		t.Errorf("MaxRetries = %d, want 7", opts.MaxRetries)
	}
	if opts.Priority != 9 {
		t.Errorf("Priority = %d, want 9", opts.Priority)
	}
	if !opts.RunAt.Equal(at) {
		t.Errorf("RunAt = %v, want %v", opts.RunAt, at)
	}
}

func TestWithRunAfter(t *testing.T) {
	before := time.Now()

	opts := job.DefaultOptions()
	job.WithRunAfter(10 * time.Second)(&opts)

	lo := before.Add(10 * time.Second)
	hi := time.Now().Add(10*time.Second + time.Second)
	if opts.RunAt.Before(lo) || opts.RunAt.After(hi) {
		t.Errorf("RunAt = %v, want within [%v, %v]", opts.RunAt, lo, hi)
	}
}
