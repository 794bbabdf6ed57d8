package job

import (
	"fmt"
	"time"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/id"
)

// State represents the lifecycle state of a job.
type State string

const (
	// StatePending means the job is waiting to be claimed by a worker.
	StatePending State = "pending"
	// StateProcessing means a worker is currently executing the job.
	StateProcessing State = "processing"
	// StateCompleted means the job finished successfully.
	StateCompleted State = "completed"
	// StateFailed is reserved in the schema. The engine routes failures to
	// StatePending (retry) or StateDead (budget exhausted) instead.
	StateFailed State = "failed"
	// StateDead means the job exhausted its retry budget and waits for a
	// manual requeue.
	StateDead State = "dead"
)

// States lists every state in lifecycle order.
func States() []State {
	return []State{StatePending, StateProcessing, StateCompleted, StateFailed, StateDead}
}

// ParseState validates a state string, typically from CLI input.
func ParseState(s string) (State, error) {
	switch st := State(s); st {
	case StatePending, StateProcessing, StateCompleted, StateFailed, StateDead:
		return st, nil
	default:
		return "", fmt.Errorf("queuectl/job: state %q: %w", s, queuectl.ErrInvalidState)
	}
}

// Job represents one enqueued shell command and its retry history.
type Job struct {
	ID         id.JobID   `json:"id"`
	Command    string     `json:"command"`
	State      State      `json:"state"`
	Attempts   int        `json:"attempts"`
	MaxRetries int        `json:"max_retries"`
	Priority   int        `json:"priority"`
	RunAt      *time.Time `json:"run_at,omitempty"`
	Stdout     *string    `json:"stdout,omitempty"`
	Stderr     *string    `json:"stderr,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
