package sqlite

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
)

// Timestamps are stored as ISO-8601 UTC text with second precision and a Z
// suffix, so lexicographic comparison in SQL matches chronological order.
const timeLayout = time.RFC3339

type jobModel struct {
	bun.BaseModel `bun:"table:jobs"`

	ID         string  `bun:"id,pk"`
	Command    string  `bun:"command,notnull"`
	State      string  `bun:"state,notnull,default:'pending'"`
	Attempts   int     `bun:"attempts,notnull,default:0"`
	MaxRetries int     `bun:"max_retries,notnull,default:3"`
	Priority   int     `bun:"priority,notnull,default:0"`
	RunAt      *string `bun:"run_at"`
	Stdout     *string `bun:"stdout"`
	Stderr     *string `bun:"stderr"`
	CreatedAt  string  `bun:"created_at,notnull"`
	UpdatedAt  string  `bun:"updated_at,notnull"`
}

func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func toJobModel(j *job.Job) *jobModel {
	m := &jobModel{
		ID:         j.ID.String(),
		Command:    j.Command,
		State:      string(j.State),
		Attempts:   j.Attempts,
		MaxRetries: j.MaxRetries,
		Priority:   j.Priority,
		Stdout:     j.Stdout,
		Stderr:     j.Stderr,
		CreatedAt:  formatTime(j.CreatedAt),
		UpdatedAt:  formatTime(j.UpdatedAt),
	}
	if j.RunAt != nil {
		runAt := formatTime(*j.RunAt)
		m.RunAt = &runAt
	}
	return m
}

func fromJobModel(m *jobModel) (*job.Job, error) {
	parsedID, err := id.ParseJobID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("queuectl/sqlite: parse job id %q: %w", m.ID, err)
	}

	createdAt, err := parseTime(m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("queuectl/sqlite: parse created_at %q: %w", m.CreatedAt, err)
	}
	updatedAt, err := parseTime(m.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("queuectl/sqlite: parse updated_at %q: %w", m.UpdatedAt, err)
	}

	j := &job.Job{
		ID:         parsedID,
		Command:    m.Command,
		State:      job.State(m.State),
		Attempts:   m.Attempts,
		MaxRetries: m.MaxRetries,
		Priority:   m.Priority,
		Stdout:     m.Stdout,
		Stderr:     m.Stderr,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}

	if m.RunAt != nil {
		runAt, rErr := parseTime(*m.RunAt)
		if rErr != nil {
			return nil, fmt.Errorf("queuectl/sqlite: parse run_at %q: %w", *m.RunAt, rErr)
		}
		j.RunAt = &runAt
	}

	return j, nil
}
