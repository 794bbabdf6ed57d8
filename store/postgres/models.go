package postgres

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
)

type jobModel struct {
	bun.BaseModel `bun:"table:jobs"`

	ID         string     `bun:"id,pk"`
	Command    string     `bun:"command,notnull"`
	State      string     `bun:"state,notnull,default:'pending'"`
	Attempts   int        `bun:"attempts,notnull,default:0"`
	MaxRetries int        `bun:"max_retries,notnull,default:3"`
	Priority   int        `bun:"priority,notnull,default:0"`
	RunAt      *time.Time `bun:"run_at"`
	Stdout     *string    `bun:"stdout"`
	Stderr     *string    `bun:"stderr"`
	CreatedAt  time.Time  `bun:"created_at,notnull"`
	UpdatedAt  time.Time  `bun:"updated_at,notnull"`
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
		CreatedAt:  j.CreatedAt.UTC().Truncate(time.Second),
		UpdatedAt:  j.UpdatedAt.UTC().Truncate(time.Second),
	}
	if j.RunAt != nil {
		runAt := j.RunAt.UTC().Truncate(time.Second)
		m.RunAt = &runAt
	}
	return m
}

func fromJobModel(m *jobModel) (*job.Job, error) {
	parsedID, err := id.ParseJobID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("queuectl/postgres: parse job id %q: %w", m.ID, err)
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
		CreatedAt:  m.CreatedAt.UTC(),
		UpdatedAt:  m.UpdatedAt.UTC(),
	}

	if m.RunAt != nil {
		runAt := m.RunAt.UTC()
		j.RunAt = &runAt
	}

	return j, nil
}
