package oban

import (
	"time"

	"github.com/BranchIntl/jobforge/job"
)

// Job states written by the generator
const (
	StateAvailable = "available"
	StateScheduled = "scheduled"
)

// DefaultMaxAttempts matches the oban_jobs column default
const DefaultMaxAttempts = 20

// Row is one oban_jobs record. Field tags name the table columns.
type Row struct {
	State       string    `db:"state"`
	Queue       string    `db:"queue"`
	Worker      string    `db:"worker"`
	Args        []byte    `db:"args"`
	MaxAttempts int       `db:"max_attempts"`
	ScheduledAt time.Time `db:"scheduled_at"`
	InsertedAt  time.Time `db:"inserted_at"`
}

// ConstructRow builds the row for a job with already encoded args
func ConstructRow(j *job.Job, args []byte) Row {
	row := Row{
		State:       StateAvailable,
		Queue:       j.Queue,
		Worker:      j.Class,
		Args:        args,
		MaxAttempts: j.MaxAttempts,
		ScheduledAt: j.RunAt().UTC(),
		InsertedAt:  j.EnqueuedAt.UTC(),
	}
	if row.MaxAttempts == 0 {
		row.MaxAttempts = DefaultMaxAttempts
	}
	if j.Scheduled() {
		row.State = StateScheduled
	}
	return row
}
