// Package job defines the unit of work jobforge generates and hands to a
// queue backend.
package job

import (
	"fmt"
	"time"

	"github.com/BranchIntl/jobforge/errors"
	"github.com/google/uuid"
)

// MaxSchedule is the upper bound for a job's scheduled delay.
const MaxSchedule = 120 * time.Second

// Job is a generated job. It is immutable once submitted.
type Job struct {
	ID          string
	Queue       string
	Class       string
	Args        map[string]interface{}
	MaxAttempts int           // 0 means backend default
	ScheduledIn time.Duration // 0 means run immediately
	EnqueuedAt  time.Time
}

// Option customizes a job at construction
type Option func(*Job)

// WithMaxAttempts sets the retry ceiling hint
func WithMaxAttempts(n int) Option {
	return func(j *Job) {
		j.MaxAttempts = n
	}
}

// WithScheduledIn delays execution by d
func WithScheduledIn(d time.Duration) Option {
	return func(j *Job) {
		j.ScheduledIn = d
	}
}

// WithEnqueuedAt overrides the creation timestamp
func WithEnqueuedAt(t time.Time) Option {
	return func(j *Job) {
		j.EnqueuedAt = t
	}
}

// New creates a job with a fresh UUID
func New(queue, class string, args map[string]interface{}, opts ...Option) *Job {
	j := &Job{
		ID:         uuid.NewString(),
		Queue:      queue,
		Class:      class,
		Args:       args,
		EnqueuedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Scheduled reports whether the job carries a future run time
func (j *Job) Scheduled() bool {
	return j.ScheduledIn > 0
}

// RunAt returns the earliest time the backend may run the job
func (j *Job) RunAt() time.Time {
	return j.EnqueuedAt.Add(j.ScheduledIn)
}

// Validate checks the job invariants
func (j *Job) Validate() error {
	if j.Queue == "" {
		return fmt.Errorf("%w: %w", errors.ErrInvalidJob, errors.ErrEmptyQueueName)
	}
	if j.MaxAttempts < 0 {
		return fmt.Errorf("%w: max attempts %d", errors.ErrInvalidJob, j.MaxAttempts)
	}
	if j.ScheduledIn == 0 {
		return nil
	}
	if j.ScheduledIn < time.Second || j.ScheduledIn > MaxSchedule || j.ScheduledIn%time.Second != 0 {
		return fmt.Errorf("%w: scheduled delay %s outside [1s, %s]", errors.ErrInvalidJob, j.ScheduledIn, MaxSchedule)
	}
	return nil
}

// ValidateBatch checks a whole batch before submission
func ValidateBatch(jobs []*Job) error {
	if len(jobs) == 0 {
		return errors.ErrEmptyBatch
	}
	for _, j := range jobs {
		if err := j.Validate(); err != nil {
			return err
		}
	}
	return nil
}
