package sneakers

import (
	"time"

	"github.com/BranchIntl/jobforge/job"
)

// TimeFormat is the ActiveJob timestamp layout
const TimeFormat = "2006-01-02T15:04:05.000000000Z"

// Message is the ActiveJob envelope Sneakers workers consume
type Message struct {
	JobClass            string                 `json:"job_class"`
	JobID               string                 `json:"job_id"`
	ProviderJobID       *string                `json:"provider_job_id"`
	QueueName           string                 `json:"queue_name"`
	Priority            *int                   `json:"priority"`
	Arguments           []interface{}          `json:"arguments"`
	Executions          int                    `json:"executions"`
	ExceptionExecutions map[string]interface{} `json:"exception_executions"`
	Locale              string                 `json:"locale"`
	Timezone            string                 `json:"timezone"`
	EnqueuedAt          string                 `json:"enqueued_at"`
	ScheduledAt         *string                `json:"scheduled_at,omitempty"`
	MaxAttempts         int                    `json:"max_attempts,omitempty"`
}

// ConstructMessage builds the ActiveJob envelope for a job
func ConstructMessage(j *job.Job) Message {
	args := j.Args
	if args == nil {
		args = map[string]interface{}{}
	}

	msg := Message{
		JobClass:            j.Class,
		JobID:               j.ID,
		QueueName:           j.Queue,
		Arguments:           []interface{}{args},
		ExceptionExecutions: map[string]interface{}{},
		Locale:              "en",
		Timezone:            "UTC",
		EnqueuedAt:          j.EnqueuedAt.UTC().Format(TimeFormat),
		MaxAttempts:         j.MaxAttempts,
	}
	if j.Scheduled() {
		at := j.RunAt().UTC().Format(TimeFormat)
		msg.ScheduledAt = &at
	}
	return msg
}

// ConstructJob converts a decoded envelope back into a job
func ConstructJob(msg Message) *job.Job {
	j := &job.Job{
		ID:          msg.JobID,
		Queue:       msg.QueueName,
		Class:       msg.JobClass,
		MaxAttempts: msg.MaxAttempts,
	}
	if len(msg.Arguments) > 0 {
		if args, ok := msg.Arguments[0].(map[string]interface{}); ok {
			j.Args = args
		}
	}
	if msg.EnqueuedAt != "" {
		if t, err := time.Parse(TimeFormat, msg.EnqueuedAt); err == nil {
			j.EnqueuedAt = t
		}
	}
	if msg.ScheduledAt != nil && !j.EnqueuedAt.IsZero() {
		if t, err := time.Parse(TimeFormat, *msg.ScheduledAt); err == nil {
			j.ScheduledIn = t.Sub(j.EnqueuedAt)
		}
	}
	return j
}
