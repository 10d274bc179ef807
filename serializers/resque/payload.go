package resque

import (
	"github.com/BranchIntl/jobforge/job"
)

// Payload is the JSON document Resque workers pop off a queue. The generated
// argument map is the single positional argument.
type Payload struct {
	Class string                   `json:"class"`
	Args  []map[string]interface{} `json:"args"`
	ID    string                   `json:"id,omitempty"`
	Queue string                   `json:"queue,omitempty"`
}

// ConstructPayload builds the Resque payload for a job
func ConstructPayload(j *job.Job) Payload {
	args := j.Args
	if args == nil {
		args = map[string]interface{}{}
	}
	return Payload{
		Class: j.Class,
		Args:  []map[string]interface{}{args},
		ID:    j.ID,
		Queue: j.Queue,
	}
}

// ConstructJob converts a decoded payload back into a job
func ConstructJob(p Payload) *job.Job {
	j := &job.Job{
		ID:    p.ID,
		Queue: p.Queue,
		Class: p.Class,
	}
	if len(p.Args) > 0 {
		j.Args = p.Args[0]
	}
	return j
}
