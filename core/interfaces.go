package core

import (
	"context"
	"time"

	"github.com/BranchIntl/jobforge/job"
)

// Broker is the queue client the engine submits batches to.
// Implementations must be safe for concurrent EnqueueBatch calls.
type Broker interface {
	// EnqueueBatch submits a non-empty batch in one call
	EnqueueBatch(ctx context.Context, jobs []*job.Job) error

	// Connection management
	Connect(ctx context.Context) error
	Close() error
	Health() error
	Type() string
}

// Serializer turns a job into the wire payload a backend expects
type Serializer interface {
	Serialize(j *job.Job) ([]byte, error)
	Deserialize(data []byte) (*job.Job, error)
	GetFormat() string
}

// Statistics interface defines what core reports about producer activity
type Statistics interface {
	RecordProducerStarted(profile string)
	RecordProducerStopped(profile string)
	RecordBatch(profile, queue string, jobs []*job.Job, duration time.Duration)
	RecordBatchFailed(profile, queue string, err error)
}

// Sleeper suspends for d or until ctx is done, returning ctx.Err() in that case
type Sleeper func(ctx context.Context, d time.Duration) error

// ProducerStatus is a snapshot of one producer loop
type ProducerStatus struct {
	Profile   string
	Queue     string
	Running   bool
	Batches   int64
	Jobs      int64
	Failures  int64
	LastError error
}

// HealthStatus represents the health of the engine
type HealthStatus struct {
	Healthy          bool
	BrokerHealth     error
	RunningProducers int
	Producers        []ProducerStatus
	LastCheck        time.Time
}
