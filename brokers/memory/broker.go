package memory

import (
	"context"
	"sync"

	"github.com/BranchIntl/jobforge/errors"
	"github.com/BranchIntl/jobforge/job"
)

// MemoryBroker records submitted batches in process. Nothing ever consumes
// them; it backs dry runs and tests.
type MemoryBroker struct {
	mu        sync.RWMutex
	queues    map[string][]*job.Job
	batches   [][]*job.Job
	queueSize int
	connected bool
	options   Options
}

// NewBroker creates a new in-memory broker
func NewBroker(options Options) *MemoryBroker {
	return &MemoryBroker{
		queues:    make(map[string][]*job.Job),
		queueSize: options.QueueSize,
		options:   options,
	}
}

// Connect establishes connection (no-op for memory broker)
func (m *MemoryBroker) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connected = true
	return nil
}

// Close closes the broker. Recorded jobs stay readable.
func (m *MemoryBroker) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connected = false
	return nil
}

// Health checks the broker health
func (m *MemoryBroker) Health() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.connected {
		return errors.ErrNotConnected
	}
	return nil
}

// Type returns the broker type
func (m *MemoryBroker) Type() string {
	return "memory"
}

// EnqueueBatch appends the batch to its queues. Either every job is recorded
// or none is.
func (m *MemoryBroker) EnqueueBatch(ctx context.Context, jobs []*job.Job) error {
	if err := job.ValidateBatch(jobs); err != nil {
		return errors.NewBrokerError("enqueue", "", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return errors.NewBrokerError("enqueue", "", errors.ErrNotConnected)
	}

	if m.queueSize > 0 {
		pending := make(map[string]int)
		for _, j := range jobs {
			pending[j.Queue]++
		}
		for queue, n := range pending {
			if len(m.queues[queue])+n > m.queueSize {
				return errors.NewBrokerError("enqueue", queue, errors.ErrQueueFull)
			}
		}
	}

	for _, j := range jobs {
		m.queues[j.Queue] = append(m.queues[j.Queue], j)
	}
	batch := make([]*job.Job, len(jobs))
	copy(batch, jobs)
	m.batches = append(m.batches, batch)
	return nil
}

// Batches returns every accepted batch in submission order
func (m *MemoryBroker) Batches() [][]*job.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([][]*job.Job, len(m.batches))
	copy(out, m.batches)
	return out
}

// Jobs returns the jobs recorded for a queue
func (m *MemoryBroker) Jobs(queue string) []*job.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*job.Job, len(m.queues[queue]))
	copy(out, m.queues[queue])
	return out
}

// QueueLength returns the number of jobs in a queue
func (m *MemoryBroker) QueueLength(ctx context.Context, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.queues[name])), nil
}

// Queues returns the names of queues that received at least one job
func (m *MemoryBroker) Queues() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.queues))
	for name := range m.queues {
		names = append(names, name)
	}
	return names
}

// Reset drops everything recorded so far
func (m *MemoryBroker) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queues = make(map[string][]*job.Job)
	m.batches = nil
}
