package core

import (
	"context"
	"sync"
	"time"

	"github.com/BranchIntl/jobforge/job"
)

// Mock implementations for testing

// MockBroker implements the Broker interface for testing
type MockBroker struct {
	mu           sync.Mutex
	connected    bool
	closed       bool
	connectError error
	healthError  error
	enqueueFunc  func(ctx context.Context, batch []*job.Job, call int) error
	calls        int
	batches      [][]*job.Job
	submittedAt  []time.Time
}

func NewMockBroker() *MockBroker {
	return &MockBroker{}
}

func (m *MockBroker) EnqueueBatch(ctx context.Context, batch []*job.Job) error {
	m.mu.Lock()
	m.calls++
	call := m.calls
	fn := m.enqueueFunc
	m.mu.Unlock()

	if fn != nil {
		if err := fn(ctx, batch, call); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, batch)
	m.submittedAt = append(m.submittedAt, time.Now())
	return nil
}

func (m *MockBroker) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connectError != nil {
		return m.connectError
	}
	m.connected = true
	return nil
}

func (m *MockBroker) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.connected = false
	return nil
}

func (m *MockBroker) Health() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthError
}

func (m *MockBroker) Type() string {
	return "mock"
}

// Test helpers

func (m *MockBroker) SetConnectError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectError = err
}

func (m *MockBroker) SetHealthError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthError = err
}

func (m *MockBroker) SetEnqueueFunc(fn func(ctx context.Context, batch []*job.Job, call int) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueueFunc = fn
}

func (m *MockBroker) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockBroker) Batches() [][]*job.Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([][]*job.Job, len(m.batches))
	copy(out, m.batches)
	return out
}

func (m *MockBroker) BatchesFor(queue string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, batch := range m.batches {
		if batch[0].Queue == queue {
			count++
		}
	}
	return count
}

func (m *MockBroker) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockStatistics implements the Statistics interface for testing
type MockStatistics struct {
	mu       sync.Mutex
	started  map[string]int
	stopped  map[string]int
	batches  map[string]int
	jobs     map[string]int
	failures map[string]int
}

func NewMockStatistics() *MockStatistics {
	return &MockStatistics{
		started:  make(map[string]int),
		stopped:  make(map[string]int),
		batches:  make(map[string]int),
		jobs:     make(map[string]int),
		failures: make(map[string]int),
	}
}

func (m *MockStatistics) RecordProducerStarted(profile string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started[profile]++
}

func (m *MockStatistics) RecordProducerStopped(profile string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped[profile]++
}

func (m *MockStatistics) RecordBatch(profile, queue string, jobs []*job.Job, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[profile]++
	m.jobs[profile] += len(jobs)
}

func (m *MockStatistics) RecordBatchFailed(profile, queue string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[profile]++
}

func (m *MockStatistics) Stopped() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, n := range m.stopped {
		total += n
	}
	return total
}

func (m *MockStatistics) Failures(profile string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures[profile]
}

func (m *MockStatistics) Batches(profile string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batches[profile]
}
