package noop

import (
	"time"

	"github.com/BranchIntl/jobforge/job"
)

// NoOpStatistics implements the Statistics interface with no-op operations
type NoOpStatistics struct{}

// NewStatistics creates a new no-op statistics backend
func NewStatistics() *NoOpStatistics {
	return &NoOpStatistics{}
}

// Type returns the statistics backend type
func (n *NoOpStatistics) Type() string {
	return "noop"
}

// RecordProducerStarted records a producer loop start (no-op)
func (n *NoOpStatistics) RecordProducerStarted(profile string) {}

// RecordProducerStopped records a producer loop exit (no-op)
func (n *NoOpStatistics) RecordProducerStopped(profile string) {}

// RecordBatch records a submitted batch (no-op)
func (n *NoOpStatistics) RecordBatch(profile, queue string, jobs []*job.Job, duration time.Duration) {}

// RecordBatchFailed records a failed submission (no-op)
func (n *NoOpStatistics) RecordBatchFailed(profile, queue string, err error) {}
