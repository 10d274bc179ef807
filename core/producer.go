package core

import (
	"sync"
	"sync/atomic"

	"github.com/BranchIntl/jobforge/profile"
)

// producer is the running state of one profile's loop
type producer struct {
	profile profile.Profile
	running atomic.Bool

	batches  atomic.Int64
	jobs     atomic.Int64
	failures atomic.Int64

	mu        sync.Mutex
	lastError error

	exitErr error // written by the loop goroutine, read after it returns
}

func newProducer(p profile.Profile) *producer {
	return &producer{profile: p}
}

func (p *producer) recordBatch(size int) {
	p.batches.Add(1)
	p.jobs.Add(int64(size))
}

func (p *producer) recordFailure(err error) {
	p.failures.Add(1)

	p.mu.Lock()
	p.lastError = err
	p.mu.Unlock()
}

func (p *producer) status() ProducerStatus {
	p.mu.Lock()
	lastError := p.lastError
	p.mu.Unlock()

	return ProducerStatus{
		Profile:   p.profile.Name,
		Queue:     p.profile.Queue,
		Running:   p.running.Load(),
		Batches:   p.batches.Load(),
		Jobs:      p.jobs.Load(),
		Failures:  p.failures.Load(),
		LastError: lastError,
	}
}
