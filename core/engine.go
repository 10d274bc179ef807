package core

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/BranchIntl/jobforge/errors"
	"github.com/BranchIntl/jobforge/job"
	"github.com/BranchIntl/jobforge/profile"
	"github.com/hashicorp/go-multierror"
)

// Engine runs one producer loop per generated profile
type Engine struct {
	broker   Broker
	stats    Statistics
	profiles []profile.Profile
	config   *Config

	rngMu sync.Mutex
	rng   *rand.Rand

	lifecycle sync.Mutex // serializes Start and Stop
	mu        sync.RWMutex
	producers []*producer
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewEngine creates a new engine with dependency injection. Profiles that are
// not generated (periodic ones) are ignored.
func NewEngine(
	broker Broker,
	stats Statistics,
	profiles []profile.Profile,
	options ...EngineOption,
) *Engine {
	config := defaultConfig()
	for _, opt := range options {
		opt(config)
	}
	if config.Backoff <= 0 {
		config.Backoff = defaultBackoff
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = defaultShutdownTimeout
	}

	rng := config.rng
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	driven := make([]profile.Profile, 0, len(profiles))
	for _, p := range profiles {
		if p.Generated() {
			driven = append(driven, p)
		}
	}

	return &Engine{
		broker:   broker,
		stats:    stats,
		profiles: driven,
		config:   config,
		rng:      rng,
	}
}

// Start connects the broker and launches one producer per profile. It
// returns once every producer is running.
func (e *Engine) Start(ctx context.Context) error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	if e.cancel != nil {
		return errors.ErrAlreadyStarted
	}
	if len(e.profiles) == 0 {
		return errors.ErrNoProfiles
	}

	if err := e.broker.Connect(ctx); err != nil {
		return errors.NewConnectionError("",
			fmt.Errorf("failed to connect broker: %w", err))
	}

	ctx, cancel := context.WithCancel(ctx)

	producers := make([]*producer, 0, len(e.profiles))
	for _, p := range e.profiles {
		producers = append(producers, newProducer(p))
	}

	e.mu.Lock()
	e.producers = producers
	e.cancel = cancel
	e.mu.Unlock()

	for _, p := range producers {
		p.running.Store(true)
		e.wg.Add(1)
		go func(p *producer) {
			defer e.wg.Done()
			p.exitErr = e.run(ctx, p)
		}(p)
	}

	slog.Info("Engine started", "producers", len(producers), "broker", e.broker.Type())
	return nil
}

// Stop cancels every producer and blocks until all of them have returned.
// Loop termination errors are collected and logged, never returned.
func (e *Engine) Stop() error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	e.mu.RLock()
	cancel, producers := e.cancel, e.producers
	e.mu.RUnlock()

	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	for waiting := true; waiting; {
		select {
		case <-done:
			waiting = false
		case <-time.After(e.config.ShutdownTimeout):
			slog.Warn("Producers still stopping", "timeout", e.config.ShutdownTimeout, "running", e.runningCount())
		}
	}

	var result *multierror.Error
	for _, p := range producers {
		if p.exitErr != nil {
			result = multierror.Append(result, errors.NewProducerError(p.profile.Name, p.exitErr))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		slog.Debug("Producers aborted mid-cycle", "count", len(result.Errors), "error", err)
	}

	e.mu.Lock()
	e.producers = nil
	e.cancel = nil
	e.mu.Unlock()

	if err := e.broker.Close(); err != nil {
		slog.Error("Error closing broker", "error", err)
	}

	slog.Info("Engine stopped")
	return nil
}

// Run starts the engine, waits for ctx to be done and stops it
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return e.Stop()
}

// Status returns a snapshot of every producer
func (e *Engine) Status() []ProducerStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	statuses := make([]ProducerStatus, 0, len(e.producers))
	for _, p := range e.producers {
		statuses = append(statuses, p.status())
	}
	return statuses
}

// Health returns the current health status
func (e *Engine) Health() HealthStatus {
	brokerHealth := e.broker.Health()
	producers := e.Status()

	running := 0
	for _, p := range producers {
		if p.Running {
			running++
		}
	}

	return HealthStatus{
		Healthy:          brokerHealth == nil && running == len(e.profiles),
		BrokerHealth:     brokerHealth,
		RunningProducers: running,
		Producers:        producers,
		LastCheck:        time.Now(),
	}
}

func (e *Engine) runningCount() int {
	count := 0
	for _, p := range e.Status() {
		if p.Running {
			count++
		}
	}
	return count
}

// run is the producer loop. It returns nil when it observes the stop
// signal between cycles and ctx.Err() when cancelled mid-cycle.
func (e *Engine) run(ctx context.Context, p *producer) error {
	name := p.profile.Name

	defer p.running.Store(false)
	e.stats.RecordProducerStarted(name)
	defer e.stats.RecordProducerStopped(name)

	slog.Debug("Producer started", "profile", name, "queue", p.profile.Queue)

	for {
		if ctx.Err() != nil {
			slog.Debug("Producer stopped", "profile", name)
			return nil
		}

		err := e.cycle(ctx, p)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			slog.Debug("Producer cancelled mid-cycle", "profile", name)
			return ctx.Err()
		}

		p.recordFailure(err)
		slog.Error("Error generating jobs", "profile", name, "queue", p.profile.Queue, "error", err)

		if err := e.config.sleep(ctx, e.config.Backoff); err != nil {
			return err
		}
	}
}

// cycle sleeps, builds one batch and submits it
func (e *Engine) cycle(ctx context.Context, p *producer) error {
	if err := e.config.sleep(ctx, e.nextDelay()); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	batch, err := e.buildBatch(p.profile)
	if err != nil {
		return errors.NewProducerError(p.profile.Name, err)
	}

	start := time.Now()
	if err := e.broker.EnqueueBatch(ctx, batch); err != nil {
		if ctx.Err() != nil && stderrors.Is(err, ctx.Err()) {
			return err
		}
		e.stats.RecordBatchFailed(p.profile.Name, p.profile.Queue, err)
		return errors.NewProducerError(p.profile.Name, err)
	}

	p.recordBatch(len(batch))
	e.stats.RecordBatch(p.profile.Name, p.profile.Queue, batch, time.Since(start))
	slog.Debug("Batch enqueued", "profile", p.profile.Name, "queue", p.profile.Queue, "jobs", len(batch))
	return nil
}

// buildBatch generates a full batch. A panicking payload factory is
// reported as an error.
func (e *Engine) buildBatch(p profile.Profile) (batch []*job.Job, err error) {
	defer func() {
		if r := recover(); r != nil {
			batch = nil
			err = fmt.Errorf("payload generation panicked: %v", r)
		}
	}()

	size := e.batchSize()
	now := e.config.now()

	batch = make([]*job.Job, 0, size)
	for i := 0; i < size; i++ {
		opts := []job.Option{job.WithEnqueuedAt(now)}
		if delay := e.scheduleDelay(); delay > 0 {
			opts = append(opts, job.WithScheduledIn(delay))
		}
		batch = append(batch, p.NewJob(opts...))
	}

	if err := job.ValidateBatch(batch); err != nil {
		return nil, err
	}
	return batch, nil
}

// between returns a uniform integer in [lo, hi]
func (e *Engine) between(lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return lo + e.rng.Int63n(hi-lo+1)
}

// nextDelay picks the pause before a batch at millisecond granularity
func (e *Engine) nextDelay() time.Duration {
	ms := e.between(e.config.MinDelay.Milliseconds(), e.config.MaxDelay.Milliseconds())
	return time.Duration(ms) * time.Millisecond
}

// batchSize picks how many jobs the next batch holds
func (e *Engine) batchSize() int {
	return int(e.between(int64(e.config.MinJobs), int64(e.config.MaxJobs)))
}

// scheduleDelay returns zero or a whole-second delay in [1s, MaxSchedule]
func (e *Engine) scheduleDelay() time.Duration {
	if e.between(1, 100) > int64(e.config.DelayChance) {
		return 0
	}
	seconds := e.between(1, int64(e.config.MaxSchedule/time.Second))
	return time.Duration(seconds) * time.Second
}
