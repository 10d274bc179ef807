package core

import (
	"math/rand"
	"time"

	"github.com/BranchIntl/jobforge/job"
	"github.com/BranchIntl/jobforge/outcome"
)

// Config holds engine configuration
type Config struct {
	MinDelay        time.Duration
	MaxDelay        time.Duration
	MinJobs         int
	MaxJobs         int
	DelayChance     int // percent of jobs that get a scheduled delay
	MaxSchedule     time.Duration
	Backoff         time.Duration
	ShutdownTimeout time.Duration

	rng   *rand.Rand
	sleep Sleeper
	now   func() time.Time
}

// EngineOption is a function that modifies engine configuration
type EngineOption func(*Config)

const (
	defaultBackoff         = 5 * time.Second
	defaultShutdownTimeout = 30 * time.Second
)

// defaultConfig returns default configuration
func defaultConfig() *Config {
	return &Config{
		MinDelay:        500 * time.Millisecond,
		MaxDelay:        45 * time.Second,
		MinJobs:         1,
		MaxJobs:         12,
		DelayChance:     30,
		MaxSchedule:     job.MaxSchedule,
		Backoff:         defaultBackoff,
		ShutdownTimeout: defaultShutdownTimeout,
		sleep:           Sleeper(outcome.Sleep),
		now:             time.Now,
	}
}

// WithDelayRange sets the bounds of the pause before each batch
func WithDelayRange(min, max time.Duration) EngineOption {
	return func(c *Config) {
		c.MinDelay = min
		c.MaxDelay = max
	}
}

// WithBatchRange sets the bounds of the batch size
func WithBatchRange(min, max int) EngineOption {
	return func(c *Config) {
		c.MinJobs = min
		c.MaxJobs = max
	}
}

// WithDelayChance sets the percentage of jobs given a scheduled delay
func WithDelayChance(percent int) EngineOption {
	return func(c *Config) {
		c.DelayChance = percent
	}
}

// WithMaxSchedule sets the largest scheduled delay
func WithMaxSchedule(d time.Duration) EngineOption {
	return func(c *Config) {
		c.MaxSchedule = d
	}
}

// WithBackoff sets the pause after a failed cycle. Non-positive values keep
// the default.
func WithBackoff(d time.Duration) EngineOption {
	return func(c *Config) {
		c.Backoff = d
	}
}

// WithShutdownTimeout sets how long Stop waits before warning about slow
// producers. Non-positive values keep the default.
func WithShutdownTimeout(d time.Duration) EngineOption {
	return func(c *Config) {
		c.ShutdownTimeout = d
	}
}

// WithRand sets the randomness source shared by all producers
func WithRand(rng *rand.Rand) EngineOption {
	return func(c *Config) {
		c.rng = rng
	}
}

// WithSleeper replaces the suspension used for delays and backoff
func WithSleeper(sleep Sleeper) EngineOption {
	return func(c *Config) {
		c.sleep = sleep
	}
}

// WithClock sets the time source used to stamp generated jobs
func WithClock(now func() time.Time) EngineOption {
	return func(c *Config) {
		c.now = now
	}
}
