// Package profile holds the catalog of synthetic job kinds: which queue each
// kind targets, how its payload is generated and how it behaves when a
// backend executes it.
package profile

import (
	"context"
	"fmt"
	"time"

	"github.com/BranchIntl/jobforge/errors"
	"github.com/BranchIntl/jobforge/job"
	"github.com/BranchIntl/jobforge/outcome"
)

// Default execution latency bounds
const (
	DefaultMinSleep = 300 * time.Millisecond
	DefaultMaxSleep = 30 * time.Second
)

// PayloadFunc produces one randomized payload. It must not block.
type PayloadFunc func() map[string]interface{}

// Profile describes one kind of synthetic job
type Profile struct {
	Name        string
	Class       string
	Queue       string
	MaxAttempts int    // 0 leaves the backend default
	Cron        string // set for periodic profiles
	MinSleep    time.Duration
	MaxSleep    time.Duration
	Generate    PayloadFunc

	simulator *outcome.Simulator
}

// Generated reports whether the producer engine drives this profile
func (p Profile) Generated() bool {
	return p.Generate != nil && p.Cron == ""
}

// Periodic reports whether the backend schedules this profile from a cron expression
func (p Profile) Periodic() bool {
	return p.Cron != ""
}

// NewJob builds a job for this profile with a freshly generated payload
func (p Profile) NewJob(opts ...job.Option) *job.Job {
	var args map[string]interface{}
	if p.Generate != nil {
		args = p.Generate()
	}
	if p.MaxAttempts > 0 {
		opts = append([]job.Option{job.WithMaxAttempts(p.MaxAttempts)}, opts...)
	}
	return job.New(p.Queue, p.Class, args, opts...)
}

// Perform simulates executing one job of this profile
func (p Profile) Perform(ctx context.Context) (outcome.Decision, error) {
	if p.simulator != nil {
		return p.simulator.Simulate(ctx, p.MinSleep, p.MaxSleep)
	}
	return outcome.Simulate(ctx, p.MinSleep, p.MaxSleep)
}

// WithSimulator returns a copy of p that performs with sim
func (p Profile) WithSimulator(sim *outcome.Simulator) Profile {
	p.simulator = sim
	return p
}

// Validate checks the profile's invariants
func (p Profile) Validate() error {
	if p.Name == "" {
		return errors.ErrEmptyProfileName
	}
	if p.Queue == "" {
		return fmt.Errorf("profile %s: %w", p.Name, errors.ErrEmptyQueueName)
	}
	if p.MaxAttempts < 0 {
		return fmt.Errorf("%w: %s has max attempts %d", errors.ErrInvalidProfile, p.Name, p.MaxAttempts)
	}
	if p.MinSleep < 0 || p.MinSleep > p.MaxSleep {
		return fmt.Errorf("%w: %s sleep bounds [%s, %s]", errors.ErrInvalidProfile, p.Name, p.MinSleep, p.MaxSleep)
	}
	if p.Generate == nil && p.Cron == "" {
		return fmt.Errorf("%w: %s needs a payload generator or a cron expression", errors.ErrInvalidProfile, p.Name)
	}
	return nil
}
