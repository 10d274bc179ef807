// Package outcome simulates the execution of a synthetic job: a random
// latency followed by a success, a transient failure or a snooze request.
package outcome

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/BranchIntl/jobforge/errors"
)

// Kind is the class of a simulated outcome
type Kind int

const (
	Success Kind = iota
	TransientFailure
	Snooze
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case TransientFailure:
		return "failure"
	case Snooze:
		return "snooze"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Draw thresholds on a [1,100] roll.
const (
	snoozeCeiling  = 10
	failureCeiling = 25

	minSnooze = 5
	maxSnooze = 30
)

// Errors are the canned transient failure messages.
var Errors = []string{
	"Connection timeout",
	"Rate limit exceeded",
	"Invalid response format",
	"Service temporarily unavailable",
	"Authentication failed",
	"Resource not found",
}

// Decision is the result of one simulated execution
type Decision struct {
	Kind    Kind
	Message string        // set for TransientFailure
	Snooze  time.Duration // set for Snooze
}

// Err returns the failure as an error, or nil for other kinds
func (d Decision) Err() error {
	if d.Kind != TransientFailure {
		return nil
	}
	return &errors.SimulatedError{Message: d.Message}
}

// Decide routes a [1,100] draw to an outcome kind.
func Decide(draw int) Kind {
	switch {
	case draw <= snoozeCeiling:
		return Snooze
	case draw <= failureCeiling:
		return TransientFailure
	default:
		return Success
	}
}

// Sleeper suspends for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper backed by a timer
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Simulator draws outcomes. It is safe for concurrent use.
type Simulator struct {
	mu    sync.Mutex
	rng   *rand.Rand
	sleep Sleeper
}

// Option configures a Simulator
type Option func(*Simulator)

// WithRand sets the randomness source
func WithRand(rng *rand.Rand) Option {
	return func(s *Simulator) {
		s.rng = rng
	}
}

// WithSleeper replaces the latency suspension
func WithSleeper(sleep Sleeper) Option {
	return func(s *Simulator) {
		s.sleep = sleep
	}
}

// NewSimulator creates a simulator
func NewSimulator(opts ...Option) *Simulator {
	s := &Simulator{
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep: Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// between returns a uniform integer in [lo, hi]
func (s *Simulator) between(lo, hi int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + s.rng.Int63n(hi-lo+1)
}

// Latency picks the execution latency in [minSleep, maxSleep] at millisecond granularity.
func (s *Simulator) Latency(minSleep, maxSleep time.Duration) time.Duration {
	lo, hi := minSleep.Milliseconds(), maxSleep.Milliseconds()
	if lo < 0 {
		lo = 0
	}
	if hi < lo {
		hi = lo
	}
	return time.Duration(s.between(lo, hi)) * time.Millisecond
}

// Roll draws an outcome without suspending.
func (s *Simulator) Roll() Decision {
	switch Decide(int(s.between(1, 100))) {
	case Snooze:
		return Decision{
			Kind:   Snooze,
			Snooze: time.Duration(s.between(minSnooze, maxSnooze)) * time.Second,
		}
	case TransientFailure:
		return Decision{
			Kind:    TransientFailure,
			Message: Errors[s.between(0, int64(len(Errors)-1))],
		}
	default:
		return Decision{Kind: Success}
	}
}

// Simulate suspends for a random latency, then draws an outcome. A cancelled
// context aborts the suspension and yields no decision.
func (s *Simulator) Simulate(ctx context.Context, minSleep, maxSleep time.Duration) (Decision, error) {
	if err := s.sleep(ctx, s.Latency(minSleep, maxSleep)); err != nil {
		return Decision{}, err
	}
	return s.Roll(), nil
}

var defaultSimulator = NewSimulator()

// Simulate runs the package-level simulator
func Simulate(ctx context.Context, minSleep, maxSleep time.Duration) (Decision, error) {
	return defaultSimulator.Simulate(ctx, minSleep, maxSleep)
}
