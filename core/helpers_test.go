package core

import (
	"context"
	"log/slog"
	"math/rand"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/BranchIntl/jobforge/profile"
)

// TestSetup provides common test dependencies
type TestSetup struct {
	Broker   *MockBroker
	Stats    *MockStatistics
	Sleeper  *FakeSleeper
	Profiles []profile.Profile
}

// NewTestSetup creates a standard test setup with all mocks and the default
// generated profiles
func NewTestSetup() *TestSetup {
	// Only show errors in tests
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	slog.SetDefault(logger)

	return &TestSetup{
		Broker:   NewMockBroker(),
		Stats:    NewMockStatistics(),
		Sleeper:  &FakeSleeper{},
		Profiles: profile.Default().Generated(),
	}
}

// ContextWithCustomTimeout creates a context with custom timeout
func ContextWithCustomTimeout(t *testing.T, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

// testProfile builds a minimal generated profile
func testProfile(name, queue string) profile.Profile {
	return profile.Profile{
		Name:  name,
		Class: "TestJob",
		Queue: queue,
		Generate: func() map[string]interface{} {
			return map[string]interface{}{"name": name}
		},
	}
}

// FakeSleeper records every requested suspension and only waits a millisecond
type FakeSleeper struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (f *FakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	f.calls = append(f.calls, d)
	f.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Millisecond):
		return nil
	}
}

func (f *FakeSleeper) Calls() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]time.Duration, len(f.calls))
	copy(out, f.calls)
	return out
}

// EngineBuilder helps create engines for testing
type EngineBuilder struct {
	setup    *TestSetup
	profiles []profile.Profile
	options  []EngineOption
}

// NewEngine starts building a test engine that uses the fake sleeper
func (s *TestSetup) NewEngine() *EngineBuilder {
	return &EngineBuilder{
		setup:    s,
		profiles: s.Profiles,
		options:  []EngineOption{WithSleeper(s.Sleeper.Sleep)},
	}
}

// WithProfiles replaces the driven profiles
func (b *EngineBuilder) WithProfiles(profiles ...profile.Profile) *EngineBuilder {
	b.profiles = profiles
	return b
}

// WithSeed makes the engine's draws reproducible
func (b *EngineBuilder) WithSeed(seed int64) *EngineBuilder {
	b.options = append(b.options, WithRand(rand.New(rand.NewSource(seed))))
	return b
}

// WithOptions adds engine options
func (b *EngineBuilder) WithOptions(options ...EngineOption) *EngineBuilder {
	b.options = append(b.options, options...)
	return b
}

// Build creates the engine
func (b *EngineBuilder) Build() *Engine {
	return NewEngine(b.setup.Broker, b.setup.Stats, b.profiles, b.options...)
}
