package jobforge

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BranchIntl/jobforge/config"
	"github.com/BranchIntl/jobforge/errors"
	"github.com/BranchIntl/jobforge/profile"
	"github.com/BranchIntl/jobforge/shutdown"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Broker.Type = config.BrokerTypeMemory
	cfg.Generator.MinDelay = 0
	cfg.Generator.MaxDelay = 5 * time.Millisecond
	return cfg
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	var out, logs syncBuffer
	exited := false

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, testConfig(),
			WithOutput(&out),
			WithLogOutput(&logs),
			WithShutdownOptions(shutdown.WithExit(func(int) { exited = true })),
		)
	}()

	assert.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "Producers running")
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	assert.False(t, exited)
	assert.Contains(t, out.String(), "Starting jobforge producers...")
	assert.Contains(t, out.String(), "Received SIGTERM, shutting down...")
	assert.Contains(t, out.String(), "Shutdown complete")
	assert.Contains(t, logs.String(), "Engine stopped")
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Generator.DelayChance = 200

	err := Run(context.Background(), cfg, WithOutput(&syncBuffer{}), WithLogOutput(&syncBuffer{}))
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestRun_NoProfiles(t *testing.T) {
	registry, err := profile.NewRegistry()
	require.NoError(t, err)

	var out syncBuffer
	err = Run(context.Background(), testConfig(),
		WithOutput(&out),
		WithLogOutput(&syncBuffer{}),
		WithRegistry(registry),
	)
	assert.ErrorIs(t, err, errors.ErrNoProfiles)
	assert.NotContains(t, out.String(), "Shutdown complete")
}
