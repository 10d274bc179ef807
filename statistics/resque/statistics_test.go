package resque

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/BranchIntl/jobforge/core"
	"github.com/BranchIntl/jobforge/errors"
	"github.com/BranchIntl/jobforge/job"
	"github.com/alicebob/miniredis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ core.Statistics = (*ResqueStatistics)(nil)

// Helper functions following the redis package pattern
func unreachableOpts(uri string) Options {
	opts := DefaultOptions()
	opts.URI = uri
	opts.ConnectTimeout = 100 * time.Millisecond // Fail fast
	return opts
}

func assertConnError(t *testing.T, err error) {
	require.Error(t, err)
	var connErr *errors.ConnectionError
	assert.ErrorAs(t, err, &connErr)
}

func setupStats(t *testing.T) (*ResqueStatistics, *miniredis.Miniredis) {
	t.Helper()

	m, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)

	opts := DefaultOptions()
	opts.URI = "redis://" + m.Addr()

	stats := NewStatistics(opts)
	stats.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	require.NoError(t, stats.Connect(context.Background()))
	t.Cleanup(func() { stats.Close() })

	return stats, m
}

func TestResqueStatistics_Connect(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"unreachable redis", unreachableOpts("redis://127.0.0.1:1")},
		{"invalid URI", unreachableOpts(":/invalid-uri")},
		{"unsupported scheme", unreachableOpts("http://localhost:6379")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := NewStatistics(tt.opts)

			assertConnError(t, stats.Connect(context.Background()))
			assert.ErrorIs(t, stats.Health(), errors.ErrNotConnected)
		})
	}
}

func TestResqueStatistics_NilPoolOperations(t *testing.T) {
	stats := NewStatistics(DefaultOptions())
	ctx := context.Background()

	assert.ErrorIs(t, stats.Health(), errors.ErrNotConnected)
	assert.NoError(t, stats.Close())

	// Recording without a pool is a no-op
	assert.NotPanics(t, func() {
		stats.RecordProducerStarted("etl")
		stats.RecordBatch("etl", "etl", []*job.Job{job.New("etl", "T", nil)}, time.Millisecond)
	})

	_, err := stats.GetGlobalStats(ctx)
	assert.ErrorIs(t, err, errors.ErrNotConnected)
	_, err = stats.GetProfileStats(ctx, "etl")
	assert.ErrorIs(t, err, errors.ErrNotConnected)
}

func TestResqueStatistics_RecordBatch(t *testing.T) {
	stats, m := setupStats(t)
	ctx := context.Background()

	batch := []*job.Job{job.New("etl", "T", nil), job.New("etl", "T", nil)}
	stats.RecordBatch("data-transform", "etl", batch, time.Millisecond)
	stats.RecordBatch("data-transform", "etl", batch[:1], time.Millisecond)
	stats.RecordBatch("image-resize", "transcoding", batch[:1], time.Millisecond)
	stats.RecordBatchFailed("image-resize", "transcoding", stderrors.New("timeout"))

	generated, err := m.Get("resque:jobforge:stat:generated")
	require.NoError(t, err)
	assert.Equal(t, "4", generated)

	profileStats, err := stats.GetProfileStats(ctx, "data-transform")
	require.NoError(t, err)
	assert.Equal(t, int64(3), profileStats.Generated)
	assert.Equal(t, int64(0), profileStats.Failed)
	assert.False(t, profileStats.Running)

	profileStats, err = stats.GetProfileStats(ctx, "image-resize")
	require.NoError(t, err)
	assert.Equal(t, int64(1), profileStats.Generated)
	assert.Equal(t, int64(1), profileStats.Failed)

	global, err := stats.GetGlobalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), global.Generated)
	assert.Equal(t, int64(1), global.Failed)
}

func TestResqueStatistics_Producers(t *testing.T) {
	stats, m := setupStats(t)
	ctx := context.Background()

	stats.RecordProducerStarted("webhook-delivery")
	stats.RecordProducerStarted("image-resize")

	members, err := m.Members("resque:jobforge:producers")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"webhook-delivery", "image-resize"}, members)

	profileStats, err := stats.GetProfileStats(ctx, "webhook-delivery")
	require.NoError(t, err)
	assert.True(t, profileStats.Running)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), profileStats.StartedAt)

	stats.RecordProducerStopped("webhook-delivery")

	global, err := stats.GetGlobalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"image-resize"}, global.Producers)
	assert.False(t, m.Exists("resque:jobforge:producer:webhook-delivery"))
}

func TestResqueStatistics_Health(t *testing.T) {
	stats, _ := setupStats(t)

	assert.NoError(t, stats.Health())
	assert.Equal(t, "resque", stats.Type())

	require.NoError(t, stats.Close())
	assert.ErrorIs(t, stats.Health(), errors.ErrNotConnected)
}
