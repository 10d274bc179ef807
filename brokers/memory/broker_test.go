package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BranchIntl/jobforge/errors"
	"github.com/BranchIntl/jobforge/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJob(queue string) *job.Job {
	return job.New(queue, "TestJob", map[string]interface{}{"n": 1})
}

func TestNewBroker(t *testing.T) {
	options := Options{QueueSize: 1000}
	broker := NewBroker(options)

	require.NotNil(t, broker)
	assert.Equal(t, 1000, broker.queueSize)
	assert.NotNil(t, broker.queues)
	assert.False(t, broker.connected)
	assert.Equal(t, options, broker.options)
}

func TestMemoryBroker_Connect(t *testing.T) {
	broker := NewBroker(DefaultOptions())
	ctx := context.Background()

	// Initially not connected
	assert.False(t, broker.connected)

	require.NoError(t, broker.Connect(ctx))
	assert.True(t, broker.connected)

	// Multiple connects should be fine
	require.NoError(t, broker.Connect(ctx))
	assert.True(t, broker.connected)
}

func TestMemoryBroker_Close(t *testing.T) {
	broker := NewBroker(DefaultOptions())
	ctx := context.Background()
	require.NoError(t, broker.Connect(ctx))
	require.NoError(t, broker.EnqueueBatch(ctx, []*job.Job{newJob("test_queue")}))

	require.NoError(t, broker.Close())
	assert.False(t, broker.connected)

	// Recorded jobs survive close
	assert.Len(t, broker.Jobs("test_queue"), 1)

	// Multiple closes should be fine
	require.NoError(t, broker.Close())
}

func TestMemoryBroker_Health(t *testing.T) {
	broker := NewBroker(DefaultOptions())

	assert.ErrorIs(t, broker.Health(), errors.ErrNotConnected)

	require.NoError(t, broker.Connect(context.Background()))
	assert.NoError(t, broker.Health())

	require.NoError(t, broker.Close())
	assert.ErrorIs(t, broker.Health(), errors.ErrNotConnected)
}

func TestMemoryBroker_Type(t *testing.T) {
	broker := NewBroker(DefaultOptions())
	assert.Equal(t, "memory", broker.Type())
}

func TestMemoryBroker_EnqueueBatch(t *testing.T) {
	broker := NewBroker(Options{QueueSize: 3})
	ctx := context.Background()

	t.Run("not connected", func(t *testing.T) {
		err := broker.EnqueueBatch(ctx, []*job.Job{newJob("test_queue")})
		assert.ErrorIs(t, err, errors.ErrNotConnected)
	})

	require.NoError(t, broker.Connect(ctx))

	t.Run("empty batch", func(t *testing.T) {
		err := broker.EnqueueBatch(ctx, nil)
		assert.ErrorIs(t, err, errors.ErrEmptyBatch)
	})

	t.Run("invalid job", func(t *testing.T) {
		bad := newJob("test_queue")
		bad.ScheduledIn = 500 * time.Millisecond
		err := broker.EnqueueBatch(ctx, []*job.Job{newJob("test_queue"), bad})
		assert.ErrorIs(t, err, errors.ErrInvalidJob)
		assert.Empty(t, broker.Jobs("test_queue"))
	})

	t.Run("successful enqueue", func(t *testing.T) {
		batch := []*job.Job{newJob("test_queue"), newJob("test_queue")}
		require.NoError(t, broker.EnqueueBatch(ctx, batch))

		length, err := broker.QueueLength(ctx, "test_queue")
		require.NoError(t, err)
		assert.Equal(t, int64(2), length)
		assert.Len(t, broker.Batches(), 1)
		assert.Equal(t, batch[0].ID, broker.Jobs("test_queue")[0].ID)
	})

	t.Run("queue full rejects the whole batch", func(t *testing.T) {
		err := broker.EnqueueBatch(ctx, []*job.Job{newJob("test_queue"), newJob("test_queue")})

		var brokerErr *errors.BrokerError
		require.ErrorAs(t, err, &brokerErr)
		assert.Equal(t, "enqueue", brokerErr.Op)
		assert.Equal(t, "test_queue", brokerErr.Queue)
		assert.ErrorIs(t, err, errors.ErrQueueFull)

		length, _ := broker.QueueLength(ctx, "test_queue")
		assert.Equal(t, int64(2), length)
		assert.Len(t, broker.Batches(), 1)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := broker.EnqueueBatch(cctx, []*job.Job{newJob("other")})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestMemoryBroker_Unbounded(t *testing.T) {
	broker := NewBroker(Options{})
	ctx := context.Background()
	require.NoError(t, broker.Connect(ctx))

	for i := 0; i < 50; i++ {
		require.NoError(t, broker.EnqueueBatch(ctx, []*job.Job{newJob("q")}))
	}
	length, err := broker.QueueLength(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, int64(50), length)
}

func TestMemoryBroker_ConcurrentEnqueue(t *testing.T) {
	broker := NewBroker(DefaultOptions())
	ctx := context.Background()
	require.NoError(t, broker.Connect(ctx))

	var wg sync.WaitGroup
	for _, queue := range []string{"inference", "etl", "webhooks", "transcoding"} {
		wg.Add(1)
		go func(queue string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				assert.NoError(t, broker.EnqueueBatch(ctx, []*job.Job{newJob(queue), newJob(queue)}))
			}
		}(queue)
	}
	wg.Wait()

	assert.Len(t, broker.Batches(), 400)
	assert.ElementsMatch(t, []string{"inference", "etl", "webhooks", "transcoding"}, broker.Queues())
	for _, queue := range broker.Queues() {
		assert.Len(t, broker.Jobs(queue), 200)
	}
}

func TestMemoryBroker_Reset(t *testing.T) {
	broker := NewBroker(DefaultOptions())
	ctx := context.Background()
	require.NoError(t, broker.Connect(ctx))
	require.NoError(t, broker.EnqueueBatch(ctx, []*job.Job{newJob("q")}))

	broker.Reset()

	assert.Empty(t, broker.Batches())
	assert.Empty(t, broker.Queues())
	length, _ := broker.QueueLength(ctx, "q")
	assert.Zero(t, length)
}
