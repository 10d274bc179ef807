package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/BranchIntl/jobforge/core"
	"github.com/BranchIntl/jobforge/errors"
	redisUtils "github.com/BranchIntl/jobforge/internal/redis"
	"github.com/BranchIntl/jobforge/job"
	"github.com/gomodule/redigo/redis"
)

// RedisBroker writes batches in the layout Resque and resque-scheduler read
type RedisBroker struct {
	pool       *redis.Pool
	namespace  string
	options    Options
	serializer core.Serializer
}

// NewBroker creates a new Redis broker
func NewBroker(options Options, serializer core.Serializer) *RedisBroker {
	return &RedisBroker{
		namespace:  options.Namespace,
		options:    options,
		serializer: serializer,
	}
}

// Connect establishes connection to Redis
func (r *RedisBroker) Connect(ctx context.Context) error {
	pool, err := redisUtils.CreatePool(r.options)
	if err != nil {
		return err
	}

	conn, err := pool.GetContext(ctx)
	if err != nil {
		pool.Close()
		return errors.NewConnectionError(redisUtils.Redact(r.options.URI),
			fmt.Errorf("failed to get connection: %w", err))
	}
	defer conn.Close()

	if _, err := conn.Do("PING"); err != nil {
		pool.Close()
		return errors.NewConnectionError(redisUtils.Redact(r.options.URI),
			fmt.Errorf("ping failed: %w", err))
	}

	r.pool = pool
	slog.Debug("Connected to Redis", "uri", redisUtils.Redact(r.options.URI), "namespace", r.namespace)
	return nil
}

// Close closes the Redis connection pool
func (r *RedisBroker) Close() error {
	if r.pool != nil {
		err := r.pool.Close()
		r.pool = nil
		return err
	}
	return nil
}

// Health checks the Redis connection health
func (r *RedisBroker) Health() error {
	if r.pool == nil {
		return errors.ErrNotConnected
	}

	conn := r.pool.Get()
	defer conn.Close()

	if _, err := conn.Do("PING"); err != nil {
		return errors.NewConnectionError(redisUtils.Redact(r.options.URI),
			fmt.Errorf("health check failed: %w", err))
	}

	return nil
}

// Type returns the broker type
func (r *RedisBroker) Type() string {
	return "redis"
}

// EnqueueBatch writes the whole batch inside one MULTI/EXEC
func (r *RedisBroker) EnqueueBatch(ctx context.Context, jobs []*job.Job) error {
	if r.pool == nil {
		return errors.ErrNotConnected
	}
	if err := job.ValidateBatch(jobs); err != nil {
		return errors.NewBrokerError("enqueue", "", err)
	}

	payloads := make([][]byte, len(jobs))
	for i, j := range jobs {
		data, err := r.serializer.Serialize(j)
		if err != nil {
			return err
		}
		payloads[i] = data
	}

	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return errors.NewBrokerError("enqueue", jobs[0].Queue, err)
	}
	defer conn.Close()

	if err := conn.Send("MULTI"); err != nil {
		return errors.NewBrokerError("enqueue", jobs[0].Queue, err)
	}
	for i, j := range jobs {
		if err := r.send(conn, j, payloads[i]); err != nil {
			_, _ = conn.Do("DISCARD")
			return errors.NewBrokerError("enqueue", j.Queue, err)
		}
	}

	replies, err := redis.Values(conn.Do("EXEC"))
	if err != nil {
		return errors.NewBrokerError("enqueue", jobs[0].Queue, err)
	}
	for _, reply := range replies {
		if rerr, ok := reply.(redis.Error); ok {
			return errors.NewBrokerError("enqueue", jobs[0].Queue, rerr)
		}
	}
	return nil
}

func (r *RedisBroker) send(conn redis.Conn, j *job.Job, data []byte) error {
	if j.Scheduled() && r.options.Scheduler {
		ts := strconv.FormatInt(j.RunAt().Unix(), 10)
		if err := conn.Send("RPUSH", r.delayedKey(ts), data); err != nil {
			return err
		}
		return conn.Send("ZADD", r.scheduleKey(), ts, ts)
	}

	if err := conn.Send("RPUSH", r.queueKey(j.Queue), data); err != nil {
		return err
	}
	return conn.Send("SADD", r.queuesKey(), j.Queue)
}

// QueueLength returns the number of jobs in a queue
func (r *RedisBroker) QueueLength(ctx context.Context, name string) (int64, error) {
	if r.pool == nil {
		return 0, errors.ErrNotConnected
	}

	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return 0, errors.NewBrokerError("queue_length", name, err)
	}
	defer conn.Close()

	length, err := redis.Int64(conn.Do("LLEN", r.queueKey(name)))
	if err != nil {
		return 0, errors.NewBrokerError("queue_length", name, err)
	}

	return length, nil
}

// DelayedLength returns the number of jobs waiting in the scheduler
func (r *RedisBroker) DelayedLength(ctx context.Context) (int64, error) {
	if r.pool == nil {
		return 0, errors.ErrNotConnected
	}

	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return 0, errors.NewBrokerError("delayed_length", "", err)
	}
	defer conn.Close()

	timestamps, err := redis.Strings(conn.Do("ZRANGE", r.scheduleKey(), 0, -1))
	if err != nil {
		return 0, errors.NewBrokerError("delayed_length", "", err)
	}

	var total int64
	for _, ts := range timestamps {
		n, err := redis.Int64(conn.Do("LLEN", r.delayedKey(ts)))
		if err != nil {
			return 0, errors.NewBrokerError("delayed_length", "", err)
		}
		total += n
	}
	return total, nil
}

// Helper methods

func (r *RedisBroker) queueKey(queue string) string {
	return fmt.Sprintf("%squeue:%s", r.namespace, queue)
}

func (r *RedisBroker) queuesKey() string {
	return fmt.Sprintf("%squeues", r.namespace)
}

func (r *RedisBroker) delayedKey(ts string) string {
	return fmt.Sprintf("%sdelayed:%s", r.namespace, ts)
}

func (r *RedisBroker) scheduleKey() string {
	return fmt.Sprintf("%sdelayed_queue_schedule", r.namespace)
}
