package resque

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BranchIntl/jobforge/errors"
	redisUtils "github.com/BranchIntl/jobforge/internal/redis"
	"github.com/BranchIntl/jobforge/job"
	"github.com/gomodule/redigo/redis"
)

// ProfileStats holds the counters of one profile
type ProfileStats struct {
	Profile   string
	Generated int64
	Failed    int64
	Running   bool
	StartedAt time.Time
}

// GlobalStats holds the counters across all profiles
type GlobalStats struct {
	Generated int64
	Failed    int64
	Producers []string
}

// ResqueStatistics keeps producer counters in Redis next to the Resque
// stat:* keys, so they can be read from the same dashboards
type ResqueStatistics struct {
	pool      *redis.Pool
	namespace string
	options   Options
	now       func() time.Time
}

// NewStatistics creates a new Resque statistics backend
func NewStatistics(options Options) *ResqueStatistics {
	return &ResqueStatistics{
		namespace: options.Namespace,
		options:   options,
		now:       time.Now,
	}
}

// Connect establishes connection to Redis
func (r *ResqueStatistics) Connect(ctx context.Context) error {
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
	return nil
}

// Close closes the Redis connection pool
func (r *ResqueStatistics) Close() error {
	if r.pool == nil {
		return nil
	}
	err := r.pool.Close()
	r.pool = nil
	return err
}

// Health checks the Redis connection health
func (r *ResqueStatistics) Health() error {
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

// Type returns the statistics backend type
func (r *ResqueStatistics) Type() string {
	return "resque"
}

// RecordProducerStarted adds the profile to the producers set
func (r *ResqueStatistics) RecordProducerStarted(profile string) {
	r.exec("producer started", profile, func(conn redis.Conn) error {
		if err := conn.Send("SADD", r.producersKey(), profile); err != nil {
			return err
		}
		return conn.Send("SET", r.producerKey(profile), r.now().UTC().Format(time.RFC3339))
	})
}

// RecordProducerStopped removes the profile from the producers set
func (r *ResqueStatistics) RecordProducerStopped(profile string) {
	r.exec("producer stopped", profile, func(conn redis.Conn) error {
		if err := conn.Send("SREM", r.producersKey(), profile); err != nil {
			return err
		}
		return conn.Send("DEL", r.producerKey(profile))
	})
}

// RecordBatch increments the generated counters by the batch size
func (r *ResqueStatistics) RecordBatch(profile, queue string, jobs []*job.Job, duration time.Duration) {
	r.exec("batch", profile, func(conn redis.Conn) error {
		if err := conn.Send("INCRBY", r.statGeneratedKey(""), len(jobs)); err != nil {
			return err
		}
		return conn.Send("INCRBY", r.statGeneratedKey(profile), len(jobs))
	})
}

// RecordBatchFailed increments the failed counters
func (r *ResqueStatistics) RecordBatchFailed(profile, queue string, err error) {
	r.exec("batch failed", profile, func(conn redis.Conn) error {
		if err := conn.Send("INCR", r.statFailedKey("")); err != nil {
			return err
		}
		return conn.Send("INCR", r.statFailedKey(profile))
	})
}

// GetProfileStats returns the counters of one profile
func (r *ResqueStatistics) GetProfileStats(ctx context.Context, profile string) (ProfileStats, error) {
	if r.pool == nil {
		return ProfileStats{}, errors.ErrNotConnected
	}

	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return ProfileStats{}, err
	}
	defer conn.Close()

	values, err := redis.Values(conn.Do("MGET",
		r.statGeneratedKey(profile), r.statFailedKey(profile), r.producerKey(profile)))
	if err != nil {
		return ProfileStats{}, fmt.Errorf("failed to get profile stats: %w", err)
	}

	stats := ProfileStats{Profile: profile}
	if stats.Generated, err = int64OrZero(values[0]); err != nil {
		return ProfileStats{}, err
	}
	if stats.Failed, err = int64OrZero(values[1]); err != nil {
		return ProfileStats{}, err
	}
	if values[2] != nil {
		started, err := redis.String(values[2], nil)
		if err != nil {
			return ProfileStats{}, err
		}
		stats.Running = true
		stats.StartedAt, _ = time.Parse(time.RFC3339, started)
	}
	return stats, nil
}

// GetGlobalStats returns the counters across all profiles
func (r *ResqueStatistics) GetGlobalStats(ctx context.Context) (GlobalStats, error) {
	if r.pool == nil {
		return GlobalStats{}, errors.ErrNotConnected
	}

	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return GlobalStats{}, err
	}
	defer conn.Close()

	values, err := redis.Values(conn.Do("MGET", r.statGeneratedKey(""), r.statFailedKey("")))
	if err != nil {
		return GlobalStats{}, fmt.Errorf("failed to get global stats: %w", err)
	}

	var stats GlobalStats
	if stats.Generated, err = int64OrZero(values[0]); err != nil {
		return GlobalStats{}, err
	}
	if stats.Failed, err = int64OrZero(values[1]); err != nil {
		return GlobalStats{}, err
	}
	if stats.Producers, err = redis.Strings(conn.Do("SMEMBERS", r.producersKey())); err != nil {
		return GlobalStats{}, fmt.Errorf("failed to get producers: %w", err)
	}
	return stats, nil
}

// exec runs the commands queued by send in one MULTI/EXEC. Statistics never
// fail a producer, so errors are only logged.
func (r *ResqueStatistics) exec(what, profile string, send func(conn redis.Conn) error) {
	if r.pool == nil {
		return
	}

	conn := r.pool.Get()
	defer conn.Close()

	err := conn.Send("MULTI")
	if err == nil {
		err = send(conn)
	}
	if err == nil {
		_, err = conn.Do("EXEC")
	}
	if err != nil {
		slog.Warn("Failed to record statistics", "event", what, "profile", profile, "error", err)
	}
}

func int64OrZero(v interface{}) (int64, error) {
	if v == nil {
		return 0, nil
	}
	return redis.Int64(v, nil)
}

func (r *ResqueStatistics) producersKey() string {
	return r.namespace + "jobforge:producers"
}

func (r *ResqueStatistics) producerKey(profile string) string {
	return r.namespace + "jobforge:producer:" + profile
}

func (r *ResqueStatistics) statGeneratedKey(profile string) string {
	key := r.namespace + "jobforge:stat:generated"
	if profile != "" {
		key = key + ":" + profile
	}
	return key
}

func (r *ResqueStatistics) statFailedKey(profile string) string {
	key := r.namespace + "jobforge:stat:failed"
	if profile != "" {
		key = key + ":" + profile
	}
	return key
}
