// Package jobforge is a synthetic workload generator for job-queue backends.
// It runs one producer loop per job profile; each loop sleeps a random
// interval, builds a random batch of fake jobs and submits it to the queue in
// a single call, backing off after failed submissions.
//
// jobforge writes jobs for several backends:
// - Redis (Resque, resque-scheduler)
// - RabbitMQ (Sneakers/ActiveJob)
// - Postgres (Oban)
// - In-memory, for dry runs
//
// # Example
//
//	package main
//
//	import (
//		"context"
//
//		"github.com/BranchIntl/jobforge/brokers/redis"
//		"github.com/BranchIntl/jobforge/core"
//		"github.com/BranchIntl/jobforge/profile"
//		"github.com/BranchIntl/jobforge/serializers/resque"
//		"github.com/BranchIntl/jobforge/statistics/noop"
//	)
//
//	func main() {
//		broker := redis.NewBroker(redis.DefaultOptions(), resque.NewSerializer())
//
//		engine := core.NewEngine(
//			broker,
//			noop.NewStatistics(),
//			profile.Default().Generated(),
//			core.WithBatchRange(1, 5),
//			core.WithDelayChance(50),
//		)
//
//		if err := engine.Run(context.Background()); err != nil {
//			panic(err)
//		}
//	}
//
// # Command Line
//
// The jobforge command wires everything from flags and environment
// variables (REDIS_URL, REDIS_PROVIDER, RABBITMQ_URL, DATABASE_URL,
// JOBFORGE_BROKER):
//
//	jobforge -broker=redis -profiles=webhook-delivery,image-resize -metrics-addr=:9090
//
// SIGTERM and the first SIGINT stop every producer after its current step.
// A second SIGINT exits immediately with status 1.
//
// # Inspecting Generated Jobs
//
// With the Redis broker, Resque payloads land on plain lists:
//
//	redis-cli LRANGE resque:queue:webhooks 0 -1
//
// and scheduled jobs wait in resque-scheduler's sorted set:
//
//	redis-cli ZRANGE resque:delayed_queue_schedule 0 -1 WITHSCORES
package jobforge
