// Package prometheus exports producer activity as Prometheus metrics.
package prometheus

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/BranchIntl/jobforge/job"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// Statistics records producer activity in a Prometheus registry
type Statistics struct {
	registry *prometheus.Registry

	jobsGenerated   *prometheus.CounterVec
	batches         *prometheus.CounterVec
	batchSize       *prometheus.HistogramVec
	enqueueDuration *prometheus.HistogramVec
	running         prometheus.Gauge
}

// NewStatistics creates metrics in a fresh registry under the given namespace
func NewStatistics(namespace string) *Statistics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Statistics{
		registry: reg,
		jobsGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_generated_total",
			Help:      "The total number of generated jobs accepted by the backend",
		}, []string{"profile", "queue", "scheduled"}),
		batches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "The total number of batch submissions",
		}, []string{"profile", "queue", "result"}),
		batchSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of jobs per submitted batch.",
			Buckets:   prometheus.LinearBuckets(1, 1, 12),
		}, []string{"profile"}),
		enqueueDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "enqueue_duration_seconds",
			Help:      "Duration of batch submissions.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"profile"}),
		running: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "producers_running",
			Help:      "Number of producer loops currently running.",
		}),
	}
}

// Type returns the statistics backend type
func (s *Statistics) Type() string {
	return "prometheus"
}

// Registry exposes the underlying registry
func (s *Statistics) Registry() *prometheus.Registry {
	return s.registry
}

func (s *Statistics) RecordProducerStarted(profile string) {
	s.running.Inc()
}

func (s *Statistics) RecordProducerStopped(profile string) {
	s.running.Dec()
}

func (s *Statistics) RecordBatch(profile, queue string, jobs []*job.Job, duration time.Duration) {
	scheduled := 0
	for _, j := range jobs {
		if j.Scheduled() {
			scheduled++
		}
	}

	s.jobsGenerated.WithLabelValues(profile, queue, strconv.FormatBool(true)).Add(float64(scheduled))
	s.jobsGenerated.WithLabelValues(profile, queue, strconv.FormatBool(false)).Add(float64(len(jobs) - scheduled))
	s.batches.WithLabelValues(profile, queue, resultSuccess).Inc()
	s.batchSize.WithLabelValues(profile).Observe(float64(len(jobs)))
	s.enqueueDuration.WithLabelValues(profile).Observe(duration.Seconds())
}

func (s *Statistics) RecordBatchFailed(profile, queue string, err error) {
	s.batches.WithLabelValues(profile, queue, resultFailure).Inc()
}

// Handler serves the registry in the Prometheus text format
func (s *Statistics) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}

// Serve exposes /metrics on addr until ctx is done
func (s *Statistics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Metrics server shutdown failed", "error", err)
		}
	}()

	slog.Info("Serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
