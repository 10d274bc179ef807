// Package engines assembles a ready-to-run producer engine from configuration.
// It pairs every broker with the serializer its consumers expect:
//
//   - memory: in-process queues, for dry runs and tests
//   - redis: Resque payloads, optionally in the resque-scheduler layout
//   - rabbitmq: ActiveJob/Sneakers messages
//   - postgres: Oban rows
//
// Example usage:
//
//	cfg := config.DefaultConfig()
//	engine, err := engines.New(cfg, profile.Default())
//	if err != nil {
//		return err
//	}
//	engine.Run(ctx)
package engines

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/BranchIntl/jobforge/config"
	"github.com/BranchIntl/jobforge/core"
	"github.com/BranchIntl/jobforge/errors"
	"github.com/BranchIntl/jobforge/profile"
	"github.com/BranchIntl/jobforge/statistics"
	"github.com/BranchIntl/jobforge/statistics/prometheus"
)

// connector is implemented by statistics backends that hold a connection
type connector interface {
	Connect(ctx context.Context) error
	Close() error
}

// Engine is a configured producer engine together with its components
type Engine struct {
	*core.Engine
	broker   core.Broker
	stats    core.Statistics
	metrics  *prometheus.Statistics
	profiles []profile.Profile

	mu             sync.Mutex
	statsConnected bool
}

// New builds the broker, statistics and engine described by cfg. When
// cfg.Generator.Profiles is empty every generated profile in the registry is
// driven.
func New(cfg *config.Config, registry *profile.Registry) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	profiles, err := selectProfiles(registry, cfg.Generator.Profiles)
	if err != nil {
		return nil, err
	}

	broker, err := NewBroker(cfg.Broker)
	if err != nil {
		return nil, err
	}

	stats, err := NewStatistics(cfg)
	if err != nil {
		return nil, err
	}
	metrics, _ := stats.(*prometheus.Statistics)

	return &Engine{
		Engine:   core.NewEngine(broker, stats, profiles, cfg.EngineOptions()...),
		broker:   broker,
		stats:    stats,
		metrics:  metrics,
		profiles: profiles,
	}, nil
}

// NewStatistics creates the configured statistics backend. The resque backend
// shares the broker's Redis settings.
func NewStatistics(cfg *config.Config) (core.Statistics, error) {
	statsType := statistics.StatsType(cfg.Metrics.Backend)
	if statsType == "" {
		statsType = statistics.NoOp
		if cfg.Metrics.Addr != "" {
			statsType = statistics.Prometheus
		}
	}

	namespace := cfg.Metrics.Namespace
	if statsType == statistics.Resque {
		namespace = cfg.Broker.RedisNamespace
	}

	return statistics.NewStatistics(statistics.Config{
		Type:      statsType,
		URI:       cfg.Broker.RedisURI,
		Namespace: namespace,
		Options: map[string]interface{}{
			"tlsSkipVerify": cfg.Broker.SkipTLSVerify,
			"tlsCertPath":   cfg.Broker.TLSCertPath,
		},
	})
}

// Start connects the statistics backend, then the broker, and launches the
// producers
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c, ok := e.stats.(connector); ok && !e.statsConnected {
		if err := c.Connect(ctx); err != nil {
			return errors.NewConnectionError("",
				fmt.Errorf("failed to connect statistics: %w", err))
		}
		e.statsConnected = true
	}

	err := e.Engine.Start(ctx)
	if err != nil && !stderrors.Is(err, errors.ErrAlreadyStarted) {
		e.closeStats()
	}
	return err
}

// Stop stops every producer and closes the statistics backend
func (e *Engine) Stop() error {
	err := e.Engine.Stop()

	e.mu.Lock()
	e.closeStats()
	e.mu.Unlock()

	return err
}

// Run starts the engine, waits for ctx to be done and stops it
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return e.Stop()
}

func (e *Engine) closeStats() {
	c, ok := e.stats.(connector)
	if !ok || !e.statsConnected {
		return
	}
	if err := c.Close(); err != nil {
		slog.Error("Error closing statistics", "error", err)
	}
	e.statsConnected = false
}

// MustRun starts the engine and panics on error
func (e *Engine) MustRun(ctx context.Context) {
	if err := e.Run(ctx); err != nil {
		panic(fmt.Sprintf("Engine.Run failed: %v", err))
	}
}

// Component accessors

// GetBroker returns the queue client
func (e *Engine) GetBroker() core.Broker {
	return e.broker
}

// GetStats returns the statistics backend
func (e *Engine) GetStats() core.Statistics {
	return e.stats
}

// Metrics returns the Prometheus backend, or nil when metrics are disabled
func (e *Engine) Metrics() *prometheus.Statistics {
	return e.metrics
}

// Profiles returns the profiles the engine drives
func (e *Engine) Profiles() []profile.Profile {
	return e.profiles
}

func selectProfiles(registry *profile.Registry, names []string) ([]profile.Profile, error) {
	if len(names) == 0 {
		return registry.Generated(), nil
	}

	selected := make([]profile.Profile, 0, len(names))
	for _, name := range names {
		p, ok := registry.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown profile %q", errors.ErrInvalidConfig, name)
		}
		if !p.Generated() {
			return nil, fmt.Errorf("%w: profile %q is periodic", errors.ErrInvalidConfig, name)
		}
		selected = append(selected, p)
	}
	return selected, nil
}
