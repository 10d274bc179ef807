package jobforge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/BranchIntl/jobforge/config"
	"github.com/BranchIntl/jobforge/engines"
	"github.com/BranchIntl/jobforge/profile"
	"github.com/BranchIntl/jobforge/shutdown"
)

// Settings for a Run beyond what the configuration holds
type Settings struct {
	out             io.Writer
	logOutput       io.Writer
	registry        *profile.Registry
	shutdownOptions []shutdown.Option
}

// Option configures Run
type Option func(*Settings)

// WithOutput sets where status lines are printed
func WithOutput(w io.Writer) Option {
	return func(s *Settings) {
		s.out = w
	}
}

// WithLogOutput sets where log records are written
func WithLogOutput(w io.Writer) Option {
	return func(s *Settings) {
		s.logOutput = w
	}
}

// WithRegistry replaces the built-in profile catalog
func WithRegistry(registry *profile.Registry) Option {
	return func(s *Settings) {
		s.registry = registry
	}
}

// WithShutdownOptions configures the shutdown coordinator
func WithShutdownOptions(opts ...shutdown.Option) Option {
	return func(s *Settings) {
		s.shutdownOptions = append(s.shutdownOptions, opts...)
	}
}

// Run starts one producer per profile and blocks until SIGTERM, SIGINT or
// ctx cancellation, then stops every producer before returning. A second
// SIGINT exits the process immediately.
func Run(ctx context.Context, cfg *config.Config, opts ...Option) error {
	settings := &Settings{
		out:       os.Stdout,
		logOutput: os.Stderr,
	}
	for _, opt := range opts {
		opt(settings)
	}
	if settings.registry == nil {
		settings.registry = profile.Default()
	}

	logger, err := cfg.Logging.NewLogger(settings.logOutput)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	engine, err := engines.New(cfg, settings.registry)
	if err != nil {
		return err
	}

	coordinator := shutdown.NewCoordinator(
		append([]shutdown.Option{shutdown.WithOutput(settings.out)}, settings.shutdownOptions...)...,
	)
	release := coordinator.Notify()
	defer release()

	returned := make(chan struct{})
	defer close(returned)
	go func() {
		select {
		case <-ctx.Done():
			coordinator.Terminate()
		case <-coordinator.Context().Done():
		case <-returned:
		}
	}()

	fmt.Fprintln(settings.out, "Starting jobforge producers...")
	if err := engine.Start(coordinator.Context()); err != nil {
		return err
	}

	if metrics := engine.Metrics(); metrics != nil {
		go func() {
			if err := metrics.Serve(coordinator.Context(), cfg.Metrics.Addr); err != nil {
				slog.Error("Metrics server failed", "addr", cfg.Metrics.Addr, "error", err)
			}
		}()
	}

	slog.Info("Producers running",
		"broker", engine.GetBroker().Type(),
		"profiles", len(engine.Profiles()),
		"periodic", len(settings.registry.Periodic()))

	if err := coordinator.Run(engine); err != nil {
		return err
	}

	fmt.Fprintln(settings.out, "Shutdown complete")
	return nil
}
