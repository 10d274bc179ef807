package statistics

import (
	"fmt"
	"time"

	"github.com/BranchIntl/jobforge/core"
	"github.com/BranchIntl/jobforge/errors"
	"github.com/BranchIntl/jobforge/statistics/noop"
	"github.com/BranchIntl/jobforge/statistics/prometheus"
	"github.com/BranchIntl/jobforge/statistics/resque"
)

// StatsType represents the type of statistics backend
type StatsType string

const (
	// NoOp statistics type
	NoOp StatsType = "noop"
	// Prometheus statistics type
	Prometheus StatsType = "prometheus"
	// Resque statistics type, counters kept in Redis
	Resque StatsType = "resque"
)

// Config is a generic statistics configuration
type Config struct {
	Type      StatsType
	URI       string
	Namespace string
	Options   map[string]interface{}
}

// NewStatistics creates a statistics backend based on the configuration.
// Backends that hold a connection also implement Connect and Close.
func NewStatistics(config Config) (core.Statistics, error) {
	switch config.Type {
	case Resque:
		opts := resque.DefaultOptions()
		opts.URI = config.URI
		if config.Namespace != "" {
			opts.Namespace = config.Namespace
		}

		// Apply custom options
		if maxConn, ok := config.Options["maxConnections"].(int); ok {
			opts.MaxConnections = maxConn
		}
		if skipVerify, ok := config.Options["tlsSkipVerify"].(bool); ok {
			opts.TLSSkipVerify = skipVerify
		}
		if certPath, ok := config.Options["tlsCertPath"].(string); ok {
			opts.TLSCertPath = certPath
		}
		if timeout, ok := config.Options["connectTimeout"].(time.Duration); ok {
			opts.ConnectTimeout = timeout
		}

		return resque.NewStatistics(opts), nil

	case Prometheus:
		namespace := config.Namespace
		if namespace == "" {
			namespace = "jobforge"
		}
		return prometheus.NewStatistics(namespace), nil

	case NoOp, "":
		return noop.NewStatistics(), nil

	default:
		return nil, fmt.Errorf("%w: unknown statistics type %q", errors.ErrInvalidConfig, config.Type)
	}
}
