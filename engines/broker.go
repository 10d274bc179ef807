package engines

import (
	"fmt"
	"log/slog"

	"github.com/BranchIntl/jobforge/brokers/memory"
	"github.com/BranchIntl/jobforge/brokers/postgres"
	"github.com/BranchIntl/jobforge/brokers/rabbitmq"
	"github.com/BranchIntl/jobforge/brokers/redis"
	"github.com/BranchIntl/jobforge/config"
	"github.com/BranchIntl/jobforge/core"
	"github.com/BranchIntl/jobforge/errors"
	"github.com/BranchIntl/jobforge/serializers/oban"
	"github.com/BranchIntl/jobforge/serializers/resque"
	"github.com/BranchIntl/jobforge/serializers/sneakers"
)

// NewBroker creates the queue client for the configured broker type
func NewBroker(cfg config.BrokerConfig) (core.Broker, error) {
	switch cfg.Type {
	case config.BrokerTypeMemory:
		options := memory.DefaultOptions()
		options.QueueSize = cfg.QueueSize
		return memory.NewBroker(options), nil

	case config.BrokerTypeRedis:
		serializer := resque.NewSerializer()
		serializer.SetUseNumber(cfg.UseNumber)

		options := redis.DefaultOptions()
		options.URI = cfg.RedisURI
		options.Namespace = cfg.RedisNamespace
		options.Scheduler = cfg.RedisScheduler
		options.MaxConnections = cfg.Connections
		options.TLSSkipVerify = cfg.SkipTLSVerify
		options.TLSCertPath = cfg.TLSCertPath

		if !cfg.UseNumber {
			slog.Debug("Decoding Resque payloads with float64 numbers; set -use-number to keep precision")
		}
		return redis.NewBroker(options, serializer), nil

	case config.BrokerTypeRabbitMQ:
		options := rabbitmq.DefaultOptions()
		options.URI = cfg.RabbitMQURI
		options.Exchange = cfg.Exchange
		options.ExchangeType = cfg.ExchangeType
		options.QueueType = cfg.QueueType
		return rabbitmq.NewBroker(options, sneakers.NewSerializer()), nil

	case config.BrokerTypePostgres:
		options := postgres.DefaultOptions()
		options.URI = cfg.PostgresURI
		options.Prefix = cfg.PostgresPrefix
		options.MaxConnections = int32(cfg.Connections)
		return postgres.NewBroker(options, oban.NewSerializer()), nil

	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnsupportedBroker, cfg.Type)
	}
}
