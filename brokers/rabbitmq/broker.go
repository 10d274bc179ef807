package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BranchIntl/jobforge/core"
	"github.com/BranchIntl/jobforge/errors"
	"github.com/BranchIntl/jobforge/job"
	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpChannel is the subset of *amqp.Channel the broker publishes through
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	TxCommit() error
	TxRollback() error
	NotifyReturn(c chan amqp.Return) chan amqp.Return
	Close() error
}

// returnBuffer holds returned messages until the batch that caused them
// drains them
const returnBuffer = 16

// RabbitMQBroker publishes batches as ActiveJob messages inside one AMQP
// transaction per batch
type RabbitMQBroker struct {
	connection     *amqp.Connection
	channel        amqpChannel
	returns        chan amqp.Return
	options        Options
	serializer     core.Serializer
	declaredQueues map[string]bool
	mu             sync.Mutex
	notifyClose    chan *amqp.Error
	isConnected    bool
	channelBroken  bool
	done           chan struct{}

	dial        func(uri string) (*amqp.Connection, error)
	openChannel func() (amqpChannel, error)
}

// NewBroker creates a new RabbitMQ broker
func NewBroker(options Options, serializer core.Serializer) *RabbitMQBroker {
	return &RabbitMQBroker{
		options:        options,
		serializer:     serializer,
		declaredQueues: make(map[string]bool),
		dial:           amqp.Dial,
	}
}

// Connect establishes connection to RabbitMQ
func (r *RabbitMQBroker) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.connect(); err != nil {
		return err
	}

	r.done = make(chan struct{})
	if r.options.ReconnectEnabled {
		go r.handleReconnection(r.notifyClose, r.done)
	}
	return nil
}

// connect dials, opens a transactional channel and declares the exchange.
// The caller must hold the lock.
func (r *RabbitMQBroker) connect() error {
	conn, err := r.dial(r.options.URI)
	if err != nil {
		return errors.NewConnectionError(redact(r.options.URI),
			fmt.Errorf("failed to connect to RabbitMQ: %w", err))
	}

	ch, err := r.newChannel(conn)
	if err != nil {
		conn.Close()
		return err
	}

	r.connection = conn
	r.openChannel = func() (amqpChannel, error) {
		return r.newChannel(conn)
	}
	r.useChannel(ch)
	r.notifyClose = conn.NotifyClose(make(chan *amqp.Error, 1))
	r.isConnected = true

	slog.Debug("Connected to RabbitMQ", "uri", redact(r.options.URI), "exchange", r.options.Exchange)
	return nil
}

// newChannel opens a transactional channel and declares the exchange on it
func (r *RabbitMQBroker) newChannel(conn *amqp.Connection) (amqpChannel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.NewConnectionError(redact(r.options.URI),
			fmt.Errorf("failed to open channel: %w", err))
	}

	if err := ch.Tx(); err != nil {
		ch.Close()
		return nil, errors.NewConnectionError(redact(r.options.URI),
			fmt.Errorf("failed to enable transactions: %w", err))
	}

	if r.options.Exchange != "" {
		if err := ch.ExchangeDeclare(r.options.Exchange, r.options.ExchangeType, true, false, false, false, nil); err != nil {
			ch.Close()
			return nil, errors.NewBrokerError("declare_exchange", "", err)
		}
	}
	return ch, nil
}

// useChannel publishes through ch from now on. Queue declarations belong to
// the channel's server-side state, so they start over. The caller must hold
// the lock.
func (r *RabbitMQBroker) useChannel(ch amqpChannel) {
	r.channel = ch
	r.returns = ch.NotifyReturn(make(chan amqp.Return, returnBuffer))
	r.declaredQueues = make(map[string]bool)
	r.channelBroken = false
}

// reopenChannel replaces a channel the server may have closed after a failed
// operation. The connection itself is left to the reconnect loop. The caller
// must hold the lock.
func (r *RabbitMQBroker) reopenChannel() error {
	if err := r.channel.Close(); err != nil {
		slog.Debug("Failed to close broken channel", "error", err)
	}

	ch, err := r.openChannel()
	if err != nil {
		return err
	}
	r.useChannel(ch)

	slog.Info("Reopened RabbitMQ channel")
	return nil
}

func (r *RabbitMQBroker) handleReconnection(notify chan *amqp.Error, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case err, ok := <-notify:
			if !ok || err == nil {
				return // Graceful shutdown
			}
			slog.Warn("Connection closed, reconnecting...", "error", err)

			r.mu.Lock()
			r.isConnected = false
			r.mu.Unlock()

			for {
				select {
				case <-done:
					return
				case <-time.After(r.options.ReconnectDelay):
				}

				r.mu.Lock()
				select {
				case <-done:
					r.mu.Unlock()
					return
				default:
				}
				err := r.connect()
				notify = r.notifyClose
				r.mu.Unlock()

				if err == nil {
					slog.Info("Reconnected to RabbitMQ")
					break
				}
				slog.Warn("Reconnect failed", "error", err)
			}
		}
	}
}

// Close closes the RabbitMQ connection
func (r *RabbitMQBroker) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done != nil {
		close(r.done)
		r.done = nil
	}
	r.isConnected = false

	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			slog.Debug("Failed to close channel", "error", err)
		}
		r.channel = nil
		r.returns = nil
	}
	if r.connection != nil {
		err := r.connection.Close()
		r.connection = nil
		return err
	}
	return nil
}

// Health checks the RabbitMQ connection health
func (r *RabbitMQBroker) Health() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isConnected || r.connection == nil || r.connection.IsClosed() {
		return errors.ErrNotConnected
	}
	return nil
}

// Type returns the broker type
func (r *RabbitMQBroker) Type() string {
	return "rabbitmq"
}

// EnqueueBatch publishes every job in one transaction. A failure part way
// rolls the transaction back so no job of the batch is delivered.
func (r *RabbitMQBroker) EnqueueBatch(ctx context.Context, jobs []*job.Job) error {
	if err := job.ValidateBatch(jobs); err != nil {
		return errors.NewBrokerError("enqueue", "", err)
	}

	bodies := make([][]byte, len(jobs))
	for i, j := range jobs {
		data, err := r.serializer.Serialize(j)
		if err != nil {
			return err
		}
		bodies[i] = data
	}

	// A transactional channel must not interleave publishes from two batches
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channel == nil || !r.isConnected {
		return errors.ErrNotConnected
	}
	if r.channelBroken {
		if err := r.reopenChannel(); err != nil {
			return err
		}
	}

	collect := r.collectReturns()
	err := r.publishBatch(ctx, jobs, bodies)
	returned := collect()

	if err != nil {
		r.channelBroken = true
		return err
	}
	if len(returned) > 0 {
		return r.unroutable(jobs[0].Queue, returned)
	}
	return nil
}

// publishBatch publishes and commits the batch, rolling back on any publish
// error. The caller must hold the lock.
func (r *RabbitMQBroker) publishBatch(ctx context.Context, jobs []*job.Job, bodies [][]byte) error {
	for i, j := range jobs {
		if err := r.publish(ctx, j, bodies[i]); err != nil {
			r.rollback()
			return errors.NewBrokerError("enqueue", j.Queue, err)
		}
	}

	if err := r.channel.TxCommit(); err != nil {
		return errors.NewBrokerError("commit", jobs[0].Queue, err)
	}
	return nil
}

func (r *RabbitMQBroker) publish(ctx context.Context, j *job.Job, body []byte) error {
	if err := r.ensureQueue(j.Queue, r.workQueueOptions()); err != nil {
		return err
	}

	exchange, key, declare := r.route(j)
	if j.Scheduled() {
		if err := r.ensureQueue(key, declare); err != nil {
			return err
		}
	}

	return r.channel.PublishWithContext(ctx, exchange, key, true, false, buildPublishing(j, body))
}

// collectReturns gathers the messages the server hands back while a batch is
// published. The server sends every return before the commit reply, so once
// TxCommit or TxRollback has returned the collected slice is complete. The
// returned function must be called exactly once.
func (r *RabbitMQBroker) collectReturns() func() []amqp.Return {
	returns := r.returns
	stop := make(chan struct{})
	result := make(chan []amqp.Return, 1)

	go func() {
		var collected []amqp.Return
		for {
			select {
			case ret, ok := <-returns:
				if !ok {
					result <- collected
					return
				}
				collected = append(collected, ret)
			case <-stop:
				for {
					select {
					case ret, ok := <-returns:
						if ok {
							collected = append(collected, ret)
							continue
						}
					default:
					}
					result <- collected
					return
				}
			}
		}
	}()

	return func() []amqp.Return {
		close(stop)
		return <-result
	}
}

// unroutable reports returned messages and forgets their queues so the next
// batch declares them again. The caller must hold the lock.
func (r *RabbitMQBroker) unroutable(queue string, returned []amqp.Return) error {
	keys := make([]string, 0, len(returned))
	for _, ret := range returned {
		delete(r.declaredQueues, ret.RoutingKey)
		keys = append(keys, ret.RoutingKey)
		slog.Error("Job returned unroutable",
			"id", ret.MessageId, "routing_key", ret.RoutingKey, "reply", ret.ReplyText)
	}
	return errors.NewBrokerError("commit", queue,
		fmt.Errorf("%d of the batch's jobs were unroutable: %s", len(returned), strings.Join(keys, ", ")))
}

func (r *RabbitMQBroker) rollback() {
	if err := r.channel.TxRollback(); err != nil {
		slog.Error("Failed to roll back batch", "error", err)
	}
}

// ensureQueue declares a work queue once per channel and binds it to the
// exchange. Queues with an expiry are declared on every call since only a
// declaration renews their lease. The caller must hold the lock.
func (r *RabbitMQBroker) ensureQueue(name string, options QueueOptions) error {
	if r.declaredQueues[name] && options.Expires == 0 {
		return nil
	}

	if _, err := r.channel.QueueDeclare(
		name,                    // name
		true,                    // durable
		false,                   // delete when unused
		false,                   // exclusive
		false,                   // no-wait
		buildQueueArgs(options), // arguments
	); err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}

	// Holding queues are fed through the default exchange
	if r.options.Exchange != "" && options.DeadLetterRoutingKey == "" {
		if err := r.channel.QueueBind(name, name, r.options.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", name, err)
		}
	}

	r.declaredQueues[name] = true
	return nil
}

// QueueLength returns the number of jobs in a queue. It uses its own channel
// since a failed passive declare closes the channel it ran on.
func (r *RabbitMQBroker) QueueLength(ctx context.Context, name string) (int64, error) {
	r.mu.Lock()
	conn := r.connection
	r.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return 0, errors.ErrNotConnected
	}

	ch, err := conn.Channel()
	if err != nil {
		return 0, errors.NewBrokerError("queue_length", name, err)
	}
	defer ch.Close()

	queue, err := ch.QueueDeclarePassive(name, true, false, false, false, nil)
	if err != nil {
		return 0, errors.NewBrokerError("queue_length", name, err)
	}
	return int64(queue.Messages), nil
}
