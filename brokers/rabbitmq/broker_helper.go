package rabbitmq

import (
	"net/url"
	"strconv"
	"time"

	"github.com/BranchIntl/jobforge/job"
	amqp "github.com/rabbitmq/amqp091-go"
)

// holdingQueueGrace keeps an idle holding queue around a little longer than
// its own TTL before the server drops it.
const holdingQueueGrace = time.Minute

// QueueOptions for queue declaration
type QueueOptions struct {
	// MessageTTL is how long a message can remain in queue
	MessageTTL time.Duration
	// Expires drops the queue after it has been unused this long
	Expires time.Duration
	// DeadLetterExchange and DeadLetterRoutingKey route expired messages
	DeadLetterExchange   string
	DeadLetterRoutingKey string
	// QueueType for defining the type of queue (classic, quorum)
	QueueType string
}

// buildQueueArgs creates the AMQP arguments table from options
func buildQueueArgs(options QueueOptions) amqp.Table {
	args := amqp.Table{}

	if options.MessageTTL > 0 {
		args["x-message-ttl"] = int64(options.MessageTTL / time.Millisecond)
	}

	if options.Expires > 0 {
		args["x-expires"] = int64(options.Expires / time.Millisecond)
	}

	if options.DeadLetterRoutingKey != "" {
		args["x-dead-letter-exchange"] = options.DeadLetterExchange
		args["x-dead-letter-routing-key"] = options.DeadLetterRoutingKey
	}

	if options.QueueType != "" {
		args["x-queue-type"] = options.QueueType
	}

	return args
}

// workQueueOptions describes a queue workers consume from
func (r *RabbitMQBroker) workQueueOptions() QueueOptions {
	return QueueOptions{QueueType: r.options.QueueType}
}

// holdingQueueOptions describes the TTL queue for one delay. Messages expire
// into the work queue through the configured exchange.
func (r *RabbitMQBroker) holdingQueueOptions(queue string, delay time.Duration) QueueOptions {
	return QueueOptions{
		MessageTTL:           delay,
		Expires:              delay + holdingQueueGrace,
		DeadLetterExchange:   r.options.Exchange,
		DeadLetterRoutingKey: queue,
	}
}

// holdingQueueName returns the queue a job with the given delay waits in
func (r *RabbitMQBroker) holdingQueueName(queue string, delay time.Duration) string {
	return queue + r.options.DelayedSuffix + strconv.FormatInt(int64(delay/time.Second), 10)
}

// route returns the exchange, routing key and queue declaration for a job
func (r *RabbitMQBroker) route(j *job.Job) (exchange, key string, declare QueueOptions) {
	if j.Scheduled() {
		name := r.holdingQueueName(j.Queue, j.ScheduledIn)
		return "", name, r.holdingQueueOptions(j.Queue, j.ScheduledIn)
	}
	return r.options.Exchange, j.Queue, r.workQueueOptions()
}

// buildPublishing wraps an encoded job in an AMQP message
func buildPublishing(j *job.Job, body []byte) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    j.EnqueuedAt,
		MessageId:    j.ID,
		Type:         j.Class,
	}
}

// redact hides the password of a URI so it can be logged
func redact(raw string) string {
	uri, err := url.Parse(raw)
	if err != nil || uri.User == nil {
		return raw
	}
	return uri.Redacted()
}
