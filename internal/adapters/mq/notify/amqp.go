package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/okian/spendseg/pkg/logger"
	"github.com/okian/spendseg/pkg/metrics"
)

const publishTimeout = 5 * time.Second

// channel is the subset of *amqp.Channel the publisher needs.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes events as persistent JSON messages to a direct
// exchange.
type AMQPPublisher struct {
	// amqp channels are not safe for concurrent publishing.
	mu         sync.Mutex
	conn       *amqp.Connection
	ch         channel
	exchange   string
	routingKey string
	closed     bool
	logger     logger.Logger
}

// Option configures an AMQPPublisher.
type Option func(*AMQPPublisher)

// WithLogger sets a custom logger for the publisher.
func WithLogger(l logger.Logger) Option {
	return func(p *AMQPPublisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewAMQPPublisher dials url and declares a durable direct exchange.
func NewAMQPPublisher(url, exchange, routingKey string, opts ...Option) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	p, err := newPublisher(ch, exchange, routingKey, opts...)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange, routingKey string, opts ...Option) (*AMQPPublisher, error) {
	p := &AMQPPublisher{
		ch:         ch,
		exchange:   exchange,
		routingKey: routingKey,
		logger:     logger.Default().Named("notify"),
	}
	for _, opt := range opts {
		opt(p)
	}

	err := ch.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return p, nil
}

// Publish implements Publisher.
func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	body, err := e.ToJSON()
	if err != nil {
		metrics.RecordNotification(metrics.OutcomeError)
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		metrics.RecordNotification(metrics.OutcomeError)
		return ErrClosed
	}

	err = p.ch.PublishWithContext(ctx,
		p.exchange,   // exchange
		p.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    e.Timestamp,
			MessageId:    e.AnalysisID,
			Type:         e.Type,
			Body:         body,
		},
	)
	if err != nil {
		metrics.RecordNotification(metrics.OutcomeError)
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}

	metrics.RecordNotification(metrics.OutcomeSuccess)
	p.logger.Debug(ctx, "event published",
		logger.String("type", e.Type),
		logger.String("analysis_id", e.AnalysisID),
		logger.String("exchange", p.exchange),
	)
	return nil
}

// Close closes the channel and connection. It is safe to call more than once.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
