package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/spec-kit/conversation-queue-service/internal/events"
)

// Publisher delivers queue events to the message broker for external
// collaborators (messaging transport, UI push layer).
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event events.Event) error
	Close() error
}

type rabbitPublisher struct {
	conn     *amqp091.Connection
	exchange string
	logger   *zap.Logger
}

// NewRabbitPublisher connects to RabbitMQ and declares a durable topic
// exchange for queue events.
func NewRabbitPublisher(ctx context.Context, opts ConnectionOptions, exchange string, logger *zap.Logger) (Publisher, error) {
	conn, err := DialWithRetry(ctx, opts)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	return &rabbitPublisher{conn: conn, exchange: exchange, logger: logger}, nil
}

func (p *rabbitPublisher) Publish(ctx context.Context, routingKey string, event events.Event) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msgID := event.ID
	if msgID == "" {
		msgID = uuid.NewString()
	}

	err = ch.PublishWithContext(ctx, p.exchange, routingKey, false, false,
		amqp091.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp091.Persistent,
			MessageId:     msgID,
			CorrelationId: event.ConversationID,
			Timestamp:     time.Now(),
			Body:          body,
		},
	)
	if err == nil {
		p.logger.Debug("event published",
			zap.String("key", routingKey),
			zap.String("exchange", p.exchange))
	}
	return err
}

func (p *rabbitPublisher) Close() error {
	return p.conn.Close()
}

// noopPublisher discards events; used when no broker is configured so the
// process still works standalone.
type noopPublisher struct{}

// NewNoopPublisher returns a publisher that drops everything.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, string, events.Event) error { return nil }
func (noopPublisher) Close() error                                        { return nil }
