package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/spec-kit/conversation-queue-service/internal/events"
	"github.com/spec-kit/conversation-queue-service/internal/messaging"
	"github.com/spec-kit/conversation-queue-service/internal/persistence"
)

// newItemChannel is the Redis pub/sub channel other service instances watch
// for queue arrivals.
const newItemChannel = "queue:new-item"

// EventPublisher fans queue events out to the message broker, the Redis
// pub/sub channel and in-process subscribers.
type EventPublisher struct {
	publisher   messaging.Publisher
	redis       *persistence.Redis
	broadcaster *events.TenantBroadcaster
	logger      *zap.Logger
}

// NewEventPublisher constructs the publisher.
func NewEventPublisher(publisher messaging.Publisher, redis *persistence.Redis, broadcaster *events.TenantBroadcaster, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{
		publisher:   publisher,
		redis:       redis,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Handle forwards one event to every outbound channel. Failures are logged
// and never fail the originating queue operation.
func (p *EventPublisher) Handle(ctx context.Context, event events.Event) error {
	routingKey := "queue." + string(event.Type)
	if err := p.publisher.Publish(ctx, routingKey, event); err != nil {
		p.logger.Warn("broker publish failed",
			zap.String("routing_key", routingKey),
			zap.String("event_id", event.ID),
			zap.Error(err))
	}

	if event.Type == events.EventConversationEnqueued {
		p.notifyNewItem(ctx, event)
	}

	if p.broadcaster != nil {
		p.broadcaster.Broadcast(event)
	}
	return nil
}

func (p *EventPublisher) notifyNewItem(ctx context.Context, event events.Event) {
	if p.redis == nil || p.redis.Client == nil {
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("new-item payload marshal failed", zap.Error(err))
		return
	}
	if err := p.redis.Client.Publish(ctx, newItemChannel, body).Err(); err != nil {
		p.logger.Warn("new-item publish failed", zap.Error(err))
	}
}
