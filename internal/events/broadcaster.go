package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// TenantBroadcaster provides in-memory pub/sub of queue events keyed by
// tenant. External collaborators (the UI push layer) subscribe to a tenant
// and receive events as they are published, replacing polling with
// event-driven updates.
type TenantBroadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan Event // tenantID -> subID -> ch
	logger      *zap.Logger
}

// NewTenantBroadcaster creates a broadcaster. Pass nil logger for no-op.
func NewTenantBroadcaster(logger *zap.Logger) *TenantBroadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TenantBroadcaster{
		subscribers: make(map[string]map[string]chan Event),
		logger:      logger,
	}
}

// Subscribe registers a subscriber for a tenant's events. Returns the
// receive channel and a subscription id. The subscription is cleaned up
// when ctx is cancelled.
func (b *TenantBroadcaster) Subscribe(ctx context.Context, tenantID string) (<-chan Event, string) {
	subID := uuid.NewString()
	ch := make(chan Event, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[tenantID]; !ok {
		b.subscribers[tenantID] = make(map[string]chan Event)
	}
	b.subscribers[tenantID][subID] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.Unsubscribe(tenantID, subID)
	}()

	return ch, subID
}

// Broadcast sends an event to all subscribers of the event's tenant.
// Non-blocking: events are dropped for subscribers whose channels are full.
// Sends stay under the read lock so Unsubscribe cannot close a channel
// mid-send; the write lock serializes close against every in-flight send.
func (b *TenantBroadcaster) Broadcast(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers[event.TenantID] {
		select {
		case ch <- event:
		default:
			b.logger.Debug("dropped event for slow subscriber",
				zap.String("tenant_id", event.TenantID),
				zap.String("event_id", event.ID))
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *TenantBroadcaster) Unsubscribe(tenantID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[tenantID]
	if !ok {
		return
	}
	ch, exists := subs[subID]
	if !exists {
		return
	}
	delete(subs, subID)
	close(ch)
	if len(subs) == 0 {
		delete(b.subscribers, tenantID)
	}
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *TenantBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for tenantID, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, tenantID)
	}
}
