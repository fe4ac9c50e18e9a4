package worker

import (
	"github.com/spec-kit/conversation-queue-service/internal/events"
	"github.com/spec-kit/conversation-queue-service/internal/service"
)

// StartEventWorker wires the outbound event publisher to every queue event
// type on the dispatcher.
func StartEventWorker(dispatcher events.Dispatcher, publisher *service.EventPublisher) {
	if dispatcher == nil || publisher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventConversationEnqueued,
		events.EventConversationAssigned,
		events.EventConversationTransferred,
		events.EventConversationReleased,
		events.EventConversationWithdrawn,
		events.EventAgentStatusChanged,
	} {
		dispatcher.Subscribe(eventType, publisher.Handle)
	}
}
