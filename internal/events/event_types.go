package events

import (
	"time"

	"github.com/spec-kit/conversation-queue-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventConversationEnqueued    EventType = "conversation_enqueued"
	EventConversationAssigned    EventType = "conversation_assigned"
	EventConversationTransferred EventType = "conversation_transferred"
	EventConversationReleased    EventType = "conversation_released"
	EventConversationWithdrawn   EventType = "conversation_withdrawn"
	EventAgentStatusChanged      EventType = "agent_status_changed"
)

// Event represents a domain event emitted by the queue service.
type Event struct {
	ID             string      `json:"id"`
	Type           EventType   `json:"type"`
	TenantID       string      `json:"tenant_id"`
	ConversationID string      `json:"conversation_id,omitempty"`
	ActorAgentID   string      `json:"actor_agent_id,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
	Payload        interface{} `json:"payload"`
}

// ConversationEnqueuedPayload payload.
type ConversationEnqueuedPayload struct {
	Priority       domain.QueuePriority `json:"priority"`
	Position       int                  `json:"position"`
	EnteredQueueAt time.Time            `json:"entered_queue_at"`
}

// ConversationAssignedPayload payload.
type ConversationAssignedPayload struct {
	AssignmentID string               `json:"assignment_id"`
	AgentID      string               `json:"agent_id"`
	Priority     domain.QueuePriority `json:"priority"`
	AssignedAt   time.Time            `json:"assigned_at"`
}

// ConversationTransferredPayload payload.
type ConversationTransferredPayload struct {
	AssignmentID string `json:"assignment_id"`
	FromAgentID  string `json:"from_agent_id"`
	ToAgentID    string `json:"to_agent_id"`
}

// ConversationReleasedPayload payload.
type ConversationReleasedPayload struct {
	AgentID     string                    `json:"agent_id"`
	Disposition domain.ReleaseDisposition `json:"disposition"`
	Requeued    bool                      `json:"requeued"`
}

// AgentStatusChangedPayload payload.
type AgentStatusChangedPayload struct {
	AgentID   string             `json:"agent_id"`
	OldStatus domain.AgentStatus `json:"old_status"`
	NewStatus domain.AgentStatus `json:"new_status"`
}
