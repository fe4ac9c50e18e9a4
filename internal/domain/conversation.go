package domain

import "time"

// QueuePriority orders waiting conversations. Critical outranks High, High
// outranks Medium, Medium outranks Low.
type QueuePriority string

const (
	QueuePriorityCritical QueuePriority = "CRITICAL"
	QueuePriorityHigh     QueuePriority = "HIGH"
	QueuePriorityMedium   QueuePriority = "MEDIUM"
	QueuePriorityLow      QueuePriority = "LOW"
)

// Priorities lists all tiers from most to least urgent.
var Priorities = []QueuePriority{
	QueuePriorityCritical,
	QueuePriorityHigh,
	QueuePriorityMedium,
	QueuePriorityLow,
}

// Rank returns the tier index, 0 being the most urgent. Unknown values rank
// below Low.
func (p QueuePriority) Rank() int {
	for i, tier := range Priorities {
		if tier == p {
			return i
		}
	}
	return len(Priorities)
}

// Valid reports whether the priority is a known tier.
func (p QueuePriority) Valid() bool {
	return p.Rank() < len(Priorities)
}

// ConversationState tracks where an open conversation lives: in the waiting
// queue, bound to an agent, or closed.
type ConversationState string

const (
	ConversationStateWaiting  ConversationState = "WAITING"
	ConversationStateAssigned ConversationState = "ASSIGNED"
	ConversationStateClosed   ConversationState = "CLOSED"
)

// Conversation is the durable record of an inbound customer conversation.
type Conversation struct {
	ID             string
	TenantID       string
	CustomerName   string
	CustomerPhone  string
	Priority       QueuePriority
	State          ConversationState
	EnteredQueueAt time.Time
	LastMessageAt  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// QueueEntry is the in-memory representation of a waiting conversation.
// Entries are immutable once enqueued; wait time is derived at read time.
type QueueEntry struct {
	ConversationID string
	TenantID       string
	Priority       QueuePriority
	EnteredQueueAt time.Time
	CustomerName   string
	CustomerPhone  string
}

// WaitTime returns how long the entry has been waiting as of now.
func (e *QueueEntry) WaitTime(now time.Time) time.Duration {
	return now.Sub(e.EnteredQueueAt)
}
