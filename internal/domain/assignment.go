package domain

import "time"

// ReleaseDisposition says what happens to a conversation when its assignment
// ends.
type ReleaseDisposition string

const (
	DispositionClosed   ReleaseDisposition = "CLOSED"
	DispositionRequeued ReleaseDisposition = "REQUEUED"
)

// Assignment binds one open conversation to exactly one agent.
type Assignment struct {
	ID             string
	ConversationID string
	TenantID       string
	AgentID        string
	Priority       QueuePriority
	CustomerName   string
	CustomerPhone  string
	AssignedAt     time.Time
	HasUnread      bool
	LastMessageAt  time.Time
	ReleasedAt     *time.Time
	Disposition    *ReleaseDisposition
	// EnteredQueueAt is carried from the queue entry so a requeue can
	// preserve the customer's original wait.
	EnteredQueueAt time.Time
}

// Active reports whether the assignment is still live.
func (a *Assignment) Active() bool {
	return a.ReleasedAt == nil
}
