package queue

import "errors"

// Sentinel errors returned by queue operations. The API layer maps these to
// machine-readable DomainError codes; callers inside the process should test
// with errors.Is.
var (
	// ErrAlreadyActive means the conversation currently holds an active
	// assignment and cannot be enqueued.
	ErrAlreadyActive = errors.New("conversation already assigned")

	// ErrNotAssigned means the conversation is not assigned to the agent the
	// caller claimed, usually because the caller acted on stale state.
	ErrNotAssigned = errors.New("conversation not assigned to agent")

	// ErrCapacityExceeded means an operation would push an agent past
	// maxLoad. Never clamped silently.
	ErrCapacityExceeded = errors.New("agent at maximum load")

	// ErrInvalidTransition means the requested status change is not allowed
	// from the agent's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrAgentUnavailable means the agent's declared status prevents taking
	// work, regardless of load headroom.
	ErrAgentUnavailable = errors.New("agent not available for work")

	// ErrUnknownAgent means the agent is not registered with the tenant.
	ErrUnknownAgent = errors.New("agent not registered")

	// ErrUnknownConversation means no queue entry or assignment exists for
	// the conversation.
	ErrUnknownConversation = errors.New("conversation not found")
)
