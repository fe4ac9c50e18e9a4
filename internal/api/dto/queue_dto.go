package dto

import (
	"time"

	"github.com/spec-kit/conversation-queue-service/internal/domain"
)

// EnqueueRequest payload.
type EnqueueRequest struct {
	ConversationID string               `json:"conversationId"`
	CustomerName   string               `json:"customerName"`
	CustomerPhone  string               `json:"customerPhone"`
	Priority       domain.QueuePriority `json:"priority"`
}

// EnqueueResponse reports where the conversation landed.
type EnqueueResponse struct {
	ConversationID string `json:"conversationId"`
	Position       int    `json:"position"`
}

// AcceptNextResponse reports the outcome of an accept attempt. Success false
// with a nil assignment means no work was available.
type AcceptNextResponse struct {
	Success        bool                `json:"success"`
	ConversationID string              `json:"conversationId,omitempty"`
	Assignment     *AssignmentResponse `json:"assignment,omitempty"`
}

// TransferRequest payload.
type TransferRequest struct {
	ConversationID string `json:"conversationId"`
	ToAgentID      string `json:"toAgentId"`
}

// ReleaseRequest payload.
type ReleaseRequest struct {
	ConversationID string                    `json:"conversationId"`
	Disposition    domain.ReleaseDisposition `json:"disposition"`
}

// WithdrawRequest payload.
type WithdrawRequest struct {
	ConversationID string `json:"conversationId"`
}

// MessageActivityRequest payload.
type MessageActivityRequest struct {
	ConversationID string `json:"conversationId"`
	FromCustomer   bool   `json:"fromCustomer"`
}

// SetStatusRequest payload.
type SetStatusRequest struct {
	Status domain.AgentStatus `json:"status"`
}

// AssignmentResponse describes one active assignment.
type AssignmentResponse struct {
	ID             string               `json:"id"`
	ConversationID string               `json:"conversationId"`
	AgentID        string               `json:"agentId"`
	Priority       domain.QueuePriority `json:"priority"`
	CustomerName   string               `json:"customerName"`
	CustomerPhone  string               `json:"customerPhone"`
	AssignedAt     time.Time            `json:"assignedAt"`
	HasUnread      bool                 `json:"hasUnread"`
	LastMessageAt  time.Time            `json:"lastMessageAt"`
	SlaWarning     bool                 `json:"slaWarning"`
}
