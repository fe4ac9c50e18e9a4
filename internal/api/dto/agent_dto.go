package dto

import (
	"time"

	"github.com/spec-kit/conversation-queue-service/internal/domain"
)

// LoginRequest payload.
type LoginRequest struct {
	TenantID string `json:"tenantId"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token.
type LoginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	Agent     AgentResponse `json:"agent"`
}

// RegisterAgentRequest payload.
type RegisterAgentRequest struct {
	TenantID string           `json:"tenantId"`
	Name     string           `json:"name"`
	Email    string           `json:"email"`
	Password string           `json:"password"`
	Role     domain.AgentRole `json:"role"`
	MaxLoad  int              `json:"maxLoad"`
}

// AgentResponse describes an agent profile.
type AgentResponse struct {
	ID       string             `json:"id"`
	TenantID string             `json:"tenantId"`
	Name     string             `json:"name"`
	Email    string             `json:"email"`
	Role     domain.AgentRole   `json:"role"`
	Status   domain.AgentStatus `json:"status"`
	MaxLoad  int                `json:"maxLoad"`
}

// StatusChangeResponse reports the agent state after a transition attempt.
type StatusChangeResponse struct {
	AgentID  string               `json:"agentId"`
	Status   domain.AgentStatus   `json:"status"`
	Activity domain.AgentActivity `json:"activity"`
}
