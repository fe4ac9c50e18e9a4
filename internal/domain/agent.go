package domain

import "time"

// AgentRole enumerates operator roles inside a tenant.
type AgentRole string

const (
	AgentRoleAgent      AgentRole = "AGENT"
	AgentRoleSupervisor AgentRole = "SUPERVISOR"
	AgentRoleAdmin      AgentRole = "ADMIN"
)

// AgentStatus is the agent's manually declared intent. Automatic busy/idle
// inference never overrides it; see AgentActivity.
type AgentStatus string

const (
	AgentStatusAvailable AgentStatus = "AVAILABLE"
	AgentStatusAway      AgentStatus = "AWAY"
	AgentStatusOnBreak   AgentStatus = "ON_BREAK"
	AgentStatusOffline   AgentStatus = "OFFLINE"
)

// Valid reports whether the status is one of the known intents.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusAvailable, AgentStatusAway, AgentStatusOnBreak, AgentStatusOffline:
		return true
	}
	return false
}

// AgentActivity is derived from current load and is never stored.
type AgentActivity string

const (
	AgentActivityIdle AgentActivity = "IDLE"
	AgentActivityBusy AgentActivity = "BUSY"
)

// Agent models a lawyer ("advogado") or staff member who can take
// conversations from the inbox queue.
type Agent struct {
	ID                     string
	TenantID               string
	Name                   string
	Email                  string
	PasswordHash           string
	Role                   AgentRole
	Status                 AgentStatus
	CurrentLoad            int
	MaxLoad                int
	CompletedToday         int
	AvgResponseTimeMinutes float64
	LastAssignedAt         *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Activity derives busy/idle from the live load.
func (a *Agent) Activity() AgentActivity {
	if a.CurrentLoad > 0 {
		return AgentActivityBusy
	}
	return AgentActivityIdle
}

// CanTakeWork reports match eligibility: intent must be Available and load
// under capacity.
func (a *Agent) CanTakeWork() bool {
	return a.Status == AgentStatusAvailable && a.CurrentLoad < a.MaxLoad
}
