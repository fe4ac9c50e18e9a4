package queue

import (
	"sort"
	"time"

	"github.com/spec-kit/conversation-queue-service/internal/domain"
)

// registry tracks the live status and load of a single tenant's agents. Not
// safe for concurrent use; the owning tenant state serializes access.
type registry struct {
	agents map[string]*domain.Agent
}

func newRegistry() *registry {
	return &registry{agents: make(map[string]*domain.Agent)}
}

// allowedStatusTransitions encodes the manual intent state machine. Setting
// the current status again is always a no-op.
var allowedStatusTransitions = map[domain.AgentStatus][]domain.AgentStatus{
	domain.AgentStatusOffline:   {domain.AgentStatusAway, domain.AgentStatusAvailable},
	domain.AgentStatusAvailable: {domain.AgentStatusAway, domain.AgentStatusOnBreak, domain.AgentStatusOffline},
	domain.AgentStatusAway:      {domain.AgentStatusAvailable, domain.AgentStatusOnBreak, domain.AgentStatusOffline},
	domain.AgentStatusOnBreak:   {domain.AgentStatusAvailable, domain.AgentStatusAway, domain.AgentStatusOffline},
}

func transitionAllowed(current, next domain.AgentStatus) bool {
	if current == next {
		return true
	}
	for _, candidate := range allowedStatusTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// upsert stores a copy of the agent, keeping the registry the single owner
// of mutable agent state.
func (r *registry) upsert(agent domain.Agent) {
	copied := agent
	r.agents[agent.ID] = &copied
}

func (r *registry) get(agentID string) (*domain.Agent, bool) {
	agent, ok := r.agents[agentID]
	return agent, ok
}

// previewStatus runs the manual intent state machine without applying it.
// On success it returns the agent as it would look after the change; on an
// invalid transition it returns the agent unchanged so callers can report
// the current state.
func (r *registry) previewStatus(agentID string, status domain.AgentStatus) (domain.Agent, error) {
	agent, ok := r.agents[agentID]
	if !ok {
		return domain.Agent{}, ErrUnknownAgent
	}
	if !status.Valid() || !transitionAllowed(agent.Status, status) {
		return *agent, ErrInvalidTransition
	}
	updated := *agent
	updated.Status = status
	return updated, nil
}

// setStatus applies the manual intent state machine. The agent's load is
// never consulted: manual opt-out always wins over automatic inference.
func (r *registry) setStatus(agentID string, status domain.AgentStatus) (*domain.Agent, error) {
	if _, err := r.previewStatus(agentID, status); err != nil {
		agent := r.agents[agentID]
		return agent, err
	}
	agent := r.agents[agentID]
	agent.Status = status
	return agent, nil
}

// incrementLoad is called by the assignment engine on assignment creation.
// The engine pre-checks capacity under the tenant lock, so a failure here
// indicates a bookkeeping race and the operation is rejected outright.
func (r *registry) incrementLoad(agentID string, at time.Time) error {
	agent, ok := r.agents[agentID]
	if !ok {
		return ErrUnknownAgent
	}
	if agent.CurrentLoad >= agent.MaxLoad {
		return ErrCapacityExceeded
	}
	agent.CurrentLoad++
	assignedAt := at
	agent.LastAssignedAt = &assignedAt
	return nil
}

func (r *registry) decrementLoad(agentID string) error {
	agent, ok := r.agents[agentID]
	if !ok {
		return ErrUnknownAgent
	}
	if agent.CurrentLoad <= 0 {
		return ErrNotAssigned
	}
	agent.CurrentLoad--
	return nil
}

// recordCompletion updates the rolling daily metrics when an assignment
// closes.
func (r *registry) recordCompletion(agentID string, responseMinutes float64) {
	agent, ok := r.agents[agentID]
	if !ok {
		return
	}
	total := agent.AvgResponseTimeMinutes*float64(agent.CompletedToday) + responseMinutes
	agent.CompletedToday++
	agent.AvgResponseTimeMinutes = total / float64(agent.CompletedToday)
}

// resetDailyCounters zeroes the rolling metrics. The daily boundary is owned
// by an external scheduler.
func (r *registry) resetDailyCounters() {
	for _, agent := range r.agents {
		agent.CompletedToday = 0
		agent.AvgResponseTimeMinutes = 0
	}
}

// listAvailable returns copies of agents eligible for matching, least loaded
// first, ties broken by longest time since last assignment so work spreads
// evenly instead of saturating one agent.
func (r *registry) listAvailable() []domain.Agent {
	eligible := make([]domain.Agent, 0, len(r.agents))
	for _, agent := range r.agents {
		if agent.CanTakeWork() {
			eligible = append(eligible, *agent)
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].CurrentLoad != eligible[j].CurrentLoad {
			return eligible[i].CurrentLoad < eligible[j].CurrentLoad
		}
		ti, tj := eligible[i].LastAssignedAt, eligible[j].LastAssignedAt
		switch {
		case ti == nil && tj == nil:
			return eligible[i].ID < eligible[j].ID
		case ti == nil:
			return true
		case tj == nil:
			return false
		case !ti.Equal(*tj):
			return ti.Before(*tj)
		}
		return eligible[i].ID < eligible[j].ID
	})
	return eligible
}

// all returns copies of every registered agent in stable order.
func (r *registry) all() []domain.Agent {
	out := make([]domain.Agent, 0, len(r.agents))
	for _, agent := range r.agents {
		out = append(out, *agent)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
