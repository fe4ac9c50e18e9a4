package queue

import (
	"math"
	"time"

	"github.com/spec-kit/conversation-queue-service/internal/domain"
)

// Stats is the read-only dashboard view over one tenant's queue, derived
// from a single locked snapshot so a conversation is never double counted
// between waiting and assigned.
type Stats struct {
	WaitingCount           int     `json:"waitingCount"`
	ActiveCount            int     `json:"activeCount"`
	CriticalInQueue        int     `json:"criticalInQueue"`
	HighInQueue            int     `json:"highInQueue"`
	MediumInQueue          int     `json:"mediumInQueue"`
	LowInQueue             int     `json:"lowInQueue"`
	AvgWaitTimeMinutes     float64 `json:"avgWaitTimeMinutes"`
	LongestWaitTimeMinutes float64 `json:"longestWaitTimeMinutes"`
	AgentsAvailable        int     `json:"agentsAvailable"`
	AgentsBusy             int     `json:"agentsBusy"`
	AgentsAway             int     `json:"agentsAway"`
	AgentsOnBreak          int     `json:"agentsOnBreak"`
	AgentsOffline          int     `json:"agentsOffline"`
}

// QueueItemView is a waiting conversation enriched for display.
type QueueItemView struct {
	ConversationID  string               `json:"conversationId"`
	CustomerName    string               `json:"customerName"`
	CustomerPhone   string               `json:"customerPhone"`
	Priority        domain.QueuePriority `json:"priority"`
	EnteredQueueAt  time.Time            `json:"enteredQueueAt"`
	Position        int                  `json:"positionInQueue"`
	WaitTimeMinutes float64              `json:"waitTimeMinutes"`
}

// AssignmentView is an active assignment with its derived SLA flag.
type AssignmentView struct {
	Assignment domain.Assignment
	SlaWarning bool
}

// AgentStatusView is the live status line shown on the queue dashboard.
type AgentStatusView struct {
	AgentID                string               `json:"agentId"`
	Name                   string               `json:"name"`
	Status                 domain.AgentStatus   `json:"status"`
	Activity               domain.AgentActivity `json:"activity"`
	CurrentLoad            int                  `json:"currentLoad"`
	MaxLoad                int                  `json:"maxLoad"`
	CompletedToday         int                  `json:"completedToday"`
	AvgResponseTimeMinutes float64              `json:"avgResponseTimeMinutes"`
}

// computeStats derives the dashboard numbers. Must be called with the tenant
// critical section held.
func computeStats(st *store, reg *registry, activeAssignments int, now time.Time) Stats {
	stats := Stats{
		WaitingCount: st.size(),
		ActiveCount:  activeAssignments,
	}

	counts := st.countByPriority()
	stats.CriticalInQueue = counts[domain.QueuePriorityCritical]
	stats.HighInQueue = counts[domain.QueuePriorityHigh]
	stats.MediumInQueue = counts[domain.QueuePriorityMedium]
	stats.LowInQueue = counts[domain.QueuePriorityLow]

	if stats.WaitingCount > 0 {
		total := 0.0
		for _, entry := range st.snapshot() {
			total += now.Sub(entry.EnteredQueueAt).Minutes()
		}
		stats.AvgWaitTimeMinutes = round1(total / float64(stats.WaitingCount))
		if oldest, ok := st.oldestEnteredAt(); ok {
			stats.LongestWaitTimeMinutes = round1(now.Sub(oldest).Minutes())
		}
	}

	for _, agent := range reg.all() {
		switch agent.Status {
		case domain.AgentStatusAvailable:
			if agent.Activity() == domain.AgentActivityBusy {
				stats.AgentsBusy++
			} else {
				stats.AgentsAvailable++
			}
		case domain.AgentStatusAway:
			stats.AgentsAway++
		case domain.AgentStatusOnBreak:
			stats.AgentsOnBreak++
		case domain.AgentStatusOffline:
			stats.AgentsOffline++
		}
	}
	return stats
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
