package queue

import (
	"fmt"
	"time"

	"github.com/spec-kit/conversation-queue-service/internal/domain"
)

// SLAPolicy holds per-tier response thresholds. Thresholds come from
// configuration but must be monotonic with priority: a stricter tier never
// gets a longer threshold than a laxer one.
type SLAPolicy struct {
	thresholds map[domain.QueuePriority]time.Duration
}

// NewSLAPolicy validates and builds a policy. All four tiers are required.
func NewSLAPolicy(thresholds map[domain.QueuePriority]time.Duration) (SLAPolicy, error) {
	for _, tier := range domain.Priorities {
		d, ok := thresholds[tier]
		if !ok {
			return SLAPolicy{}, fmt.Errorf("sla threshold missing for tier %s", tier)
		}
		if d <= 0 {
			return SLAPolicy{}, fmt.Errorf("sla threshold for tier %s must be positive", tier)
		}
	}
	for i := 1; i < len(domain.Priorities); i++ {
		stricter := thresholds[domain.Priorities[i-1]]
		laxer := thresholds[domain.Priorities[i]]
		if stricter > laxer {
			return SLAPolicy{}, fmt.Errorf("sla thresholds not monotonic: %s (%s) exceeds %s (%s)",
				domain.Priorities[i-1], stricter, domain.Priorities[i], laxer)
		}
	}
	copied := make(map[domain.QueuePriority]time.Duration, len(thresholds))
	for tier, d := range thresholds {
		copied[tier] = d
	}
	return SLAPolicy{thresholds: copied}, nil
}

// DefaultSLAThresholds mirrors the shipped defaults: Critical 5m, High 15m,
// Medium 60m, Low 240m.
func DefaultSLAThresholds() map[domain.QueuePriority]time.Duration {
	return map[domain.QueuePriority]time.Duration{
		domain.QueuePriorityCritical: 5 * time.Minute,
		domain.QueuePriorityHigh:     15 * time.Minute,
		domain.QueuePriorityMedium:   60 * time.Minute,
		domain.QueuePriorityLow:      240 * time.Minute,
	}
}

// Threshold returns the response threshold for a tier.
func (p SLAPolicy) Threshold(tier domain.QueuePriority) time.Duration {
	return p.thresholds[tier]
}

// Warning reports whether the time since the last message on the assignment
// exceeds the tier threshold. A breach only flags state; escalation is a
// separate policy concern.
func (p SLAPolicy) Warning(assignment *domain.Assignment, now time.Time) bool {
	threshold, ok := p.thresholds[assignment.Priority]
	if !ok {
		return false
	}
	return now.Sub(assignment.LastMessageAt) > threshold
}

// WaitTimeMinutes derives the current wait of a queue entry.
func WaitTimeMinutes(entry *domain.QueueEntry, now time.Time) float64 {
	return now.Sub(entry.EnteredQueueAt).Minutes()
}
