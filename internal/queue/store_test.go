package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/conversation-queue-service/internal/domain"
)

func entryAt(id string, priority domain.QueuePriority, enteredAt time.Time) *domain.QueueEntry {
	return &domain.QueueEntry{
		ConversationID: id,
		TenantID:       "tenant-1",
		Priority:       priority,
		EnteredQueueAt: enteredAt,
	}
}

func TestStoreServesHigherTiersFirst(t *testing.T) {
	s := newStore()
	base := time.Now()

	s.enqueue(entryAt("low-1", domain.QueuePriorityLow, base))
	s.enqueue(entryAt("med-1", domain.QueuePriorityMedium, base.Add(time.Minute)))
	s.enqueue(entryAt("crit-1", domain.QueuePriorityCritical, base.Add(2*time.Minute)))
	s.enqueue(entryAt("high-1", domain.QueuePriorityHigh, base.Add(3*time.Minute)))

	var served []string
	for {
		head := s.peek()
		if head == nil {
			break
		}
		served = append(served, head.ConversationID)
		s.remove(head.ConversationID)
	}
	assert.Equal(t, []string{"crit-1", "high-1", "med-1", "low-1"}, served)
}

func TestStoreFIFOWithinTier(t *testing.T) {
	s := newStore()
	base := time.Now()

	s.enqueue(entryAt("a", domain.QueuePriorityHigh, base))
	s.enqueue(entryAt("b", domain.QueuePriorityHigh, base.Add(time.Second)))
	s.enqueue(entryAt("c", domain.QueuePriorityHigh, base.Add(2*time.Second)))

	pos, ok := s.position("a")
	require.True(t, ok)
	assert.Equal(t, 1, pos)
	pos, _ = s.position("c")
	assert.Equal(t, 3, pos)
}

func TestStoreRequeuePreservedWaitJumpsAhead(t *testing.T) {
	s := newStore()
	base := time.Now()

	s.enqueue(entryAt("young", domain.QueuePriorityMedium, base.Add(10*time.Minute)))
	// Requeued with its original, older enqueue time.
	pos, existed := s.enqueue(entryAt("old", domain.QueuePriorityMedium, base))
	require.False(t, existed)
	assert.Equal(t, 1, pos)
	assert.Equal(t, "old", s.peek().ConversationID)
}

func TestStoreEnqueueIdempotent(t *testing.T) {
	s := newStore()
	now := time.Now()

	pos, existed := s.enqueue(entryAt("conv-1", domain.QueuePriorityLow, now))
	assert.Equal(t, 1, pos)
	assert.False(t, existed)

	pos, existed = s.enqueue(entryAt("conv-1", domain.QueuePriorityLow, now.Add(time.Hour)))
	assert.Equal(t, 1, pos)
	assert.True(t, existed)
	assert.Equal(t, 1, s.size())
}

func TestStorePositionSpansTiers(t *testing.T) {
	s := newStore()
	base := time.Now()

	s.enqueue(entryAt("crit-1", domain.QueuePriorityCritical, base))
	s.enqueue(entryAt("crit-2", domain.QueuePriorityCritical, base.Add(time.Second)))
	s.enqueue(entryAt("low-1", domain.QueuePriorityLow, base))

	pos, ok := s.position("low-1")
	require.True(t, ok)
	assert.Equal(t, 3, pos)

	_, ok = s.position("missing")
	assert.False(t, ok)
}

func TestStoreRemove(t *testing.T) {
	s := newStore()
	now := time.Now()
	s.enqueue(entryAt("conv-1", domain.QueuePriorityHigh, now))

	assert.True(t, s.remove("conv-1"))
	assert.False(t, s.remove("conv-1"))
	assert.Equal(t, 0, s.size())
	assert.Nil(t, s.peek())
}

func TestStoreCountByPriority(t *testing.T) {
	s := newStore()
	base := time.Now()
	s.enqueue(entryAt("c1", domain.QueuePriorityCritical, base))
	s.enqueue(entryAt("c2", domain.QueuePriorityCritical, base.Add(time.Second)))
	s.enqueue(entryAt("l1", domain.QueuePriorityLow, base))

	counts := s.countByPriority()
	assert.Equal(t, 2, counts[domain.QueuePriorityCritical])
	assert.Equal(t, 0, counts[domain.QueuePriorityHigh])
	assert.Equal(t, 1, counts[domain.QueuePriorityLow])
}

func TestStoreOldestEnteredAt(t *testing.T) {
	s := newStore()
	_, ok := s.oldestEnteredAt()
	assert.False(t, ok)

	base := time.Now()
	s.enqueue(entryAt("newer", domain.QueuePriorityCritical, base.Add(time.Minute)))
	s.enqueue(entryAt("older", domain.QueuePriorityLow, base))

	oldest, ok := s.oldestEnteredAt()
	require.True(t, ok)
	assert.True(t, oldest.Equal(base))
}
