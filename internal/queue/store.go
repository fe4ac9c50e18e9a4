package queue

import (
	"time"

	"github.com/spec-kit/conversation-queue-service/internal/domain"
)

// store holds the waiting conversations of a single tenant as four FIFO
// sub-queues, one per priority tier, consulted Critical through Low. It is
// not safe for concurrent use; the owning tenant state serializes access.
type store struct {
	tiers [][]*domain.QueueEntry
	index map[string]int // conversationID -> tier rank
}

func newStore() *store {
	return &store{
		tiers: make([][]*domain.QueueEntry, len(domain.Priorities)),
		index: make(map[string]int),
	}
}

// enqueue inserts the entry in its tier ordered by (enteredQueueAt,
// conversationID). Normal enqueues arrive in timestamp order and append in
// O(1); a requeue that preserves an older wait walks back to its slot.
// Returns the 1-based position and whether the conversation was already
// queued (idempotent re-enqueue).
func (s *store) enqueue(entry *domain.QueueEntry) (int, bool) {
	if _, ok := s.index[entry.ConversationID]; ok {
		pos, _ := s.position(entry.ConversationID)
		return pos, true
	}

	rank := entry.Priority.Rank()
	tier := s.tiers[rank]
	i := len(tier)
	for i > 0 && entryAfter(tier[i-1], entry) {
		i--
	}
	tier = append(tier, nil)
	copy(tier[i+1:], tier[i:])
	tier[i] = entry
	s.tiers[rank] = tier
	s.index[entry.ConversationID] = rank

	pos, _ := s.position(entry.ConversationID)
	return pos, false
}

// entryAfter reports whether a should be served after b. Ties on enqueue
// time fall back to conversation id for determinism.
func entryAfter(a, b *domain.QueueEntry) bool {
	if !a.EnteredQueueAt.Equal(b.EnteredQueueAt) {
		return a.EnteredQueueAt.After(b.EnteredQueueAt)
	}
	return a.ConversationID > b.ConversationID
}

// peek returns the next entry to be served without removing it, or nil when
// the queue is empty.
func (s *store) peek() *domain.QueueEntry {
	for _, tier := range s.tiers {
		if len(tier) > 0 {
			return tier[0]
		}
	}
	return nil
}

// remove deletes the conversation from its tier. Returns false when the
// conversation is not queued.
func (s *store) remove(conversationID string) bool {
	rank, ok := s.index[conversationID]
	if !ok {
		return false
	}
	tier := s.tiers[rank]
	for i, entry := range tier {
		if entry.ConversationID == conversationID {
			s.tiers[rank] = append(tier[:i], tier[i+1:]...)
			break
		}
	}
	delete(s.index, conversationID)
	return true
}

func (s *store) contains(conversationID string) bool {
	_, ok := s.index[conversationID]
	return ok
}

// position returns the 1-based rank of the conversation across all tiers.
func (s *store) position(conversationID string) (int, bool) {
	rank, ok := s.index[conversationID]
	if !ok {
		return 0, false
	}
	pos := 1
	for r := 0; r < rank; r++ {
		pos += len(s.tiers[r])
	}
	for _, entry := range s.tiers[rank] {
		if entry.ConversationID == conversationID {
			return pos, true
		}
		pos++
	}
	return 0, false
}

// snapshot returns the waiting entries in serve order. Entries are copied so
// callers can read them outside the tenant critical section.
func (s *store) snapshot() []domain.QueueEntry {
	out := make([]domain.QueueEntry, 0, s.size())
	for _, tier := range s.tiers {
		for _, entry := range tier {
			out = append(out, *entry)
		}
	}
	return out
}

func (s *store) size() int {
	n := 0
	for _, tier := range s.tiers {
		n += len(tier)
	}
	return n
}

func (s *store) countByPriority() map[domain.QueuePriority]int {
	counts := make(map[domain.QueuePriority]int, len(domain.Priorities))
	for rank, tier := range s.tiers {
		counts[domain.Priorities[rank]] = len(tier)
	}
	return counts
}

// oldestEnteredAt returns the earliest enqueue time across all tiers, used
// for longest-wait stats. Second return is false when empty.
func (s *store) oldestEnteredAt() (time.Time, bool) {
	var oldest time.Time
	found := false
	for _, tier := range s.tiers {
		for _, entry := range tier {
			if !found || entry.EnteredQueueAt.Before(oldest) {
				oldest = entry.EnteredQueueAt
				found = true
			}
		}
	}
	return oldest, found
}
