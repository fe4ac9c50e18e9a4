package queue

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/conversation-queue-service/internal/domain"
)

const testTenant = "tenant-1"

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	sla, err := NewSLAPolicy(DefaultSLAThresholds())
	require.NoError(t, err)
	return NewEngine(cfg, sla)
}

func registerAvailable(t *testing.T, e *Engine, agentID string, maxLoad int) {
	t.Helper()
	e.RegisterAgent(domain.Agent{
		ID:       agentID,
		TenantID: testTenant,
		Name:     "Agent " + agentID,
		Status:   domain.AgentStatusOffline,
		MaxLoad:  maxLoad,
	})
	_, err := e.SetAgentStatus(testTenant, agentID, domain.AgentStatusAvailable, nil)
	require.NoError(t, err)
}

func enqueueN(t *testing.T, e *Engine, n int, priority domain.QueuePriority) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("conv-%s-%d", priority, i)
		_, err := e.Enqueue(EnqueueRequest{
			TenantID:       testTenant,
			ConversationID: id,
			Priority:       priority,
		}, nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestEnqueueReturnsPosition(t *testing.T) {
	e := newTestEngine(t, Config{})

	pos, err := e.Enqueue(EnqueueRequest{TenantID: testTenant, ConversationID: "c1", Priority: domain.QueuePriorityLow}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	// A critical arrival overtakes the waiting low conversation.
	pos, err = e.Enqueue(EnqueueRequest{TenantID: testTenant, ConversationID: "c2", Priority: domain.QueuePriorityCritical}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	pos, ok := e.Position(testTenant, "c1")
	require.True(t, ok)
	assert.Equal(t, 2, pos)
}

func TestEnqueueIdempotentWhileWaiting(t *testing.T) {
	e := newTestEngine(t, Config{})

	_, err := e.Enqueue(EnqueueRequest{TenantID: testTenant, ConversationID: "c1", Priority: domain.QueuePriorityHigh}, nil)
	require.NoError(t, err)

	commits := 0
	pos, err := e.Enqueue(EnqueueRequest{TenantID: testTenant, ConversationID: "c1", Priority: domain.QueuePriorityHigh}, func(domain.QueueEntry) error {
		commits++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, pos)
	assert.Zero(t, commits, "idempotent re-enqueue must not touch storage")
}

func TestEnqueueRejectedWhileAssigned(t *testing.T) {
	e := newTestEngine(t, Config{})
	registerAvailable(t, e, "a1", 5)
	enqueueN(t, e, 1, domain.QueuePriorityHigh)

	assignment, err := e.AcceptNext(testTenant, "a1", nil)
	require.NoError(t, err)
	require.NotNil(t, assignment)

	_, err = e.Enqueue(EnqueueRequest{TenantID: testTenant, ConversationID: assignment.ConversationID, Priority: domain.QueuePriorityHigh}, nil)
	assert.ErrorIs(t, err, ErrAlreadyActive)
}

func TestEnqueueCommitFailureLeavesQueueUntouched(t *testing.T) {
	e := newTestEngine(t, Config{})

	boom := errors.New("db down")
	_, err := e.Enqueue(EnqueueRequest{TenantID: testTenant, ConversationID: "c1", Priority: domain.QueuePriorityHigh}, func(domain.QueueEntry) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, ok := e.Position(testTenant, "c1")
	assert.False(t, ok)
	assert.Zero(t, e.Stats(testTenant).WaitingCount)
}

func TestAcceptNextEmptyQueue(t *testing.T) {
	e := newTestEngine(t, Config{})
	registerAvailable(t, e, "a1", 5)

	assignment, err := e.AcceptNext(testTenant, "a1", nil)
	require.NoError(t, err)
	assert.Nil(t, assignment)
}

func TestAcceptNextUnknownAgent(t *testing.T) {
	e := newTestEngine(t, Config{})
	_, err := e.AcceptNext(testTenant, "ghost", nil)
	assert.ErrorIs(t, err, ErrUnknownAgent)
}

func TestAcceptNextRespectsManualStatus(t *testing.T) {
	e := newTestEngine(t, Config{})
	registerAvailable(t, e, "a1", 5)
	enqueueN(t, e, 1, domain.QueuePriorityCritical)

	_, err := e.SetAgentStatus(testTenant, "a1", domain.AgentStatusAway, nil)
	require.NoError(t, err)

	_, err = e.AcceptNext(testTenant, "a1", nil)
	assert.ErrorIs(t, err, ErrAgentUnavailable)

	// The conversation stays queued for somebody else.
	assert.Equal(t, 1, e.Stats(testTenant).WaitingCount)
}

func TestAcceptNextAtCapacity(t *testing.T) {
	e := newTestEngine(t, Config{})
	registerAvailable(t, e, "a1", 1)
	enqueueN(t, e, 2, domain.QueuePriorityMedium)

	first, err := e.AcceptNext(testTenant, "a1", nil)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := e.AcceptNext(testTenant, "a1", nil)
	require.NoError(t, err)
	assert.Nil(t, second, "agent at capacity gets no work, not an error")
	assert.Equal(t, 1, e.Stats(testTenant).WaitingCount)
}

func TestAcceptNextServesMostUrgentFirst(t *testing.T) {
	e := newTestEngine(t, Config{})
	registerAvailable(t, e, "a1", 5)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := base
	e.now = func() time.Time { return clock }

	_, err := e.Enqueue(EnqueueRequest{TenantID: testTenant, ConversationID: "low", Priority: domain.QueuePriorityLow}, nil)
	require.NoError(t, err)
	clock = clock.Add(time.Minute)
	_, err = e.Enqueue(EnqueueRequest{TenantID: testTenant, ConversationID: "crit", Priority: domain.QueuePriorityCritical}, nil)
	require.NoError(t, err)

	assignment, err := e.AcceptNext(testTenant, "a1", nil)
	require.NoError(t, err)
	require.NotNil(t, assignment)
	assert.Equal(t, "crit", assignment.ConversationID)
	assert.False(t, assignment.HasUnread)
	assert.True(t, assignment.EnteredQueueAt.Equal(base.Add(time.Minute)))

	current, maxLoad, err := e.AgentLoad(testTenant, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, current)
	assert.Equal(t, 5, maxLoad)
}

func TestAcceptNextCommitFailureFailsClosed(t *testing.T) {
	e := newTestEngine(t, Config{})
	registerAvailable(t, e, "a1", 5)
	enqueueN(t, e, 1, domain.QueuePriorityHigh)

	boom := errors.New("db down")
	assignment, err := e.AcceptNext(testTenant, "a1", func(domain.Assignment) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, assignment)

	// Conversation still waiting, agent load untouched.
	assert.Equal(t, 1, e.Stats(testTenant).WaitingCount)
	current, _, err := e.AgentLoad(testTenant, "a1")
	require.NoError(t, err)
	assert.Zero(t, current)
}

func TestConcurrentAcceptAssignsExactlyOnce(t *testing.T) {
	e := newTestEngine(t, Config{})
	for i := 0; i < 10; i++ {
		registerAvailable(t, e, fmt.Sprintf("a%d", i), 5)
	}
	enqueueN(t, e, 1, domain.QueuePriorityCritical)

	var wg sync.WaitGroup
	results := make(chan *domain.Assignment, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(agentID string) {
			defer wg.Done()
			assignment, err := e.AcceptNext(testTenant, agentID, nil)
			assert.NoError(t, err)
			if assignment != nil {
				results <- assignment
			}
		}(fmt.Sprintf("a%d", i))
	}
	wg.Wait()
	close(results)

	var winners []*domain.Assignment
	for a := range results {
		winners = append(winners, a)
	}
	require.Len(t, winners, 1, "one waiting conversation must produce exactly one assignment")
	assert.Zero(t, e.Stats(testTenant).WaitingCount)
	assert.Equal(t, 1, e.Stats(testTenant).ActiveCount)
}

func TestConcurrentAcceptDrainsWithoutDuplicates(t *testing.T) {
	e := newTestEngine(t, Config{})
	agents := []string{"a1", "a2", "a3"}
	for _, id := range agents {
		registerAvailable(t, e, id, 2)
	}
	enqueueN(t, e, 4, domain.QueuePriorityMedium)

	var wg sync.WaitGroup
	results := make(chan *domain.Assignment, 30)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(agentID string) {
			defer wg.Done()
			assignment, err := e.AcceptNext(testTenant, agentID, nil)
			assert.NoError(t, err)
			if assignment != nil {
				results <- assignment
			}
		}(agents[i%len(agents)])
	}
	wg.Wait()
	close(results)

	seen := make(map[string]string)
	for a := range results {
		prev, dup := seen[a.ConversationID]
		require.False(t, dup, "conversation %s assigned to both %s and %s", a.ConversationID, prev, a.AgentID)
		seen[a.ConversationID] = a.AgentID
	}
	assert.Len(t, seen, 4)
	assert.Zero(t, e.Stats(testTenant).WaitingCount)

	totalLoad := 0
	for _, id := range agents {
		current, maxLoad, err := e.AgentLoad(testTenant, id)
		require.NoError(t, err)
		assert.LessOrEqual(t, current, maxLoad)
		totalLoad += current
	}
	assert.Equal(t, 4, totalLoad)
}

func TestTransferMovesLoadAtomically(t *testing.T) {
	e := newTestEngine(t, Config{})
	registerAvailable(t, e, "a1", 5)
	registerAvailable(t, e, "a2", 5)
	enqueueN(t, e, 1, domain.QueuePriorityHigh)

	assignment, err := e.AcceptNext(testTenant, "a1", nil)
	require.NoError(t, err)

	transferred, err := e.Transfer(testTenant, assignment.ConversationID, "a1", "a2", nil)
	require.NoError(t, err)
	assert.Equal(t, "a2", transferred.AgentID)

	fromLoad, _, _ := e.AgentLoad(testTenant, "a1")
	toLoad, _, _ := e.AgentLoad(testTenant, "a2")
	assert.Zero(t, fromLoad)
	assert.Equal(t, 1, toLoad)
	assert.Equal(t, 1, e.Stats(testTenant).ActiveCount)
}

func TestTransferRejectsFullTarget(t *testing.T) {
	e := newTestEngine(t, Config{})
	registerAvailable(t, e, "a1", 5)
	registerAvailable(t, e, "a2", 1)
	enqueueN(t, e, 2, domain.QueuePriorityHigh)

	first, err := e.AcceptNext(testTenant, "a1", nil)
	require.NoError(t, err)
	second, err := e.AcceptNext(testTenant, "a2", nil)
	require.NoError(t, err)
	require.NotNil(t, second)

	_, err = e.Transfer(testTenant, first.ConversationID, "a1", "a2", nil)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	// Nothing moved.
	fromLoad, _, _ := e.AgentLoad(testTenant, "a1")
	assert.Equal(t, 1, fromLoad)
}

func TestTransferWrongOwner(t *testing.T) {
	e := newTestEngine(t, Config{})
	registerAvailable(t, e, "a1", 5)
	registerAvailable(t, e, "a2", 5)
	enqueueN(t, e, 1, domain.QueuePriorityHigh)

	assignment, err := e.AcceptNext(testTenant, "a1", nil)
	require.NoError(t, err)

	_, err = e.Transfer(testTenant, assignment.ConversationID, "a2", "a1", nil)
	assert.ErrorIs(t, err, ErrNotAssigned)

	_, err = e.Transfer(testTenant, "missing", "a1", "a2", nil)
	assert.ErrorIs(t, err, ErrNotAssigned)
}

func TestTransferCommitFailureFailsClosed(t *testing.T) {
	e := newTestEngine(t, Config{})
	registerAvailable(t, e, "a1", 5)
	registerAvailable(t, e, "a2", 5)
	enqueueN(t, e, 1, domain.QueuePriorityHigh)

	assignment, err := e.AcceptNext(testTenant, "a1", nil)
	require.NoError(t, err)

	boom := errors.New("db down")
	_, err = e.Transfer(testTenant, assignment.ConversationID, "a1", "a2", func(domain.Assignment) error { return boom })
	assert.ErrorIs(t, err, boom)

	fromLoad, _, _ := e.AgentLoad(testTenant, "a1")
	toLoad, _, _ := e.AgentLoad(testTenant, "a2")
	assert.Equal(t, 1, fromLoad)
	assert.Zero(t, toLoad)

	views := e.AssignmentsByAgent(testTenant, "a1")
	require.Len(t, views, 1)
	assert.Equal(t, "a1", views[0].Assignment.AgentID)
}

func TestReleaseClosedRecordsCompletion(t *testing.T) {
	e := newTestEngine(t, Config{})
	registerAvailable(t, e, "a1", 5)

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return clock }

	enqueueN(t, e, 1, domain.QueuePriorityHigh)
	assignment, err := e.AcceptNext(testTenant, "a1", nil)
	require.NoError(t, err)

	clock = clock.Add(30 * time.Minute)
	entry, err := e.Release(testTenant, assignment.ConversationID, "a1", domain.DispositionClosed, nil)
	require.NoError(t, err)
	assert.Nil(t, entry)

	current, _, _ := e.AgentLoad(testTenant, "a1")
	assert.Zero(t, current)

	statuses := e.AgentStatuses(testTenant)
	require.Len(t, statuses, 1)
	assert.Equal(t, 1, statuses[0].CompletedToday)
	assert.InDelta(t, 30.0, statuses[0].AvgResponseTimeMinutes, 0.1)
}

func TestReleaseRequeuedPreservesWait(t *testing.T) {
	e := newTestEngine(t, Config{PreserveWaitOnRequeue: true})
	registerAvailable(t, e, "a1", 5)

	enteredAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := enteredAt
	e.now = func() time.Time { return clock }

	_, err := e.Enqueue(EnqueueRequest{TenantID: testTenant, ConversationID: "c1", Priority: domain.QueuePriorityHigh}, nil)
	require.NoError(t, err)

	clock = clock.Add(10 * time.Minute)
	_, err = e.AcceptNext(testTenant, "a1", nil)
	require.NoError(t, err)

	clock = clock.Add(5 * time.Minute)
	entry, err := e.Release(testTenant, "c1", "a1", domain.DispositionRequeued, nil)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.EnteredQueueAt.Equal(enteredAt), "requeue keeps the original wait")

	pos, ok := e.Position(testTenant, "c1")
	require.True(t, ok)
	assert.Equal(t, 1, pos)

	statuses := e.AgentStatuses(testTenant)
	assert.Zero(t, statuses[0].CompletedToday, "requeue is not a completion")
}

func TestReleaseRequeuedFreshWaitWhenNotPreserving(t *testing.T) {
	e := newTestEngine(t, Config{PreserveWaitOnRequeue: false})
	registerAvailable(t, e, "a1", 5)

	enteredAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := enteredAt
	e.now = func() time.Time { return clock }

	_, err := e.Enqueue(EnqueueRequest{TenantID: testTenant, ConversationID: "c1", Priority: domain.QueuePriorityHigh}, nil)
	require.NoError(t, err)
	_, err = e.AcceptNext(testTenant, "a1", nil)
	require.NoError(t, err)

	clock = clock.Add(15 * time.Minute)
	entry, err := e.Release(testTenant, "c1", "a1", domain.DispositionRequeued, nil)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.EnteredQueueAt.Equal(clock))
}

func TestReleaseWrongOwner(t *testing.T) {
	e := newTestEngine(t, Config{})
	registerAvailable(t, e, "a1", 5)
	registerAvailable(t, e, "a2", 5)
	enqueueN(t, e, 1, domain.QueuePriorityHigh)

	assignment, err := e.AcceptNext(testTenant, "a1", nil)
	require.NoError(t, err)

	_, err = e.Release(testTenant, assignment.ConversationID, "a2", domain.DispositionClosed, nil)
	assert.ErrorIs(t, err, ErrNotAssigned)
}

func TestReleaseCommitFailureFailsClosed(t *testing.T) {
	e := newTestEngine(t, Config{})
	registerAvailable(t, e, "a1", 5)
	enqueueN(t, e, 1, domain.QueuePriorityHigh)

	assignment, err := e.AcceptNext(testTenant, "a1", nil)
	require.NoError(t, err)

	boom := errors.New("db down")
	_, err = e.Release(testTenant, assignment.ConversationID, "a1", domain.DispositionClosed, func(domain.Assignment, *domain.QueueEntry) error { return boom })
	assert.ErrorIs(t, err, boom)

	// Still assigned, load intact.
	current, _, _ := e.AgentLoad(testTenant, "a1")
	assert.Equal(t, 1, current)
	assert.Equal(t, 1, e.Stats(testTenant).ActiveCount)
}

func TestSetAgentStatusInvalidTransition(t *testing.T) {
	e := newTestEngine(t, Config{})
	e.RegisterAgent(domain.Agent{ID: "a1", TenantID: testTenant, MaxLoad: 5})

	agent, err := e.SetAgentStatus(testTenant, "a1", domain.AgentStatusOnBreak, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, domain.AgentStatusOffline, agent.Status, "caller gets the current state to reconcile")
}

func TestSetAgentStatusCommitFailureLeavesStatus(t *testing.T) {
	e := newTestEngine(t, Config{})
	e.RegisterAgent(domain.Agent{ID: "a1", TenantID: testTenant, MaxLoad: 5})

	boom := errors.New("write failed")
	agent, err := e.SetAgentStatus(testTenant, "a1", domain.AgentStatusAvailable, func(domain.Agent) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, domain.AgentStatusOffline, agent.Status)

	// A later attempt starts from the unchanged state.
	agent, err = e.SetAgentStatus(testTenant, "a1", domain.AgentStatusAvailable, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusAvailable, agent.Status)
}

func TestSetAgentStatusKeepsLoadOnAway(t *testing.T) {
	e := newTestEngine(t, Config{})
	registerAvailable(t, e, "a1", 5)
	enqueueN(t, e, 1, domain.QueuePriorityHigh)

	_, err := e.AcceptNext(testTenant, "a1", nil)
	require.NoError(t, err)

	agent, err := e.SetAgentStatus(testTenant, "a1", domain.AgentStatusAway, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusAway, agent.Status)
	assert.Equal(t, 1, agent.CurrentLoad, "going away does not shed active assignments")
}

func TestMessageActivityFlagsUnread(t *testing.T) {
	e := newTestEngine(t, Config{})
	registerAvailable(t, e, "a1", 5)
	enqueueN(t, e, 1, domain.QueuePriorityHigh)

	assignment, err := e.AcceptNext(testTenant, "a1", nil)
	require.NoError(t, err)

	at := time.Now().Add(time.Minute)
	updated, err := e.MessageActivity(testTenant, assignment.ConversationID, true, at, nil)
	require.NoError(t, err)
	assert.True(t, updated.HasUnread)
	assert.True(t, updated.LastMessageAt.Equal(at))

	updated, err = e.MessageActivity(testTenant, assignment.ConversationID, false, at.Add(time.Minute), nil)
	require.NoError(t, err)
	assert.False(t, updated.HasUnread, "agent reply clears the unread flag")
}

func TestMessageActivityUnknownOrQueued(t *testing.T) {
	e := newTestEngine(t, Config{})
	enqueueN(t, e, 1, domain.QueuePriorityHigh)

	_, err := e.MessageActivity(testTenant, "conv-HIGH-0", true, time.Time{}, nil)
	assert.ErrorIs(t, err, ErrNotAssigned)

	_, err = e.MessageActivity(testTenant, "ghost", true, time.Time{}, nil)
	assert.ErrorIs(t, err, ErrUnknownConversation)
}

func TestWithdrawRemovesWaiting(t *testing.T) {
	e := newTestEngine(t, Config{})
	enqueueN(t, e, 2, domain.QueuePriorityMedium)

	require.NoError(t, e.Withdraw(testTenant, "conv-MEDIUM-0", nil))
	assert.Equal(t, 1, e.Stats(testTenant).WaitingCount)

	err := e.Withdraw(testTenant, "conv-MEDIUM-0", nil)
	assert.ErrorIs(t, err, ErrUnknownConversation)
}

func TestStatsSnapshot(t *testing.T) {
	e := newTestEngine(t, Config{})
	registerAvailable(t, e, "a1", 5)
	registerAvailable(t, e, "a2", 5)
	_, err := e.SetAgentStatus(testTenant, "a2", domain.AgentStatusOnBreak, nil)
	require.NoError(t, err)

	enqueueN(t, e, 2, domain.QueuePriorityCritical)
	enqueueN(t, e, 1, domain.QueuePriorityLow)
	_, err = e.AcceptNext(testTenant, "a1", nil)
	require.NoError(t, err)

	stats := e.Stats(testTenant)
	assert.Equal(t, 2, stats.WaitingCount)
	assert.Equal(t, 1, stats.ActiveCount)
	assert.Equal(t, 1, stats.CriticalInQueue)
	assert.Equal(t, 1, stats.LowInQueue)
	assert.Equal(t, 1, stats.AgentsBusy)
	assert.Equal(t, 1, stats.AgentsOnBreak)
	assert.Zero(t, stats.AgentsAvailable+stats.AgentsAway+stats.AgentsOffline)
}

func TestTenantIsolation(t *testing.T) {
	e := newTestEngine(t, Config{})
	e.RegisterAgent(domain.Agent{ID: "a1", TenantID: "tenant-a", MaxLoad: 5})
	_, err := e.SetAgentStatus("tenant-a", "a1", domain.AgentStatusAvailable, nil)
	require.NoError(t, err)

	_, err = e.Enqueue(EnqueueRequest{TenantID: "tenant-b", ConversationID: "c1", Priority: domain.QueuePriorityCritical}, nil)
	require.NoError(t, err)

	// tenant-a's agent sees nothing from tenant-b's queue.
	assignment, err := e.AcceptNext("tenant-a", "a1", nil)
	require.NoError(t, err)
	assert.Nil(t, assignment)
	assert.Equal(t, 1, e.Stats("tenant-b").WaitingCount)

	_, err = e.AcceptNext("tenant-b", "a1", nil)
	assert.ErrorIs(t, err, ErrUnknownAgent)
}

func TestRegisterAgentPreservesLiveCounters(t *testing.T) {
	e := newTestEngine(t, Config{})
	registerAvailable(t, e, "a1", 5)
	enqueueN(t, e, 1, domain.QueuePriorityHigh)
	_, err := e.AcceptNext(testTenant, "a1", nil)
	require.NoError(t, err)

	// Profile refresh must not reset status or load.
	e.RegisterAgent(domain.Agent{ID: "a1", TenantID: testTenant, Name: "Renamed", MaxLoad: 3})

	current, maxLoad, err := e.AgentLoad(testTenant, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, current)
	assert.Equal(t, 3, maxLoad)

	assignment, err := e.AcceptNext(testTenant, "a1", nil)
	require.NoError(t, err)
	assert.Nil(t, assignment, "queue is empty; status survived the re-register")
}

func TestRegisterAgentAppliesDefaultMaxLoad(t *testing.T) {
	e := newTestEngine(t, Config{DefaultMaxLoad: 5})
	e.RegisterAgent(domain.Agent{ID: "a1", TenantID: testTenant})

	_, maxLoad, err := e.AgentLoad(testTenant, "a1")
	require.NoError(t, err)
	assert.Equal(t, 5, maxLoad)
}

func TestRestoreTenantRebuildsLoads(t *testing.T) {
	e := newTestEngine(t, Config{})
	now := time.Now()

	agents := []domain.Agent{
		{ID: "a1", TenantID: testTenant, Status: domain.AgentStatusAvailable, MaxLoad: 5, CurrentLoad: 99},
		{ID: "a2", TenantID: testTenant, Status: domain.AgentStatusAway, MaxLoad: 5},
	}
	waiting := []domain.QueueEntry{
		{ConversationID: "w1", TenantID: testTenant, Priority: domain.QueuePriorityHigh, EnteredQueueAt: now.Add(-time.Hour)},
	}
	active := []domain.Assignment{
		{ID: "as1", ConversationID: "c1", TenantID: testTenant, AgentID: "a1", Priority: domain.QueuePriorityCritical, AssignedAt: now.Add(-10 * time.Minute), LastMessageAt: now},
		{ID: "as2", ConversationID: "c2", TenantID: testTenant, AgentID: "a1", Priority: domain.QueuePriorityLow, AssignedAt: now.Add(-5 * time.Minute), LastMessageAt: now},
	}
	e.RestoreTenant(testTenant, agents, waiting, active)

	current, _, err := e.AgentLoad(testTenant, "a1")
	require.NoError(t, err)
	assert.Equal(t, 2, current, "load derives from active assignments, not the stale column")

	stats := e.Stats(testTenant)
	assert.Equal(t, 1, stats.WaitingCount)
	assert.Equal(t, 2, stats.ActiveCount)

	_, err = e.Enqueue(EnqueueRequest{TenantID: testTenant, ConversationID: "c1", Priority: domain.QueuePriorityHigh}, nil)
	assert.ErrorIs(t, err, ErrAlreadyActive)
}

func TestAssignmentsByAgentNewestFirst(t *testing.T) {
	e := newTestEngine(t, Config{})
	registerAvailable(t, e, "a1", 5)

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		_, err := e.Enqueue(EnqueueRequest{TenantID: testTenant, ConversationID: fmt.Sprintf("c%d", i), Priority: domain.QueuePriorityMedium}, nil)
		require.NoError(t, err)
		clock = clock.Add(time.Minute)
		_, err = e.AcceptNext(testTenant, "a1", nil)
		require.NoError(t, err)
	}

	views := e.AssignmentsByAgent(testTenant, "a1")
	require.Len(t, views, 3)
	assert.Equal(t, "c2", views[0].Assignment.ConversationID)
	assert.Equal(t, "c0", views[2].Assignment.ConversationID)
}

func TestAssignmentSLAWarningDerived(t *testing.T) {
	e := newTestEngine(t, Config{})
	registerAvailable(t, e, "a1", 5)

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return clock }

	_, err := e.Enqueue(EnqueueRequest{TenantID: testTenant, ConversationID: "c1", Priority: domain.QueuePriorityCritical}, nil)
	require.NoError(t, err)
	_, err = e.AcceptNext(testTenant, "a1", nil)
	require.NoError(t, err)

	views := e.AssignmentsByAgent(testTenant, "a1")
	require.Len(t, views, 1)
	assert.False(t, views[0].SlaWarning)

	// Customer silence past the critical threshold flips the warning.
	clock = clock.Add(e.SLA().Threshold(domain.QueuePriorityCritical) + time.Minute)
	views = e.AssignmentsByAgent(testTenant, "a1")
	assert.True(t, views[0].SlaWarning)
}

func TestListAvailableAgents(t *testing.T) {
	e := newTestEngine(t, Config{})
	registerAvailable(t, e, "a1", 1)
	registerAvailable(t, e, "a2", 5)
	enqueueN(t, e, 1, domain.QueuePriorityHigh)

	_, err := e.AcceptNext(testTenant, "a1", nil)
	require.NoError(t, err)

	available := e.ListAvailableAgents(testTenant)
	require.Len(t, available, 1)
	assert.Equal(t, "a2", available[0].ID)
}
