package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/conversation-queue-service/internal/domain"
)

func testAgent(id string, status domain.AgentStatus, load, maxLoad int) domain.Agent {
	return domain.Agent{
		ID:          id,
		TenantID:    "tenant-1",
		Name:        "Agent " + id,
		Status:      status,
		CurrentLoad: load,
		MaxLoad:     maxLoad,
	}
}

func TestTransitionAllowed(t *testing.T) {
	cases := []struct {
		from, to domain.AgentStatus
		want     bool
	}{
		{domain.AgentStatusOffline, domain.AgentStatusAvailable, true},
		{domain.AgentStatusOffline, domain.AgentStatusAway, true},
		{domain.AgentStatusOffline, domain.AgentStatusOnBreak, false},
		{domain.AgentStatusAvailable, domain.AgentStatusOnBreak, true},
		{domain.AgentStatusAvailable, domain.AgentStatusOffline, true},
		{domain.AgentStatusOnBreak, domain.AgentStatusAvailable, true},
		{domain.AgentStatusAway, domain.AgentStatusAway, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, transitionAllowed(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestRegistrySetStatus(t *testing.T) {
	r := newRegistry()
	r.upsert(testAgent("a1", domain.AgentStatusOffline, 0, 5))

	agent, err := r.setStatus("a1", domain.AgentStatusAvailable)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusAvailable, agent.Status)

	_, err = r.setStatus("a1", domain.AgentStatus("SLEEPING"))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = r.setStatus("missing", domain.AgentStatusAway)
	assert.ErrorIs(t, err, ErrUnknownAgent)
}

func TestRegistryPreviewStatusDoesNotApply(t *testing.T) {
	r := newRegistry()
	r.upsert(testAgent("a1", domain.AgentStatusOffline, 0, 5))

	updated, err := r.previewStatus("a1", domain.AgentStatusAvailable)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusAvailable, updated.Status)

	stored, ok := r.get("a1")
	require.True(t, ok)
	assert.Equal(t, domain.AgentStatusOffline, stored.Status, "preview must not mutate the registry")

	current, err := r.previewStatus("a1", domain.AgentStatusOnBreak)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, domain.AgentStatusOffline, current.Status)
}

func TestRegistryOnBreakFromOfflineRejected(t *testing.T) {
	r := newRegistry()
	r.upsert(testAgent("a1", domain.AgentStatusOffline, 0, 5))

	agent, err := r.setStatus("a1", domain.AgentStatusOnBreak)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	// The rejected transition leaves the agent untouched.
	assert.Equal(t, domain.AgentStatusOffline, agent.Status)
}

func TestRegistryLoadBookkeeping(t *testing.T) {
	r := newRegistry()
	r.upsert(testAgent("a1", domain.AgentStatusAvailable, 0, 2))
	now := time.Now()

	require.NoError(t, r.incrementLoad("a1", now))
	require.NoError(t, r.incrementLoad("a1", now))
	err := r.incrementLoad("a1", now)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	agent, _ := r.get("a1")
	assert.Equal(t, 2, agent.CurrentLoad)
	require.NotNil(t, agent.LastAssignedAt)

	require.NoError(t, r.decrementLoad("a1"))
	require.NoError(t, r.decrementLoad("a1"))
	err = r.decrementLoad("a1")
	assert.ErrorIs(t, err, ErrNotAssigned)
}

func TestRegistryRecordCompletion(t *testing.T) {
	r := newRegistry()
	r.upsert(testAgent("a1", domain.AgentStatusAvailable, 0, 5))

	r.recordCompletion("a1", 10)
	r.recordCompletion("a1", 20)

	agent, _ := r.get("a1")
	assert.Equal(t, 2, agent.CompletedToday)
	assert.InDelta(t, 15.0, agent.AvgResponseTimeMinutes, 0.001)

	r.resetDailyCounters()
	agent, _ = r.get("a1")
	assert.Equal(t, 0, agent.CompletedToday)
	assert.Zero(t, agent.AvgResponseTimeMinutes)
}

func TestRegistryListAvailableLeastLoadedFirst(t *testing.T) {
	r := newRegistry()
	earlier := time.Now().Add(-time.Hour)
	later := time.Now()

	busy := testAgent("busy", domain.AgentStatusAvailable, 3, 5)
	idle := testAgent("idle", domain.AgentStatusAvailable, 0, 5)
	recent := testAgent("recent", domain.AgentStatusAvailable, 1, 5)
	recent.LastAssignedAt = &later
	stale := testAgent("stale", domain.AgentStatusAvailable, 1, 5)
	stale.LastAssignedAt = &earlier
	away := testAgent("away", domain.AgentStatusAway, 0, 5)
	full := testAgent("full", domain.AgentStatusAvailable, 5, 5)

	for _, a := range []domain.Agent{busy, idle, recent, stale, away, full} {
		r.upsert(a)
	}

	available := r.listAvailable()
	require.Len(t, available, 4)
	assert.Equal(t, "idle", available[0].ID)
	// Equal load: the agent idle longest comes first.
	assert.Equal(t, "stale", available[1].ID)
	assert.Equal(t, "recent", available[2].ID)
	assert.Equal(t, "busy", available[3].ID)
}

func TestRegistryUpsertStoresCopy(t *testing.T) {
	r := newRegistry()
	agent := testAgent("a1", domain.AgentStatusAvailable, 0, 5)
	r.upsert(agent)

	agent.CurrentLoad = 99
	stored, _ := r.get("a1")
	assert.Equal(t, 0, stored.CurrentLoad)
}
