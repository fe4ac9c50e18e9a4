package queue

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/conversation-queue-service/internal/domain"
)

// Config tunes engine behavior per deployment.
type Config struct {
	// AutoAssign lets an agent transitioning to Available trigger a pull.
	AutoAssign bool
	// AcceptRetries bounds how many queue heads AcceptNext will try before
	// reporting none.
	AcceptRetries int
	// DefaultMaxLoad is applied to agents registered without a capacity.
	DefaultMaxLoad int
	// PreserveWaitOnRequeue keeps the original enteredQueueAt on requeue so
	// a customer whose agent went offline is not penalized.
	PreserveWaitOnRequeue bool
}

// Engine owns all per-tenant queue state: the priority store, the agent
// registry and the active assignment index. Every mutation against one
// tenant serializes through that tenant's critical section; tenants share
// no locks with each other.
//
// Mutating operations accept a commit callback. The engine validates the
// operation, invokes commit with the proposed state while still holding the
// tenant lock, and applies the in-memory transition only if commit returns
// nil. A failing commit therefore leaves the in-memory invariants intact
// and the operation fails closed.
type Engine struct {
	mu      sync.RWMutex
	tenants map[string]*tenantState
	cfg     Config
	sla     SLAPolicy
	now     func() time.Time
}

type tenantState struct {
	mu          sync.Mutex
	queue       *store
	agents      *registry
	assignments map[string]*domain.Assignment // conversationID -> active assignment
}

// NewEngine builds an engine with no tenants; tenant state is created on
// first touch.
func NewEngine(cfg Config, sla SLAPolicy) *Engine {
	if cfg.AcceptRetries <= 0 {
		cfg.AcceptRetries = 3
	}
	if cfg.DefaultMaxLoad <= 0 {
		cfg.DefaultMaxLoad = 5
	}
	return &Engine{
		tenants: make(map[string]*tenantState),
		cfg:     cfg,
		sla:     sla,
		now:     time.Now,
	}
}

// SLA exposes the policy for read-side derivations.
func (e *Engine) SLA() SLAPolicy {
	return e.sla
}

func (e *Engine) tenant(tenantID string) *tenantState {
	e.mu.RLock()
	ts, ok := e.tenants[tenantID]
	e.mu.RUnlock()
	if ok {
		return ts
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if ts, ok = e.tenants[tenantID]; ok {
		return ts
	}
	ts = &tenantState{
		queue:       newStore(),
		agents:      newRegistry(),
		assignments: make(map[string]*domain.Assignment),
	}
	e.tenants[tenantID] = ts
	return ts
}

// RegisterAgent adds or refreshes an agent in the tenant registry. A zero
// MaxLoad gets the configured default.
func (e *Engine) RegisterAgent(agent domain.Agent) {
	if agent.MaxLoad <= 0 {
		agent.MaxLoad = e.cfg.DefaultMaxLoad
	}
	if agent.Status == "" {
		agent.Status = domain.AgentStatusOffline
	}
	ts := e.tenant(agent.TenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if existing, ok := ts.agents.get(agent.ID); ok {
		// Live counters survive a re-register; only profile fields refresh.
		agent.CurrentLoad = existing.CurrentLoad
		agent.Status = existing.Status
		agent.LastAssignedAt = existing.LastAssignedAt
		agent.CompletedToday = existing.CompletedToday
		agent.AvgResponseTimeMinutes = existing.AvgResponseTimeMinutes
	}
	ts.agents.upsert(agent)
}

// EnqueueRequest describes an inbound conversation to queue.
type EnqueueRequest struct {
	TenantID       string
	ConversationID string
	CustomerName   string
	CustomerPhone  string
	Priority       domain.QueuePriority
	// EnteredQueueAt zero means "now"; restores and wait-preserving
	// requeues pass the original timestamp.
	EnteredQueueAt time.Time
}

// Enqueue inserts a conversation into the waiting queue and returns its
// 1-based position. Enqueueing an already-queued conversation is idempotent
// and returns the existing position; an already-assigned conversation fails
// with ErrAlreadyActive.
func (e *Engine) Enqueue(req EnqueueRequest, commit func(domain.QueueEntry) error) (int, error) {
	ts := e.tenant(req.TenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if _, active := ts.assignments[req.ConversationID]; active {
		return 0, ErrAlreadyActive
	}
	if ts.queue.contains(req.ConversationID) {
		pos, _ := ts.queue.position(req.ConversationID)
		return pos, nil
	}

	enteredAt := req.EnteredQueueAt
	if enteredAt.IsZero() {
		enteredAt = e.now()
	}
	entry := domain.QueueEntry{
		ConversationID: req.ConversationID,
		TenantID:       req.TenantID,
		Priority:       req.Priority,
		EnteredQueueAt: enteredAt,
		CustomerName:   req.CustomerName,
		CustomerPhone:  req.CustomerPhone,
	}
	if commit != nil {
		if err := commit(entry); err != nil {
			return 0, err
		}
	}
	pos, _ := ts.queue.enqueue(&entry)
	return pos, nil
}

// Withdraw removes a waiting conversation, e.g. when the customer cancels.
func (e *Engine) Withdraw(tenantID, conversationID string, commit func() error) error {
	ts := e.tenant(tenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if !ts.queue.contains(conversationID) {
		if _, active := ts.assignments[conversationID]; active {
			return ErrAlreadyActive
		}
		return ErrUnknownConversation
	}
	if commit != nil {
		if err := commit(); err != nil {
			return err
		}
	}
	ts.queue.remove(conversationID)
	return nil
}

// AcceptNext atomically matches the calling agent with the head of the
// queue. Returns (nil, nil) when there is no work or the agent is at
// capacity; both are expected outcomes, not failures. The agent must have
// declared Available: manual Away/OnBreak/Offline always wins over load
// headroom.
func (e *Engine) AcceptNext(tenantID, agentID string, commit func(domain.Assignment) error) (*domain.Assignment, error) {
	ts := e.tenant(tenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return e.acceptNextLocked(ts, tenantID, agentID, commit)
}

func (e *Engine) acceptNextLocked(ts *tenantState, tenantID, agentID string, commit func(domain.Assignment) error) (*domain.Assignment, error) {
	agent, ok := ts.agents.get(agentID)
	if !ok {
		return nil, ErrUnknownAgent
	}
	if agent.Status != domain.AgentStatusAvailable {
		return nil, ErrAgentUnavailable
	}
	if agent.CurrentLoad >= agent.MaxLoad {
		return nil, nil
	}

	for attempt := 0; attempt < e.cfg.AcceptRetries; attempt++ {
		entry := ts.queue.peek()
		if entry == nil {
			return nil, nil
		}
		if _, exists := ts.assignments[entry.ConversationID]; exists {
			// Index disagreement; drop the stale entry and try the new head.
			ts.queue.remove(entry.ConversationID)
			continue
		}

		now := e.now()
		assignment := domain.Assignment{
			ID:             uuid.NewString(),
			ConversationID: entry.ConversationID,
			TenantID:       tenantID,
			AgentID:        agentID,
			Priority:       entry.Priority,
			CustomerName:   entry.CustomerName,
			CustomerPhone:  entry.CustomerPhone,
			AssignedAt:     now,
			LastMessageAt:  now,
			EnteredQueueAt: entry.EnteredQueueAt,
		}
		if commit != nil {
			if err := commit(assignment); err != nil {
				return nil, err
			}
		}

		ts.queue.remove(entry.ConversationID)
		if err := e.applyAssignment(ts, assignment, now); err != nil {
			restored := *entry
			ts.queue.enqueue(&restored)
			return nil, err
		}
		return &assignment, nil
	}
	return nil, nil
}

func (e *Engine) applyAssignment(ts *tenantState, assignment domain.Assignment, now time.Time) error {
	if err := ts.agents.incrementLoad(assignment.AgentID, now); err != nil {
		return err
	}
	stored := assignment
	ts.assignments[assignment.ConversationID] = &stored
	return nil
}

// Transfer atomically moves an active assignment from one agent to another
// without requeueing. The source load decrements and the target load
// increments in the same critical section; a failing commit changes
// nothing.
func (e *Engine) Transfer(tenantID, conversationID, fromAgentID, toAgentID string, commit func(domain.Assignment) error) (*domain.Assignment, error) {
	ts := e.tenant(tenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()

	assignment, ok := ts.assignments[conversationID]
	if !ok || assignment.AgentID != fromAgentID {
		return nil, ErrNotAssigned
	}
	if fromAgentID == toAgentID {
		copied := *assignment
		return &copied, nil
	}
	target, ok := ts.agents.get(toAgentID)
	if !ok {
		return nil, ErrUnknownAgent
	}
	if target.CurrentLoad >= target.MaxLoad {
		return nil, ErrCapacityExceeded
	}

	now := e.now()
	updated := *assignment
	updated.AgentID = toAgentID
	updated.AssignedAt = now
	updated.LastMessageAt = now
	if commit != nil {
		if err := commit(updated); err != nil {
			return nil, err
		}
	}

	if err := ts.agents.decrementLoad(fromAgentID); err != nil {
		return nil, err
	}
	if err := ts.agents.incrementLoad(toAgentID, now); err != nil {
		// Capacity was checked under this lock; restore and reject.
		_ = ts.agents.incrementLoad(fromAgentID, now)
		return nil, err
	}
	*assignment = updated
	return &updated, nil
}

// Release ends an assignment. DispositionClosed records completion metrics;
// DispositionRequeued puts the conversation back in the waiting queue at its
// original priority, preserving the original wait when configured. Returns
// the requeued entry, or nil for a close.
func (e *Engine) Release(tenantID, conversationID, agentID string, disposition domain.ReleaseDisposition, commit func(domain.Assignment, *domain.QueueEntry) error) (*domain.QueueEntry, error) {
	ts := e.tenant(tenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()

	assignment, ok := ts.assignments[conversationID]
	if !ok || assignment.AgentID != agentID {
		return nil, ErrNotAssigned
	}

	now := e.now()
	released := *assignment
	released.ReleasedAt = &now
	disp := disposition
	released.Disposition = &disp

	var entry *domain.QueueEntry
	if disposition == domain.DispositionRequeued {
		enteredAt := now
		if e.cfg.PreserveWaitOnRequeue {
			enteredAt = assignment.EnteredQueueAt
		}
		entry = &domain.QueueEntry{
			ConversationID: conversationID,
			TenantID:       tenantID,
			Priority:       assignment.Priority,
			EnteredQueueAt: enteredAt,
			CustomerName:   assignment.CustomerName,
			CustomerPhone:  assignment.CustomerPhone,
		}
	}

	if commit != nil {
		if err := commit(released, entry); err != nil {
			return nil, err
		}
	}

	delete(ts.assignments, conversationID)
	if err := ts.agents.decrementLoad(agentID); err != nil {
		return nil, err
	}
	if disposition == domain.DispositionClosed {
		ts.agents.recordCompletion(agentID, now.Sub(assignment.AssignedAt).Minutes())
	}
	if entry != nil {
		ts.queue.enqueue(entry)
	}
	return entry, nil
}

// SetAgentStatus applies the manual intent state machine and returns the
// resulting agent snapshot. On an invalid transition the current agent is
// returned alongside ErrInvalidTransition so callers can reconcile.
func (e *Engine) SetAgentStatus(tenantID, agentID string, status domain.AgentStatus, commit func(domain.Agent) error) (domain.Agent, error) {
	ts := e.tenant(tenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()

	updated, err := ts.agents.previewStatus(agentID, status)
	if err != nil {
		return updated, err
	}
	if commit != nil {
		if err := commit(updated); err != nil {
			current, _ := ts.agents.get(agentID)
			return *current, err
		}
	}
	applied, err := ts.agents.setStatus(agentID, status)
	if err != nil {
		return domain.Agent{}, err
	}
	return *applied, nil
}

// MessageActivity records message traffic on an active assignment so the
// SLA tracker and unread flags stay current. fromCustomer marks the
// assignment unread; an agent reply clears it.
func (e *Engine) MessageActivity(tenantID, conversationID string, fromCustomer bool, at time.Time, commit func(domain.Assignment) error) (*domain.Assignment, error) {
	ts := e.tenant(tenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()

	assignment, ok := ts.assignments[conversationID]
	if !ok {
		if ts.queue.contains(conversationID) {
			return nil, ErrNotAssigned
		}
		return nil, ErrUnknownConversation
	}

	if at.IsZero() {
		at = e.now()
	}
	updated := *assignment
	updated.HasUnread = fromCustomer
	updated.LastMessageAt = at
	if commit != nil {
		if err := commit(updated); err != nil {
			return nil, err
		}
	}
	*assignment = updated
	copied := updated
	return &copied, nil
}

// Position returns the 1-based queue rank of a waiting conversation.
func (e *Engine) Position(tenantID, conversationID string) (int, bool) {
	ts := e.tenant(tenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.queue.position(conversationID)
}

// QueueItems returns up to take waiting conversations in serve order,
// enriched for display.
func (e *Engine) QueueItems(tenantID string, take int) []QueueItemView {
	ts := e.tenant(tenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()

	entries := ts.queue.snapshot()
	if take > 0 && take < len(entries) {
		entries = entries[:take]
	}
	now := e.now()
	items := make([]QueueItemView, 0, len(entries))
	for i, entry := range entries {
		items = append(items, QueueItemView{
			ConversationID:  entry.ConversationID,
			CustomerName:    entry.CustomerName,
			CustomerPhone:   entry.CustomerPhone,
			Priority:        entry.Priority,
			EnteredQueueAt:  entry.EnteredQueueAt,
			Position:        i + 1,
			WaitTimeMinutes: round1(now.Sub(entry.EnteredQueueAt).Minutes()),
		})
	}
	return items
}

// Stats computes the dashboard aggregate from one locked snapshot.
func (e *Engine) Stats(tenantID string) Stats {
	ts := e.tenant(tenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return computeStats(ts.queue, ts.agents, len(ts.assignments), e.now())
}

// AgentStatuses returns the live status board for every registered agent.
func (e *Engine) AgentStatuses(tenantID string) []AgentStatusView {
	ts := e.tenant(tenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()

	agents := ts.agents.all()
	views := make([]AgentStatusView, 0, len(agents))
	for _, agent := range agents {
		views = append(views, AgentStatusView{
			AgentID:                agent.ID,
			Name:                   agent.Name,
			Status:                 agent.Status,
			Activity:               agent.Activity(),
			CurrentLoad:            agent.CurrentLoad,
			MaxLoad:                agent.MaxLoad,
			CompletedToday:         agent.CompletedToday,
			AvgResponseTimeMinutes: round1(agent.AvgResponseTimeMinutes),
		})
	}
	return views
}

// AssignmentsByAgent returns the agent's active assignments with derived
// SLA flags, newest first.
func (e *Engine) AssignmentsByAgent(tenantID, agentID string) []AssignmentView {
	ts := e.tenant(tenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := e.now()
	views := make([]AssignmentView, 0)
	for _, assignment := range ts.assignments {
		if assignment.AgentID != agentID {
			continue
		}
		copied := *assignment
		views = append(views, AssignmentView{
			Assignment: copied,
			SlaWarning: e.sla.Warning(&copied, now),
		})
	}
	sortAssignmentViews(views)
	return views
}

// ListAvailableAgents returns match-eligible agents, least loaded first.
func (e *Engine) ListAvailableAgents(tenantID string) []domain.Agent {
	ts := e.tenant(tenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.agents.listAvailable()
}

// AgentLoad returns the agent's live load counters.
func (e *Engine) AgentLoad(tenantID, agentID string) (current, max int, err error) {
	ts := e.tenant(tenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()
	agent, ok := ts.agents.get(agentID)
	if !ok {
		return 0, 0, ErrUnknownAgent
	}
	return agent.CurrentLoad, agent.MaxLoad, nil
}

// ResetDailyCounters zeroes per-agent rolling metrics across all tenants.
// Invoked by an external daily scheduler.
func (e *Engine) ResetDailyCounters() {
	e.mu.RLock()
	tenants := make([]*tenantState, 0, len(e.tenants))
	for _, ts := range e.tenants {
		tenants = append(tenants, ts)
	}
	e.mu.RUnlock()

	for _, ts := range tenants {
		ts.mu.Lock()
		ts.agents.resetDailyCounters()
		ts.mu.Unlock()
	}
}

// RestoreTenant rebuilds one tenant's in-memory state from persisted
// records at startup. Agent loads are recomputed from the active
// assignments so invariant bookkeeping starts exact.
func (e *Engine) RestoreTenant(tenantID string, agents []domain.Agent, waiting []domain.QueueEntry, active []domain.Assignment) {
	ts := e.tenant(tenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()

	for _, agent := range agents {
		if agent.MaxLoad <= 0 {
			agent.MaxLoad = e.cfg.DefaultMaxLoad
		}
		if agent.Status == "" {
			agent.Status = domain.AgentStatusOffline
		}
		agent.CurrentLoad = 0
		ts.agents.upsert(agent)
	}
	for i := range waiting {
		entry := waiting[i]
		ts.queue.enqueue(&entry)
	}
	for _, assignment := range active {
		stored := assignment
		ts.assignments[assignment.ConversationID] = &stored
		if agent, ok := ts.agents.get(assignment.AgentID); ok {
			agent.CurrentLoad++
			if agent.LastAssignedAt == nil || assignment.AssignedAt.After(*agent.LastAssignedAt) {
				assignedAt := assignment.AssignedAt
				agent.LastAssignedAt = &assignedAt
			}
		}
	}
}

func sortAssignmentViews(views []AssignmentView) {
	for i := 1; i < len(views); i++ {
		for j := i; j > 0 && views[j].Assignment.AssignedAt.After(views[j-1].Assignment.AssignedAt); j-- {
			views[j], views[j-1] = views[j-1], views[j]
		}
	}
}
