package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/conversation-queue-service/internal/config"
	"github.com/spec-kit/conversation-queue-service/internal/domain"
	"github.com/spec-kit/conversation-queue-service/internal/events"
	"github.com/spec-kit/conversation-queue-service/internal/observability"
	"github.com/spec-kit/conversation-queue-service/internal/persistence"
	"github.com/spec-kit/conversation-queue-service/internal/queue"
	"github.com/spec-kit/conversation-queue-service/internal/repository"
	apperrors "github.com/spec-kit/conversation-queue-service/pkg/util"
)

// QueueService coordinates the assignment engine with durable storage,
// presence tracking and event publication.
type QueueService struct {
	engine        *queue.Engine
	conversations repository.ConversationRepository
	assignments   repository.AssignmentRepository
	agents        repository.AgentRepository
	dispatcher    events.Dispatcher
	redis         *persistence.Redis
	metrics       *observability.Metrics
	logger        *zap.Logger
	presenceTTL   time.Duration
	autoAssign    bool
}

// QueueDependencies bundles collaborators for the queue service. Repositories
// may be nil when the service runs without Postgres; state then lives in
// memory only.
type QueueDependencies struct {
	Engine           *queue.Engine
	ConversationRepo repository.ConversationRepository
	AssignmentRepo   repository.AssignmentRepository
	AgentRepo        repository.AgentRepository
	Dispatcher       events.Dispatcher
	Redis            *persistence.Redis
	Metrics          *observability.Metrics
	Logger           *zap.Logger
	QueueConfig      config.QueueConfig
}

// EnqueueInput describes an inbound conversation to queue.
type EnqueueInput struct {
	TenantID       string
	ConversationID string
	CustomerName   string
	CustomerPhone  string
	Priority       domain.QueuePriority
}

// NewQueueService constructs the service.
func NewQueueService(deps QueueDependencies) *QueueService {
	return &QueueService{
		engine:        deps.Engine,
		conversations: deps.ConversationRepo,
		assignments:   deps.AssignmentRepo,
		agents:        deps.AgentRepo,
		dispatcher:    deps.Dispatcher,
		redis:         deps.Redis,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		presenceTTL:   deps.QueueConfig.PresenceTTL(),
		autoAssign:    deps.QueueConfig.AutoAssign,
	}
}

func (s *QueueService) persisted() bool {
	return s.conversations != nil && s.assignments != nil && s.agents != nil
}

// Enqueue places a conversation in the waiting queue and returns its 1-based
// position. Re-enqueueing a waiting conversation is idempotent.
func (s *QueueService) Enqueue(ctx context.Context, input EnqueueInput) (int, error) {
	if input.ConversationID == "" {
		return 0, apperrors.NewValidationError("conversationId is required", nil)
	}
	if !input.Priority.Valid() {
		return 0, apperrors.NewValidationError("unknown priority", map[string]any{"priority": input.Priority})
	}

	req := queue.EnqueueRequest{
		TenantID:       input.TenantID,
		ConversationID: input.ConversationID,
		CustomerName:   input.CustomerName,
		CustomerPhone:  input.CustomerPhone,
		Priority:       input.Priority,
	}
	position, err := s.engine.Enqueue(req, func(entry domain.QueueEntry) error {
		if !s.persisted() {
			return nil
		}
		return s.conversations.Upsert(ctx, &domain.Conversation{
			ID:             entry.ConversationID,
			TenantID:       entry.TenantID,
			CustomerName:   entry.CustomerName,
			CustomerPhone:  entry.CustomerPhone,
			Priority:       entry.Priority,
			State:          domain.ConversationStateWaiting,
			EnteredQueueAt: entry.EnteredQueueAt,
		})
	})
	if err != nil {
		return 0, s.mapError(err)
	}

	s.metrics.RecordQueueOp(input.TenantID, "enqueue")
	s.publish(ctx, events.Event{
		ID:             uuid.NewString(),
		Type:           events.EventConversationEnqueued,
		TenantID:       input.TenantID,
		ConversationID: input.ConversationID,
		Timestamp:      time.Now(),
		Payload: events.ConversationEnqueuedPayload{
			Priority: input.Priority,
			Position: position,
		},
	})
	return position, nil
}

// Withdraw removes a waiting conversation from the queue.
func (s *QueueService) Withdraw(ctx context.Context, tenantID, conversationID string) error {
	err := s.engine.Withdraw(tenantID, conversationID, func() error {
		if !s.persisted() {
			return nil
		}
		return s.conversations.SetState(ctx, conversationID, domain.ConversationStateClosed)
	})
	if err != nil {
		return s.mapError(err)
	}

	s.metrics.RecordQueueOp(tenantID, "withdraw")
	s.publish(ctx, events.Event{
		ID:             uuid.NewString(),
		Type:           events.EventConversationWithdrawn,
		TenantID:       tenantID,
		ConversationID: conversationID,
		Timestamp:      time.Now(),
	})
	return nil
}

// AcceptNext matches the agent with the most urgent waiting conversation.
// Returns nil when the queue is empty or the agent has no headroom.
func (s *QueueService) AcceptNext(ctx context.Context, tenantID, agentID string) (*domain.Assignment, error) {
	assignment, err := s.engine.AcceptNext(tenantID, agentID, func(proposed domain.Assignment) error {
		if !s.persisted() {
			return nil
		}
		if err := s.assignments.Create(ctx, &proposed); err != nil {
			return err
		}
		return s.conversations.SetState(ctx, proposed.ConversationID, domain.ConversationStateAssigned)
	})
	if err != nil {
		return nil, s.mapError(err)
	}
	if assignment == nil {
		return nil, nil
	}

	s.metrics.RecordQueueOp(tenantID, "accept")
	s.publish(ctx, events.Event{
		ID:             uuid.NewString(),
		Type:           events.EventConversationAssigned,
		TenantID:       tenantID,
		ConversationID: assignment.ConversationID,
		ActorAgentID:   agentID,
		Timestamp:      time.Now(),
		Payload: events.ConversationAssignedPayload{
			AssignmentID: assignment.ID,
			AgentID:      agentID,
			Priority:     assignment.Priority,
			AssignedAt:   assignment.AssignedAt,
		},
	})
	return assignment, nil
}

// Transfer moves an active assignment to another agent without requeueing.
func (s *QueueService) Transfer(ctx context.Context, tenantID, conversationID, fromAgentID, toAgentID string) (*domain.Assignment, error) {
	assignment, err := s.engine.Transfer(tenantID, conversationID, fromAgentID, toAgentID, func(proposed domain.Assignment) error {
		if !s.persisted() {
			return nil
		}
		return s.assignments.Reassign(ctx, proposed.ID, proposed.AgentID, proposed.AssignedAt)
	})
	if err != nil {
		return nil, s.mapError(err)
	}

	s.metrics.RecordQueueOp(tenantID, "transfer")
	s.publish(ctx, events.Event{
		ID:             uuid.NewString(),
		Type:           events.EventConversationTransferred,
		TenantID:       tenantID,
		ConversationID: conversationID,
		ActorAgentID:   fromAgentID,
		Timestamp:      time.Now(),
		Payload: events.ConversationTransferredPayload{
			AssignmentID: assignment.ID,
			FromAgentID:  fromAgentID,
			ToAgentID:    toAgentID,
		},
	})
	return assignment, nil
}

// Release ends an assignment, either closing the conversation or putting it
// back in the queue. Returns the requeued entry when applicable.
func (s *QueueService) Release(ctx context.Context, tenantID, conversationID, agentID string, disposition domain.ReleaseDisposition) (*domain.QueueEntry, error) {
	if disposition != domain.DispositionClosed && disposition != domain.DispositionRequeued {
		return nil, apperrors.NewValidationError("unknown disposition", map[string]any{"disposition": disposition})
	}

	entry, err := s.engine.Release(tenantID, conversationID, agentID, disposition, func(released domain.Assignment, requeued *domain.QueueEntry) error {
		if !s.persisted() {
			return nil
		}
		if err := s.assignments.Release(ctx, released.ID, *released.ReleasedAt, disposition); err != nil {
			return err
		}
		if requeued != nil {
			return s.conversations.Requeue(ctx, conversationID, requeued.EnteredQueueAt)
		}
		return s.conversations.SetState(ctx, conversationID, domain.ConversationStateClosed)
	})
	if err != nil {
		return nil, s.mapError(err)
	}

	s.metrics.RecordQueueOp(tenantID, "release")
	s.publish(ctx, events.Event{
		ID:             uuid.NewString(),
		Type:           events.EventConversationReleased,
		TenantID:       tenantID,
		ConversationID: conversationID,
		ActorAgentID:   agentID,
		Timestamp:      time.Now(),
		Payload: events.ConversationReleasedPayload{
			AgentID:     agentID,
			Disposition: disposition,
			Requeued:    entry != nil,
		},
	})

	// Persist the agent's rolling completion metrics after a close.
	if disposition == domain.DispositionClosed && s.persisted() {
		s.persistAgentMetrics(ctx, tenantID, agentID)
	}
	return entry, nil
}

// SetAgentStatus applies the agent presence state machine. When auto-assign
// is enabled, an agent coming Available immediately pulls waiting work up to
// capacity.
func (s *QueueService) SetAgentStatus(ctx context.Context, tenantID, agentID string, status domain.AgentStatus) (domain.Agent, error) {
	agent, err := s.engine.SetAgentStatus(tenantID, agentID, status, func(proposed domain.Agent) error {
		if !s.persisted() {
			return nil
		}
		return s.agents.UpdateStatus(ctx, agentID, proposed.Status)
	})
	if err != nil {
		if errors.Is(err, queue.ErrInvalidTransition) {
			return agent, apperrors.NewConflict("status transition not allowed", map[string]any{
				"currentStatus":   agent.Status,
				"requestedStatus": status,
			})
		}
		return agent, s.mapError(err)
	}

	s.recordPresence(ctx, tenantID, agentID, status)
	s.metrics.RecordQueueOp(tenantID, "set_status")
	s.publish(ctx, events.Event{
		ID:           uuid.NewString(),
		Type:         events.EventAgentStatusChanged,
		TenantID:     tenantID,
		ActorAgentID: agentID,
		Timestamp:    time.Now(),
		Payload: events.AgentStatusChangedPayload{
			AgentID:   agentID,
			NewStatus: status,
		},
	})

	if s.autoAssign && status == domain.AgentStatusAvailable {
		s.drainInto(ctx, tenantID, agentID)
	}
	return agent, nil
}

// drainInto pulls queued conversations for a newly available agent until the
// queue empties or the agent hits capacity.
func (s *QueueService) drainInto(ctx context.Context, tenantID, agentID string) {
	for {
		assignment, err := s.AcceptNext(ctx, tenantID, agentID)
		if err != nil {
			s.logger.Warn("auto-assign pull failed",
				zap.String("tenant_id", tenantID),
				zap.String("agent_id", agentID),
				zap.Error(err))
			return
		}
		if assignment == nil {
			return
		}
	}
}

// MessageActivity records inbound or outbound message traffic on an active
// assignment, keeping unread flags and SLA timers current.
func (s *QueueService) MessageActivity(ctx context.Context, tenantID, conversationID string, fromCustomer bool) (*domain.Assignment, error) {
	assignment, err := s.engine.MessageActivity(tenantID, conversationID, fromCustomer, time.Time{}, func(proposed domain.Assignment) error {
		if !s.persisted() {
			return nil
		}
		if err := s.assignments.UpdateUnread(ctx, proposed.ID, proposed.HasUnread, proposed.LastMessageAt); err != nil {
			return err
		}
		return s.conversations.TouchLastMessage(ctx, conversationID, proposed.LastMessageAt)
	})
	if err != nil {
		return nil, s.mapError(err)
	}
	return assignment, nil
}

// Position returns the 1-based queue rank of a waiting conversation.
func (s *QueueService) Position(tenantID, conversationID string) (int, bool) {
	return s.engine.Position(tenantID, conversationID)
}

// Stats returns the tenant dashboard aggregate.
func (s *QueueService) Stats(tenantID string) queue.Stats {
	return s.engine.Stats(tenantID)
}

// QueueItems returns up to take waiting conversations in serve order.
func (s *QueueService) QueueItems(tenantID string, take int) []queue.QueueItemView {
	return s.engine.QueueItems(tenantID, take)
}

// MyAssignments returns the agent's active workload with SLA flags.
func (s *QueueService) MyAssignments(tenantID, agentID string) []queue.AssignmentView {
	return s.engine.AssignmentsByAgent(tenantID, agentID)
}

// AgentStatuses returns the live status board for the tenant.
func (s *QueueService) AgentStatuses(tenantID string) []queue.AgentStatusView {
	return s.engine.AgentStatuses(tenantID)
}

// RegisterAgent makes an agent known to the in-memory registry.
func (s *QueueService) RegisterAgent(agent domain.Agent) {
	s.engine.RegisterAgent(agent)
}

// Restore rebuilds in-memory state from Postgres at startup. Without a
// database the service starts empty.
func (s *QueueService) Restore(ctx context.Context) error {
	if !s.persisted() {
		return nil
	}
	tenants, err := s.agents.ListTenants(ctx)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}
	for _, tenantID := range tenants {
		agents, err := s.agents.ListByTenant(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("load agents for %s: %w", tenantID, err)
		}
		waiting, err := s.conversations.ListWaiting(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("load waiting conversations for %s: %w", tenantID, err)
		}
		active, err := s.assignments.ListActiveByTenant(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("load active assignments for %s: %w", tenantID, err)
		}

		entries := make([]domain.QueueEntry, 0, len(waiting))
		for _, conv := range waiting {
			entries = append(entries, domain.QueueEntry{
				ConversationID: conv.ID,
				TenantID:       conv.TenantID,
				Priority:       conv.Priority,
				EnteredQueueAt: conv.EnteredQueueAt,
				CustomerName:   conv.CustomerName,
				CustomerPhone:  conv.CustomerPhone,
			})
		}
		s.engine.RestoreTenant(tenantID, agents, entries, active)
		s.logger.Info("tenant state restored",
			zap.String("tenant_id", tenantID),
			zap.Int("agents", len(agents)),
			zap.Int("waiting", len(entries)),
			zap.Int("active", len(active)))
	}
	return nil
}

// ResetDailyCounters zeroes per-agent daily metrics across tenants.
func (s *QueueService) ResetDailyCounters() {
	s.engine.ResetDailyCounters()
}

func (s *QueueService) persistAgentMetrics(ctx context.Context, tenantID, agentID string) {
	for _, view := range s.engine.AgentStatuses(tenantID) {
		if view.AgentID != agentID {
			continue
		}
		agent, err := s.agents.GetByID(ctx, agentID)
		if err != nil {
			s.logger.Warn("load agent for metrics persist failed", zap.String("agent_id", agentID), zap.Error(err))
			return
		}
		agent.CompletedToday = view.CompletedToday
		agent.AvgResponseTimeMinutes = view.AvgResponseTimeMinutes
		if err := s.agents.UpdateMetrics(ctx, agent); err != nil {
			s.logger.Warn("persist agent metrics failed", zap.String("agent_id", agentID), zap.Error(err))
		}
		return
	}
}

func (s *QueueService) recordPresence(ctx context.Context, tenantID, agentID string, status domain.AgentStatus) {
	if s.redis == nil || s.redis.Client == nil {
		return
	}
	key := fmt.Sprintf("queue:agent-status:%s:%s", tenantID, agentID)
	if err := s.redis.Client.Set(ctx, key, string(status), s.presenceTTL).Err(); err != nil {
		s.logger.Warn("presence write failed", zap.String("agent_id", agentID), zap.Error(err))
	}
}

func (s *QueueService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed",
			zap.String("event_type", string(event.Type)),
			zap.String("tenant_id", event.TenantID),
			zap.Error(err))
	}
}

func (s *QueueService) mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, queue.ErrAlreadyActive):
		return apperrors.NewConflict("conversation is already assigned", nil)
	case errors.Is(err, queue.ErrNotAssigned):
		return apperrors.NewConflict("conversation is not assigned to this agent", nil)
	case errors.Is(err, queue.ErrCapacityExceeded):
		return apperrors.NewConflict("agent is at capacity", nil)
	case errors.Is(err, queue.ErrAgentUnavailable):
		return apperrors.NewConflict("agent is not available for new work", nil)
	case errors.Is(err, queue.ErrInvalidTransition):
		return apperrors.NewConflict("status transition not allowed", nil)
	case errors.Is(err, queue.ErrUnknownAgent):
		return apperrors.NewNotFound("agent", nil)
	case errors.Is(err, queue.ErrUnknownConversation):
		return apperrors.NewNotFound("conversation", nil)
	default:
		return apperrors.MapError(err)
	}
}
