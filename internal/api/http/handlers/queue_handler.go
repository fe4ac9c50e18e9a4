package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/conversation-queue-service/internal/api/dto"
	"github.com/spec-kit/conversation-queue-service/internal/auth"
	"github.com/spec-kit/conversation-queue-service/internal/domain"
	"github.com/spec-kit/conversation-queue-service/internal/service"
	apperrors "github.com/spec-kit/conversation-queue-service/pkg/util"
)

// QueueHandler exposes the conversation queue endpoints.
type QueueHandler struct {
	service *service.QueueService
}

// NewQueueHandler constructs handler.
func NewQueueHandler(queueService *service.QueueService) *QueueHandler {
	return &QueueHandler{service: queueService}
}

// Stats GET /queue/stats.
func (h *QueueHandler) Stats(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	return c.JSON(fiber.Map{"data": h.service.Stats(principal.TenantID)})
}

// Items GET /queue/items?take=N.
func (h *QueueHandler) Items(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	take := 0
	if raw := c.Query("take"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return apperrors.NewValidationError("take must be a non-negative integer", nil)
		}
		take = parsed
	}
	return c.JSON(fiber.Map{"data": h.service.QueueItems(principal.TenantID, take)})
}

// MyAssignments GET /queue/my-assignments.
func (h *QueueHandler) MyAssignments(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	views := h.service.MyAssignments(principal.TenantID, principal.Agent.ID)
	items := make([]dto.AssignmentResponse, 0, len(views))
	for i := range views {
		items = append(items, assignmentResponse(&views[i].Assignment, views[i].SlaWarning))
	}
	return c.JSON(fiber.Map{"data": items})
}

// AgentStatuses GET /queue/advogados-status.
func (h *QueueHandler) AgentStatuses(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	return c.JSON(fiber.Map{"data": h.service.AgentStatuses(principal.TenantID)})
}

// Enqueue POST /queue/enqueue.
func (h *QueueHandler) Enqueue(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	var req dto.EnqueueRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	position, err := h.service.Enqueue(c.Context(), service.EnqueueInput{
		TenantID:       principal.TenantID,
		ConversationID: req.ConversationID,
		CustomerName:   req.CustomerName,
		CustomerPhone:  req.CustomerPhone,
		Priority:       req.Priority,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.EnqueueResponse{
		ConversationID: req.ConversationID,
		Position:       position,
	}})
}

// AcceptNext POST /queue/accept-next.
func (h *QueueHandler) AcceptNext(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	assignment, err := h.service.AcceptNext(c.Context(), principal.TenantID, principal.Agent.ID)
	if err != nil {
		return err
	}
	if assignment == nil {
		return c.JSON(fiber.Map{"data": dto.AcceptNextResponse{Success: false}})
	}
	resp := assignmentResponse(assignment, false)
	return c.JSON(fiber.Map{"data": dto.AcceptNextResponse{
		Success:        true,
		ConversationID: assignment.ConversationID,
		Assignment:     &resp,
	}})
}

// Transfer POST /queue/transfer.
func (h *QueueHandler) Transfer(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	var req dto.TransferRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ConversationID == "" || req.ToAgentID == "" {
		return apperrors.NewValidationError("conversationId and toAgentId required", nil)
	}

	assignment, err := h.service.Transfer(c.Context(), principal.TenantID, req.ConversationID, principal.Agent.ID, req.ToAgentID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": assignmentResponse(assignment, false)})
}

// Release POST /queue/release.
func (h *QueueHandler) Release(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	var req dto.ReleaseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ConversationID == "" {
		return apperrors.NewValidationError("conversationId required", nil)
	}

	entry, err := h.service.Release(c.Context(), principal.TenantID, req.ConversationID, principal.Agent.ID, req.Disposition)
	if err != nil {
		return err
	}
	response := fiber.Map{"conversationId": req.ConversationID, "disposition": req.Disposition}
	if entry != nil {
		if pos, ok := h.service.Position(principal.TenantID, req.ConversationID); ok {
			response["position"] = pos
		}
	}
	return c.JSON(fiber.Map{"data": response})
}

// Withdraw POST /queue/withdraw.
func (h *QueueHandler) Withdraw(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	var req dto.WithdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ConversationID == "" {
		return apperrors.NewValidationError("conversationId required", nil)
	}

	if err := h.service.Withdraw(c.Context(), principal.TenantID, req.ConversationID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"conversationId": req.ConversationID, "withdrawn": true}})
}

// SetStatus PUT /queue/status.
func (h *QueueHandler) SetStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	var req dto.SetStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if !req.Status.Valid() {
		return apperrors.NewValidationError("unknown status", map[string]any{"status": req.Status})
	}

	agent, err := h.service.SetAgentStatus(c.Context(), principal.TenantID, principal.Agent.ID, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.StatusChangeResponse{
		AgentID:  agent.ID,
		Status:   agent.Status,
		Activity: agent.Activity(),
	}})
}

// MessageActivity POST /queue/message-activity.
func (h *QueueHandler) MessageActivity(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	var req dto.MessageActivityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ConversationID == "" {
		return apperrors.NewValidationError("conversationId required", nil)
	}

	assignment, err := h.service.MessageActivity(c.Context(), principal.TenantID, req.ConversationID, req.FromCustomer)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": assignmentResponse(assignment, false)})
}

func assignmentResponse(assignment *domain.Assignment, slaWarning bool) dto.AssignmentResponse {
	return dto.AssignmentResponse{
		ID:             assignment.ID,
		ConversationID: assignment.ConversationID,
		AgentID:        assignment.AgentID,
		Priority:       assignment.Priority,
		CustomerName:   assignment.CustomerName,
		CustomerPhone:  assignment.CustomerPhone,
		AssignedAt:     assignment.AssignedAt,
		HasUnread:      assignment.HasUnread,
		LastMessageAt:  assignment.LastMessageAt,
		SlaWarning:     slaWarning,
	}
}
