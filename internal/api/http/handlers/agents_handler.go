package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/conversation-queue-service/internal/api/dto"
	"github.com/spec-kit/conversation-queue-service/internal/domain"
	"github.com/spec-kit/conversation-queue-service/internal/service"
	apperrors "github.com/spec-kit/conversation-queue-service/pkg/util"
)

// AgentsHandler manages agent account endpoints.
type AgentsHandler struct {
	auth *service.AuthService
}

// NewAgentsHandler constructs handler.
func NewAgentsHandler(authService *service.AuthService) *AgentsHandler {
	return &AgentsHandler{auth: authService}
}

// Login POST /auth/agents/login.
func (h *AgentsHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.TenantID == "" || req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("tenantId, email and password required", nil)
	}

	result, err := h.auth.Login(c.Context(), req.TenantID, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.LoginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		Agent:     agentResponse(result.Agent),
	}})
}

// Register POST /auth/agents/register.
func (h *AgentsHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterAgentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	agent, err := h.auth.RegisterAgent(c.Context(), service.RegisterAgentInput{
		TenantID: req.TenantID,
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		MaxLoad:  req.MaxLoad,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": agentResponse(agent)})
}

func agentResponse(agent *domain.Agent) dto.AgentResponse {
	return dto.AgentResponse{
		ID:       agent.ID,
		TenantID: agent.TenantID,
		Name:     agent.Name,
		Email:    agent.Email,
		Role:     agent.Role,
		Status:   agent.Status,
		MaxLoad:  agent.MaxLoad,
	}
}
