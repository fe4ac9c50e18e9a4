package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/conversation-queue-service/internal/auth"
	"github.com/spec-kit/conversation-queue-service/internal/domain"
	"github.com/spec-kit/conversation-queue-service/internal/repository"
	apperrors "github.com/spec-kit/conversation-queue-service/pkg/util"
)

// AuthService handles agent credentials and token issuance.
type AuthService struct {
	agents     repository.AgentRepository
	tokens     *auth.TokenManager
	queue      *QueueService
	bcryptCost int
	logger     *zap.Logger
}

// AuthDependencies bundles collaborators for the auth service.
type AuthDependencies struct {
	AgentRepo  repository.AgentRepository
	Tokens     *auth.TokenManager
	Queue      *QueueService
	BcryptCost int
	Logger     *zap.Logger
}

// NewAuthService constructs the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	return &AuthService{
		agents:     deps.AgentRepo,
		tokens:     deps.Tokens,
		queue:      deps.Queue,
		bcryptCost: deps.BcryptCost,
		logger:     deps.Logger,
	}
}

// RegisterAgentInput describes a new agent account.
type RegisterAgentInput struct {
	TenantID string
	Name     string
	Email    string
	Password string
	Role     domain.AgentRole
	MaxLoad  int
}

// RegisterAgent creates an agent account and makes it known to the
// assignment engine.
func (s *AuthService) RegisterAgent(ctx context.Context, input RegisterAgentInput) (*domain.Agent, error) {
	if input.TenantID == "" || input.Name == "" || input.Email == "" {
		return nil, apperrors.NewValidationError("tenantId, name and email are required", nil)
	}
	if len(input.Password) < 8 {
		return nil, apperrors.NewValidationError("password must be at least 8 characters", nil)
	}
	if input.Role == "" {
		input.Role = domain.AgentRoleAgent
	}

	hashed, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	agent := &domain.Agent{
		TenantID:     input.TenantID,
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hashed,
		Role:         input.Role,
		Status:       domain.AgentStatusOffline,
		MaxLoad:      input.MaxLoad,
	}
	if s.agents != nil {
		if err := s.agents.Create(ctx, agent); err != nil {
			return nil, apperrors.MapError(err)
		}
	}
	s.queue.RegisterAgent(*agent)
	s.logger.Info("agent registered",
		zap.String("tenant_id", agent.TenantID),
		zap.String("agent_id", agent.ID),
		zap.String("role", string(agent.Role)))
	return agent, nil
}

// LoginResult carries the signed token and its expiry.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Agent     *domain.Agent
}

// Login verifies agent credentials and issues a JWT.
func (s *AuthService) Login(ctx context.Context, tenantID, email, password string) (*LoginResult, error) {
	if s.agents == nil {
		return nil, apperrors.NewDomainError("AUTH_UNAVAILABLE", "authentication requires a database", 503, nil)
	}
	agent, err := s.agents.GetByEmail(ctx, tenantID, email)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(agent.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.tokens.GenerateToken(agent.ID, agent.TenantID, agent.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Agent: agent}, nil
}
