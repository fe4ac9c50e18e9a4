package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/conversation-queue-service/internal/domain"
)

// AgentRepository handles persistence for agents.
type AgentRepository interface {
	Create(ctx context.Context, agent *domain.Agent) error
	UpdateStatus(ctx context.Context, agentID string, status domain.AgentStatus) error
	UpdateMetrics(ctx context.Context, agent *domain.Agent) error
	GetByID(ctx context.Context, id string) (*domain.Agent, error)
	GetByEmail(ctx context.Context, tenantID, email string) (*domain.Agent, error)
	ListByTenant(ctx context.Context, tenantID string) ([]domain.Agent, error)
	ListTenants(ctx context.Context) ([]string, error)
}

type agentRepository struct {
	pool *pgxpool.Pool
}

// NewAgentRepository instantiates the repository.
func NewAgentRepository(pool *pgxpool.Pool) AgentRepository {
	return &agentRepository{pool: pool}
}

const agentColumns = `id, tenant_id, name, email, password_hash, role, status, max_load,
       completed_today, avg_response_time_minutes, last_assigned_at, created_at, updated_at`

func (r *agentRepository) Create(ctx context.Context, agent *domain.Agent) error {
	const query = `
        INSERT INTO agents (tenant_id, name, email, password_hash, role, status, max_load)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		agent.TenantID,
		agent.Name,
		agent.Email,
		agent.PasswordHash,
		agent.Role,
		agent.Status,
		agent.MaxLoad,
	).Scan(&agent.ID, &agent.CreatedAt, &agent.UpdatedAt)
}

func (r *agentRepository) UpdateStatus(ctx context.Context, agentID string, status domain.AgentStatus) error {
	const query = `UPDATE agents SET status=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, status, agentID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *agentRepository) UpdateMetrics(ctx context.Context, agent *domain.Agent) error {
	const query = `
        UPDATE agents SET completed_today=$1, avg_response_time_minutes=$2,
            last_assigned_at=$3, updated_at=NOW()
        WHERE id=$4`
	cmd, err := r.pool.Exec(ctx, query,
		agent.CompletedToday,
		agent.AvgResponseTimeMinutes,
		agent.LastAssignedAt,
		agent.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *agentRepository) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *agentRepository) GetByEmail(ctx context.Context, tenantID, email string) (*domain.Agent, error) {
	const query = `SELECT ` + agentColumns + ` FROM agents WHERE tenant_id=$1 AND email=$2`
	row := r.pool.QueryRow(ctx, query, tenantID, email)
	return scanAgentRow(row)
}

func (r *agentRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Agent, error) {
	return scanAgentRow(r.pool.QueryRow(ctx, query, arg))
}

func (r *agentRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE tenant_id=$1 ORDER BY name`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Agent
	for rows.Next() {
		agent, err := scanAgentRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *agent)
	}
	return result, rows.Err()
}

func (r *agentRepository) ListTenants(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT tenant_id FROM agents ORDER BY tenant_id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var tenant string
		if err := rows.Scan(&tenant); err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgentRow(row rowScanner) (*domain.Agent, error) {
	var agent domain.Agent
	if err := row.Scan(
		&agent.ID,
		&agent.TenantID,
		&agent.Name,
		&agent.Email,
		&agent.PasswordHash,
		&agent.Role,
		&agent.Status,
		&agent.MaxLoad,
		&agent.CompletedToday,
		&agent.AvgResponseTimeMinutes,
		&agent.LastAssignedAt,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &agent, nil
}
