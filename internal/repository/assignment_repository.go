package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/conversation-queue-service/internal/domain"
)

// AssignmentRepository handles persistence for conversation assignments.
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *domain.Assignment) error
	Release(ctx context.Context, id string, releasedAt time.Time, disposition domain.ReleaseDisposition) error
	UpdateUnread(ctx context.Context, id string, hasUnread bool, lastMessageAt time.Time) error
	Reassign(ctx context.Context, id, toAgentID string, assignedAt time.Time) error
	ListActiveByTenant(ctx context.Context, tenantID string) ([]domain.Assignment, error)
	ListActiveByAgent(ctx context.Context, tenantID, agentID string) ([]domain.Assignment, error)
}

type assignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository instantiates the repository.
func NewAssignmentRepository(pool *pgxpool.Pool) AssignmentRepository {
	return &assignmentRepository{pool: pool}
}

const assignmentColumns = `id, conversation_id, tenant_id, agent_id, priority, customer_name,
       customer_phone, assigned_at, has_unread, last_message_at, released_at, disposition,
       entered_queue_at`

func (r *assignmentRepository) Create(ctx context.Context, assignment *domain.Assignment) error {
	const query = `
        INSERT INTO assignments (id, conversation_id, tenant_id, agent_id, priority,
            customer_name, customer_phone, assigned_at, has_unread, last_message_at, entered_queue_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := r.pool.Exec(ctx, query,
		assignment.ID,
		assignment.ConversationID,
		assignment.TenantID,
		assignment.AgentID,
		assignment.Priority,
		assignment.CustomerName,
		assignment.CustomerPhone,
		assignment.AssignedAt,
		assignment.HasUnread,
		assignment.LastMessageAt,
		assignment.EnteredQueueAt,
	)
	return err
}

func (r *assignmentRepository) Release(ctx context.Context, id string, releasedAt time.Time, disposition domain.ReleaseDisposition) error {
	const query = `
        UPDATE assignments SET released_at=$1, disposition=$2
        WHERE id=$3 AND released_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, releasedAt, disposition, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *assignmentRepository) UpdateUnread(ctx context.Context, id string, hasUnread bool, lastMessageAt time.Time) error {
	const query = `
        UPDATE assignments SET has_unread=$1, last_message_at=$2
        WHERE id=$3 AND released_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, hasUnread, lastMessageAt, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *assignmentRepository) Reassign(ctx context.Context, id, toAgentID string, assignedAt time.Time) error {
	const query = `
        UPDATE assignments SET agent_id=$1, assigned_at=$2, has_unread=FALSE, last_message_at=$2
        WHERE id=$3 AND released_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, toAgentID, assignedAt, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *assignmentRepository) ListActiveByTenant(ctx context.Context, tenantID string) ([]domain.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments
        WHERE tenant_id=$1 AND released_at IS NULL
        ORDER BY assigned_at`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAssignments(rows)
}

func (r *assignmentRepository) ListActiveByAgent(ctx context.Context, tenantID, agentID string) ([]domain.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments
        WHERE tenant_id=$1 AND agent_id=$2 AND released_at IS NULL
        ORDER BY assigned_at DESC`
	rows, err := r.pool.Query(ctx, query, tenantID, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAssignments(rows)
}

func collectAssignments(rows pgx.Rows) ([]domain.Assignment, error) {
	var result []domain.Assignment
	for rows.Next() {
		var a domain.Assignment
		if err := rows.Scan(
			&a.ID,
			&a.ConversationID,
			&a.TenantID,
			&a.AgentID,
			&a.Priority,
			&a.CustomerName,
			&a.CustomerPhone,
			&a.AssignedAt,
			&a.HasUnread,
			&a.LastMessageAt,
			&a.ReleasedAt,
			&a.Disposition,
			&a.EnteredQueueAt,
		); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}
