package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/conversation-queue-service/internal/domain"
)

// ConversationRepository handles persistence for conversations.
type ConversationRepository interface {
	Upsert(ctx context.Context, conv *domain.Conversation) error
	SetState(ctx context.Context, id string, state domain.ConversationState) error
	Requeue(ctx context.Context, id string, enteredQueueAt time.Time) error
	TouchLastMessage(ctx context.Context, id string, at time.Time) error
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
	ListWaiting(ctx context.Context, tenantID string) ([]domain.Conversation, error)
}

type conversationRepository struct {
	pool *pgxpool.Pool
}

// NewConversationRepository instantiates the repository.
func NewConversationRepository(pool *pgxpool.Pool) ConversationRepository {
	return &conversationRepository{pool: pool}
}

const conversationColumns = `id, tenant_id, customer_name, customer_phone, priority, state,
       entered_queue_at, last_message_at, created_at, updated_at`

func (r *conversationRepository) Upsert(ctx context.Context, conv *domain.Conversation) error {
	const query = `
        INSERT INTO conversations (id, tenant_id, customer_name, customer_phone, priority, state, entered_queue_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (id) DO UPDATE SET
            priority=EXCLUDED.priority,
            state=EXCLUDED.state,
            entered_queue_at=EXCLUDED.entered_queue_at,
            updated_at=NOW()
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		conv.ID,
		conv.TenantID,
		conv.CustomerName,
		conv.CustomerPhone,
		conv.Priority,
		conv.State,
		conv.EnteredQueueAt,
	).Scan(&conv.CreatedAt, &conv.UpdatedAt)
}

func (r *conversationRepository) SetState(ctx context.Context, id string, state domain.ConversationState) error {
	const query = `UPDATE conversations SET state=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, state, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *conversationRepository) Requeue(ctx context.Context, id string, enteredQueueAt time.Time) error {
	const query = `
        UPDATE conversations SET state=$1, entered_queue_at=$2, updated_at=NOW()
        WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, domain.ConversationStateWaiting, enteredQueueAt, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *conversationRepository) TouchLastMessage(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE conversations SET last_message_at=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, at, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *conversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id=$1`
	return scanConversationRow(r.pool.QueryRow(ctx, query, id))
}

func (r *conversationRepository) ListWaiting(ctx context.Context, tenantID string) ([]domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations
        WHERE tenant_id=$1 AND state=$2
        ORDER BY entered_queue_at, id`
	rows, err := r.pool.Query(ctx, query, tenantID, domain.ConversationStateWaiting)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Conversation
	for rows.Next() {
		conv, err := scanConversationRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *conv)
	}
	return result, rows.Err()
}

func scanConversationRow(row rowScanner) (*domain.Conversation, error) {
	var conv domain.Conversation
	if err := row.Scan(
		&conv.ID,
		&conv.TenantID,
		&conv.CustomerName,
		&conv.CustomerPhone,
		&conv.Priority,
		&conv.State,
		&conv.EnteredQueueAt,
		&conv.LastMessageAt,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &conv, nil
}
