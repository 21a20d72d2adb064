package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"shopflow/internal/domain"
	"shopflow/internal/repository/outbox_repo"
)

type OutboxRepository struct{}

func NewOutboxRepository() outbox_repo.OutboxRepository {
	return &OutboxRepository{}
}

func (r *OutboxRepository) CreateMessageTx(ctx context.Context, q domain.Querier, msg *domain.OutboxMessage) error {
	query := `
		INSERT INTO outbox_messages (id, aggregate_type, aggregate_id, event_type, topic, key_value, payload, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := q.ExecContext(ctx, query,
		msg.ID,
		msg.AggregateType,
		msg.AggregateID,
		msg.EventType,
		msg.Topic,
		msg.Key,
		msg.Payload,
		msg.Status,
		msg.Attempts,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox message: %w", err)
	}
	return nil
}

// relayLockKey is the advisory lock shared by every relay of one database.
const relayLockKey int64 = 0x6f7574626f78

func (r *OutboxRepository) TryLockRelay(ctx context.Context, q domain.Querier) (bool, error) {
	var locked bool
	if err := q.QueryRowContext(ctx, `SELECT pg_try_advisory_xact_lock($1)`, relayLockKey).Scan(&locked); err != nil {
		return false, fmt.Errorf("failed to take outbox relay lock: %w", err)
	}
	return locked, nil
}

func (r *OutboxRepository) ClaimPending(ctx context.Context, q domain.Querier, limit int) ([]domain.OutboxMessage, error) {
	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, topic, key_value, payload, status, attempts, created_at, sent_at
		FROM outbox_messages
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`
	rows, err := q.QueryContext(ctx, query, domain.OutboxStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.OutboxMessage
	for rows.Next() {
		msg := domain.OutboxMessage{}
		var sentAt sql.NullTime
		err := rows.Scan(
			&msg.ID,
			&msg.AggregateType,
			&msg.AggregateID,
			&msg.EventType,
			&msg.Topic,
			&msg.Key,
			&msg.Payload,
			&msg.Status,
			&msg.Attempts,
			&msg.CreatedAt,
			&sentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		if sentAt.Valid {
			msg.SentAt = &sentAt.Time
		}
		messages = append(messages, msg)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox messages: %w", err)
	}
	return messages, nil
}

func (r *OutboxRepository) MarkSent(ctx context.Context, q domain.Querier, ids []string, sentAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query := `
		UPDATE outbox_messages
		SET status = $1, sent_at = $2
		WHERE id = ANY($3)
	`
	res, err := q.ExecContext(ctx, query, domain.OutboxStatusSent, sentAt, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to mark outbox messages as sent: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for outbox sent: %w", err)
	}
	if rowsAffected != int64(len(ids)) {
		return fmt.Errorf("not all outbox messages were marked as sent; expected %d, got %d", len(ids), rowsAffected)
	}
	return nil
}

// RecordFailure bumps the attempt counter and parks the row as FAILED once
// maxAttempts is reached.
func (r *OutboxRepository) RecordFailure(ctx context.Context, q domain.Querier, id string, maxAttempts int) error {
	query := `
		UPDATE outbox_messages
		SET attempts = attempts + 1,
		    status = CASE WHEN attempts + 1 >= $2 THEN $3 ELSE status END
		WHERE id = $1
	`
	if _, err := q.ExecContext(ctx, query, id, maxAttempts, domain.OutboxStatusFailed); err != nil {
		return fmt.Errorf("failed to record outbox failure for %s: %w", id, err)
	}
	return nil
}
