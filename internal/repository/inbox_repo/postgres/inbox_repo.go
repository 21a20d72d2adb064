package postgres

import (
	"context"
	"fmt"

	"shopflow/internal/domain"
	"shopflow/internal/repository/inbox_repo"
)

type InboxRepository struct{}

func NewInboxRepository() inbox_repo.InboxRepository {
	return &InboxRepository{}
}

func (r *InboxRepository) TryInsert(ctx context.Context, q domain.Querier, msg *domain.InboxMessage) (bool, error) {
	query := `
		INSERT INTO inbox_messages (event_id, event_type, kafka_topic, kafka_partition, kafka_offset, consumer_group, status, received_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_id) DO NOTHING
	`
	res, err := q.ExecContext(ctx, query,
		msg.EventID,
		msg.EventType,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		msg.ConsumerGroup,
		msg.Status,
		msg.ReceivedAt,
		msg.ProcessedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert inbox message %s: %w", msg.EventID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected for inbox message: %w", err)
	}
	return rowsAffected == 1, nil
}
