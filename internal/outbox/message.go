package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"shopflow/internal/domain"
)

// NewMessage builds a pending outbox row for payload, keyed by aggregateID.
func NewMessage(aggregateType, aggregateID, eventType, topic string, payload any) (*domain.OutboxMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &domain.OutboxMessage{
		ID:            uuid.NewString(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Topic:         topic,
		Key:           aggregateID,
		Payload:       body,
		Status:        domain.OutboxStatusPending,
		CreatedAt:     time.Now().UTC(),
	}, nil
}
