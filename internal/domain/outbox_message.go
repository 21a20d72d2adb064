package domain

import "time"

type OutboxMessageStatus string

const (
	OutboxStatusPending OutboxMessageStatus = "PENDING"
	OutboxStatusSent    OutboxMessageStatus = "SENT"
	OutboxStatusFailed  OutboxMessageStatus = "FAILED"
)

// OutboxMessage is an event waiting to be relayed to Kafka. It is written in
// the same transaction as the aggregate change it describes.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	Key           string
	Payload       []byte
	Status        OutboxMessageStatus
	Attempts      int
	CreatedAt     time.Time
	SentAt        *time.Time
}
