package domain

import "time"

type InboxMessageStatus string

const (
	InboxStatusProcessed InboxMessageStatus = "PROCESSED"
)

// InboxMessage records a consumed event so a redelivery of the same event id
// is recognised and skipped.
type InboxMessage struct {
	EventID       string
	EventType     string
	Topic         string
	Partition     int
	Offset        int64
	ConsumerGroup string
	Status        InboxMessageStatus
	ReceivedAt    time.Time
	ProcessedAt   *time.Time
}
