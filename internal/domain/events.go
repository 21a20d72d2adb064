package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventTypeProductCreated = "product-created"
	EventTypeProductUpdated = "product-updated"
	EventTypeUserCreated    = "user-created"
)

// DomainEvent is an append-only record handed to the event bus. Key is the
// partition key, the id of the entity the event is about.
type DomainEvent struct {
	ID         string
	Type       string
	Key        string
	Payload    []byte
	OccurredAt time.Time
}

type ProductCreatedEvent struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Category      string          `json:"category"`
	StockQuantity int             `json:"stockQuantity"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type ProductUpdatedEvent struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stockQuantity"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type UserCreatedEvent struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}
