package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            int64
	Name          string
	Description   string
	Price         decimal.Decimal
	Category      string
	StockQuantity int
	Active        bool
	ImageURL      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// MaxProductPrice is the first price the NUMERIC(12,2) column cannot hold.
var MaxProductPrice = decimal.New(1, 10)

func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return NewValidationError("product name is required")
	}
	if !p.Price.IsPositive() {
		return NewValidationError("product price must be greater than zero")
	}
	if !p.Price.Equal(p.Price.Truncate(2)) {
		return NewValidationError("product price must have at most 2 decimal places")
	}
	if p.Price.GreaterThanOrEqual(MaxProductPrice) {
		return NewValidationError("product price must be less than %s", MaxProductPrice)
	}
	if p.StockQuantity < 0 {
		return NewValidationError("stock quantity cannot be negative")
	}
	return nil
}

// ProductSnapshot is the notification side copy of a product, rebuilt from
// product-created and product-updated events.
type ProductSnapshot struct {
	ProductID     int64
	Name          string
	Price         decimal.Decimal
	Category      string
	StockQuantity int
	LastEventAt   time.Time
}
