package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	candidate := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range orderStatuses {
		if st == candidate {
			return st, nil
		}
	}
	return "", NewValidationError("unknown order status %q", s)
}

type Order struct {
	ID             int64
	UserID         int64
	Status         OrderStatus
	TotalAmount    decimal.Decimal
	Items          []OrderItem
	IdempotencyKey string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OrderItem.UnitPrice is the catalog price captured when the order was
// created. It is never updated afterwards.
type OrderItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

const MaxItemQuantity = 10000

// MaxOrderTotal is the first total the NUMERIC(14,2) column cannot hold.
var MaxOrderTotal = decimal.New(1, 12)

type PricedLine struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

func NewOrder(userID int64, lines []PricedLine, idempotencyKey string) (*Order, error) {
	if userID <= 0 {
		return nil, NewValidationError("user id is required")
	}
	if len(lines) == 0 {
		return nil, NewValidationError("order items cannot be empty")
	}

	now := time.Now().UTC()
	order := &Order{
		UserID:         userID,
		Status:         OrderStatusPending,
		TotalAmount:    decimal.Zero,
		Items:          make([]OrderItem, 0, len(lines)),
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, l := range lines {
		if l.Quantity <= 0 || l.Quantity > MaxItemQuantity {
			return nil, NewValidationError("quantity for product %d must be between 1 and %d", l.ProductID, MaxItemQuantity)
		}
		if l.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("negative price %s for product %d", l.UnitPrice, l.ProductID)
		}
		item := OrderItem{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
		order.Items = append(order.Items, item)
		order.TotalAmount = order.TotalAmount.Add(item.Subtotal())
	}
	if order.TotalAmount.GreaterThanOrEqual(MaxOrderTotal) {
		return nil, NewValidationError("order total %s exceeds the maximum of %s", order.TotalAmount.StringFixed(2), MaxOrderTotal)
	}
	return order, nil
}

// StatusTransitionValidator decides whether an order may move from one status
// to another. Returning an error rejects the change.
type StatusTransitionValidator func(from, to OrderStatus) error

func AllowAnyTransition(_, _ OrderStatus) error {
	return nil
}

var strictTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

func StrictTransitions(from, to OrderStatus) error {
	if from == to {
		return nil
	}
	for _, allowed := range strictTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return NewValidationError("cannot move order from %s to %s", from, to)
}

func (o *Order) ChangeStatus(to OrderStatus, validate StatusTransitionValidator) error {
	if validate == nil {
		validate = AllowAnyTransition
	}
	if err := validate(o.Status, to); err != nil {
		return err
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	return nil
}
