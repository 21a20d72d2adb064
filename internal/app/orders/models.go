package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"shopflow/internal/domain"
)

// MaxIdempotencyKeyLength matches the orders.idempotency_key column.
const MaxIdempotencyKeyLength = 128

type CreateOrderItemRequest struct {
	ProductID int64 `json:"productId" validate:"gt=0"`
	Quantity  int   `json:"quantity" validate:"gt=0,lte=10000"`
}

type CreateOrderRequest struct {
	UserID int64                    `json:"userId" validate:"gt=0"`
	Items  []CreateOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type OrderItemResponse struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type OrderResponse struct {
	ID          int64               `json:"id"`
	UserID      int64               `json:"userId"`
	Status      string              `json:"status"`
	TotalAmount decimal.Decimal     `json:"totalAmount"`
	Items       []OrderItemResponse `json:"items"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

func mapOrderToResponse(order *domain.Order) *OrderResponse {
	items := make([]OrderItemResponse, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, OrderItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal(),
		})
	}
	return &OrderResponse{
		ID:          order.ID,
		UserID:      order.UserID,
		Status:      string(order.Status),
		TotalAmount: order.TotalAmount,
		Items:       items,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
}

func mapOrdersToResponse(orders []*domain.Order) []*OrderResponse {
	out := make([]*OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, mapOrderToResponse(o))
	}
	return out
}
