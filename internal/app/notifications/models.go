package notifications

import (
	"time"

	"shopflow/internal/domain"
)

// EventMeta identifies a consumed event. EventID is the dedupe key for the
// inbox and redis policies.
type EventMeta struct {
	EventID   string
	EventType string
	Topic     string
	Partition int
	Offset    int64
}

type OrderConfirmationRequest struct {
	UserID       int64  `json:"userId" validate:"gt=0"`
	Username     string `json:"username" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	OrderID      int64  `json:"orderId" validate:"gt=0"`
	OrderDetails string `json:"orderDetails"`
}

type NotificationResponse struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

func mapNotificationToResponse(n *domain.Notification) *NotificationResponse {
	return &NotificationResponse{
		ID:        n.ID,
		UserID:    n.UserID,
		Username:  n.Username,
		Email:     n.Email,
		Message:   n.Message,
		Type:      string(n.Type),
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

func mapNotificationsToResponse(list []*domain.Notification) []*NotificationResponse {
	out := make([]*NotificationResponse, 0, len(list))
	for _, n := range list {
		out = append(out, mapNotificationToResponse(n))
	}
	return out
}
