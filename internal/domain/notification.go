package domain

import (
	"fmt"
	"time"
)

type NotificationType string

const (
	NotificationTypeWelcome           NotificationType = "WELCOME"
	NotificationTypeOrderConfirmation NotificationType = "ORDER_CONFIRMATION"
)

type Notification struct {
	ID        int64
	UserID    int64
	Username  string
	Email     string
	Message   string
	Type      NotificationType
	Read      bool
	DedupeKey string
	CreatedAt time.Time
}

func NewWelcomeNotification(e UserCreatedEvent) *Notification {
	return &Notification{
		UserID:    e.ID,
		Username:  e.Username,
		Email:     e.Email,
		Message:   fmt.Sprintf("Welcome %s! Your account has been created successfully on %s. We're excited to have you with us!", e.Username, e.CreatedAt.Format(time.RFC3339)),
		Type:      NotificationTypeWelcome,
		CreatedAt: time.Now().UTC(),
	}
}

func NewOrderConfirmationNotification(userID int64, username, email, orderDetails string) *Notification {
	return &Notification{
		UserID:    userID,
		Username:  username,
		Email:     email,
		Message:   fmt.Sprintf("Hello %s! Your order has been confirmed. %s", username, orderDetails),
		Type:      NotificationTypeOrderConfirmation,
		CreatedAt: time.Now().UTC(),
	}
}

func WelcomeDedupeKey(userID int64) string {
	return fmt.Sprintf("%s:%d", NotificationTypeWelcome, userID)
}

func OrderConfirmationDedupeKey(userID, orderID int64) string {
	return fmt.Sprintf("%s:%d:%d", NotificationTypeOrderConfirmation, userID, orderID)
}
