package notifications

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"shopflow/internal/app/notifications"
)

func RegisterRoutes(r chi.Router, s notifications.NotificationService, l *zap.Logger) {
	handler := NewNotificationHandler(s, l.With(zap.String("component", "NotificationHTTPHandler")))

	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", handler.GetAllNotifications)
		r.Get("/user/{userID}", handler.GetNotificationsByUserID)
		r.Post("/order-confirmation", handler.CreateOrderConfirmation)
		r.Patch("/{notificationID}/read", handler.MarkAsRead)
	})
}
