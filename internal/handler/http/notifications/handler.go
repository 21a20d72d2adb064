package notifications

import (
	"net/http"

	"go.uber.org/zap"

	"shopflow/internal/app/notifications"
	"shopflow/internal/handler/http/common"
)

type NotificationHandler struct {
	service notifications.NotificationService
	logger  *zap.Logger
}

func NewNotificationHandler(s notifications.NotificationService, l *zap.Logger) *NotificationHandler {
	return &NotificationHandler{service: s, logger: l}
}

func (h *NotificationHandler) GetAllNotifications(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetAllNotifications(r.Context())
	if err != nil {
		common.WriteError(w, h.logger, "GetAllNotifications", err)
		return
	}
	common.WriteJSON(w, http.StatusOK, res)
}

func (h *NotificationHandler) GetNotificationsByUserID(w http.ResponseWriter, r *http.Request) {
	userID, err := common.IDParam(r, "userID")
	if err != nil {
		common.WriteError(w, h.logger, "GetNotificationsByUserID", err)
		return
	}

	res, err := h.service.GetNotificationsByUserID(r.Context(), userID)
	if err != nil {
		common.WriteError(w, h.logger, "GetNotificationsByUserID", err)
		return
	}
	common.WriteJSON(w, http.StatusOK, res)
}

func (h *NotificationHandler) CreateOrderConfirmation(w http.ResponseWriter, r *http.Request) {
	var req notifications.OrderConfirmationRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, h.logger, "CreateOrderConfirmation", err)
		return
	}

	res, err := h.service.CreateOrderConfirmation(r.Context(), &req)
	if err != nil {
		common.WriteError(w, h.logger, "CreateOrderConfirmation", err)
		return
	}
	common.WriteJSON(w, http.StatusCreated, res)
}

func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	id, err := common.IDParam(r, "notificationID")
	if err != nil {
		common.WriteError(w, h.logger, "MarkAsRead", err)
		return
	}

	res, err := h.service.MarkAsRead(r.Context(), id)
	if err != nil {
		common.WriteError(w, h.logger, "MarkAsRead", err)
		return
	}
	common.WriteJSON(w, http.StatusOK, res)
}
