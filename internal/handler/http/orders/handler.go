package orders

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"shopflow/internal/app/orders"
	"shopflow/internal/domain"
	"shopflow/internal/handler/http/common"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type OrderHandler struct {
	service orders.OrderService
	logger  *zap.Logger
}

func NewOrderHandler(s orders.OrderService, l *zap.Logger) *OrderHandler {
	return &OrderHandler{service: s, logger: l}
}

func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.CreateOrderRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("Invalid request body for CreateOrder", zap.Error(err))
		common.WriteError(w, h.logger, "CreateOrder", err)
		return
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	res, err := h.service.CreateOrder(r.Context(), &req, key)
	if err != nil {
		common.WriteError(w, h.logger, "CreateOrder", err)
		return
	}
	common.WriteJSON(w, http.StatusCreated, res)
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := common.IDParam(r, "orderID")
	if err != nil {
		common.WriteError(w, h.logger, "GetOrder", err)
		return
	}

	res, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		common.WriteError(w, h.logger, "GetOrder", err)
		return
	}
	common.WriteJSON(w, http.StatusOK, res)
}

func (h *OrderHandler) GetOrdersByUserID(w http.ResponseWriter, r *http.Request) {
	userID, err := common.IDParam(r, "userID")
	if err != nil {
		common.WriteError(w, h.logger, "GetOrdersByUserID", err)
		return
	}

	res, err := h.service.GetOrdersByUserID(r.Context(), userID)
	if err != nil {
		common.WriteError(w, h.logger, "GetOrdersByUserID", err)
		return
	}
	common.WriteJSON(w, http.StatusOK, res)
}

func (h *OrderHandler) GetAllOrders(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetAllOrders(r.Context())
	if err != nil {
		common.WriteError(w, h.logger, "GetAllOrders", err)
		return
	}
	common.WriteJSON(w, http.StatusOK, res)
}

func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := common.IDParam(r, "orderID")
	if err != nil {
		common.WriteError(w, h.logger, "UpdateOrderStatus", err)
		return
	}
	status := r.URL.Query().Get("status")
	if status == "" {
		common.WriteError(w, h.logger, "UpdateOrderStatus", domain.NewValidationError("status is required"))
		return
	}

	res, err := h.service.UpdateOrderStatus(r.Context(), orderID, status)
	if err != nil {
		common.WriteError(w, h.logger, "UpdateOrderStatus", err)
		return
	}
	common.WriteJSON(w, http.StatusOK, res)
}

func (h *OrderHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := common.IDParam(r, "orderID")
	if err != nil {
		common.WriteError(w, h.logger, "DeleteOrder", err)
		return
	}

	if err := h.service.DeleteOrder(r.Context(), orderID); err != nil {
		common.WriteError(w, h.logger, "DeleteOrder", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
