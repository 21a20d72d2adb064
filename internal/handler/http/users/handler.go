package users

import (
	"net/http"

	"go.uber.org/zap"

	"shopflow/internal/app/identity"
	"shopflow/internal/handler/http/common"
)

type UserHandler struct {
	service identity.IdentityService
	logger  *zap.Logger
}

func NewUserHandler(s identity.IdentityService, l *zap.Logger) *UserHandler {
	return &UserHandler{service: s, logger: l}
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req identity.RegisterRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, h.logger, "Register", err)
		return
	}

	res, err := h.service.Register(r.Context(), &req)
	if err != nil {
		common.WriteError(w, h.logger, "Register", err)
		return
	}
	common.WriteJSON(w, http.StatusCreated, res)
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req identity.LoginRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, h.logger, "Login", err)
		return
	}

	res, err := h.service.Login(r.Context(), &req)
	if err != nil {
		common.WriteError(w, h.logger, "Login", err)
		return
	}
	common.WriteJSON(w, http.StatusOK, res)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := common.IDParam(r, "userID")
	if err != nil {
		common.WriteError(w, h.logger, "GetUser", err)
		return
	}

	res, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		common.WriteError(w, h.logger, "GetUser", err)
		return
	}
	common.WriteJSON(w, http.StatusOK, res)
}
