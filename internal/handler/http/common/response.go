package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"shopflow/internal/domain"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

const codeInternal = "INTERNAL_ERROR"

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// StatusFor maps a service error to an HTTP status and error code.
func StatusFor(err error) (int, string) {
	var oce *domain.OrderCreationError
	if errors.As(err, &oce) {
		kind, _ := domain.KindOf(err)
		if kind == domain.KindNotFound {
			return http.StatusUnprocessableEntity, string(kind)
		}
		return http.StatusServiceUnavailable, string(domain.KindUpstreamUnavailable)
	}

	kind, ok := domain.KindOf(err)
	if !ok {
		return http.StatusInternalServerError, codeInternal
	}
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest, string(kind)
	case domain.KindNotFound:
		return http.StatusNotFound, string(kind)
	case domain.KindDuplicateEntity:
		return http.StatusConflict, string(kind)
	case domain.KindAuthentication:
		return http.StatusUnauthorized, string(kind)
	case domain.KindUpstreamUnavailable:
		return http.StatusServiceUnavailable, string(kind)
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

// WriteError writes err as an ErrorResponse. Messages of unexpected errors
// are logged and replaced with a generic one.
func WriteError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	status, code := StatusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("Internal error", zap.String("operation", op), zap.Error(err))
		message = "Internal server error"
	} else if status >= http.StatusInternalServerError {
		logger.Warn("Upstream error", zap.String("operation", op), zap.Error(err))
	} else {
		logger.Debug("Request rejected", zap.String("operation", op), zap.Int("status", status), zap.Error(err))
	}
	WriteJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return domain.NewValidationError("invalid request body: %v", err)
	}
	return nil
}

// IDParam parses the chi URL parameter name as a positive int64.
func IDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		return 0, domain.NewValidationError("%s is required", name)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError("invalid %s %q", name, raw)
	}
	return id, nil
}
