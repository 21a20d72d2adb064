package common

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

// RegisterHealth mounts GET /health. With a nil db it only reports that the
// process is up.
func RegisterHealth(r chi.Router, service string, db Pinger) {
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status":  "DOWN",
					"service": service,
					"error":   err.Error(),
				})
				return
			}
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "UP", "service": service})
	})
}
