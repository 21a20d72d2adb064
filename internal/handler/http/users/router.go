package users

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"shopflow/internal/app/identity"
)

func RegisterRoutes(r chi.Router, s identity.IdentityService, l *zap.Logger) {
	handler := NewUserHandler(s, l.With(zap.String("component", "UserHTTPHandler")))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", handler.Register)
		r.Post("/login", handler.Login)
	})
	r.Get("/users/{userID}", handler.GetUser)
}
