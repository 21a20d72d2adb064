package gateway

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"shopflow/internal/auth"
	"shopflow/internal/domain"
	"shopflow/internal/handler/http/common"
)

const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

// RequireAuth rejects requests without a valid bearer token and forwards the
// caller identity to the upstream service as headers.
func RequireAuth(tokens *auth.TokenManager, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				common.WriteError(w, logger, "RequireAuth", &domain.DomainError{Kind: domain.KindAuthentication, Message: "missing bearer token"})
				return
			}

			claims, err := tokens.Parse(strings.TrimSpace(raw))
			if err != nil {
				common.WriteError(w, logger, "RequireAuth", err)
				return
			}

			r.Header.Set(HeaderUserID, claims.Subject)
			r.Header.Set(HeaderUserRole, claims.Role)
			next.ServeHTTP(w, r)
		})
	}
}

// stripIdentityHeaders drops caller supplied identity headers so only
// RequireAuth can set them.
func stripIdentityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del(HeaderUserID)
		r.Header.Del(HeaderUserRole)
		next.ServeHTTP(w, r)
	})
}
