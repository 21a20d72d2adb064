package gateway

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"shopflow/internal/auth"
	"shopflow/internal/config"
	"shopflow/internal/handler/http/common"
	"shopflow/internal/metrics"
)

func NewRouter(cfg *config.GatewayConfig, m *metrics.Metrics, logger *zap.Logger) (http.Handler, error) {
	targets := map[string]string{
		"identity":      cfg.IdentityServiceURL,
		"catalog":       cfg.CatalogServiceURL,
		"orders":        cfg.OrdersServiceURL,
		"notifications": cfg.NotificationsServiceURL,
	}
	proxies := make(map[string]http.Handler, len(targets))
	for name, raw := range targets {
		target, err := url.Parse(raw)
		if err != nil || target.Host == "" {
			return nil, fmt.Errorf("failed to parse %s service URL (%s): %v", name, raw, err)
		}
		proxies[name] = createProxy(target, logger.With(zap.String("upstream", name)))
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(common.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(m.Middleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(stripIdentityHeaders)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.RateLimitRPS > 0 {
		r.Use(NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).Middleware)
	}

	protect := func(h http.Handler) http.Handler { return h }
	if cfg.RequireAuth {
		tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, 0)
		protect = RequireAuth(tokens, logger)
	}

	r.Handle("/auth/*", proxies["identity"])
	r.Handle("/users/*", proxies["identity"])
	r.Handle("/products", proxies["catalog"])
	r.Handle("/products/*", proxies["catalog"])

	r.Group(func(r chi.Router) {
		r.Use(protect)
		r.Handle("/orders", proxies["orders"])
		r.Handle("/orders/*", proxies["orders"])
		r.Handle("/notifications", proxies["notifications"])
		r.Handle("/notifications/*", proxies["notifications"])
	})

	common.RegisterHealth(r, "gateway", nil)
	r.Handle("/metrics", m.Handler())
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Gateway is up"))
	})

	return r, nil
}

func createProxy(target *url.URL, logger *zap.Logger) http.Handler {
	proxy := httputil.NewSingleHostReverseProxy(target)

	proxy.Director = func(req *http.Request) {
		req.URL.Host = target.Host
		req.URL.Scheme = target.Scheme
		req.Host = target.Host
		req.RequestURI = req.URL.RequestURI()

		if clientIP, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
			if prior, ok := req.Header["X-Forwarded-For"]; ok {
				clientIP = strings.Join(prior, ", ") + ", " + clientIP
			}
			req.Header.Set("X-Forwarded-For", clientIP)
		}
		if id := middleware.GetReqID(req.Context()); id != "" {
			req.Header.Set(middleware.RequestIDHeader, id)
		}
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Warn("Proxy error", zap.String("path", r.URL.Path), zap.String("target", target.String()), zap.Error(err))

		var netErr net.Error
		switch {
		case os.IsTimeout(err):
			common.WriteJSON(w, http.StatusGatewayTimeout, common.ErrorResponse{Error: "Gateway Timeout", Code: "GATEWAY_TIMEOUT"})
		case errors.As(err, &netErr):
			common.WriteJSON(w, http.StatusServiceUnavailable, common.ErrorResponse{Error: "Service Unavailable", Code: "UPSTREAM_UNAVAILABLE"})
		default:
			common.WriteJSON(w, http.StatusBadGateway, common.ErrorResponse{Error: "Bad Gateway", Code: "BAD_GATEWAY"})
		}
	}

	return proxy
}
