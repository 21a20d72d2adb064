package config

import (
	"fmt"
	"time"
)

const (
	DedupeInbox = "inbox"
	DedupeRedis = "redis"
	DedupeNone  = "none"
)

type CatalogConfig struct {
	HTTP   HTTPConfig
	Log    LogConfig
	DB     DBConfig
	Kafka  KafkaConfig
	Outbox OutboxConfig

	ProductCreatedTopic string
	ProductUpdatedTopic string
}

func LoadCatalog() (*CatalogConfig, error) {
	l := newLoader(merge(commonDefaults("CATALOG", 8081, "catalog_db"), map[string]any{
		"KAFKA_PRODUCT_CREATED_TOPIC": "product-created",
		"KAFKA_PRODUCT_UPDATED_TOPIC": "product-updated",
	}))

	cfg := &CatalogConfig{
		HTTP:                l.http("CATALOG"),
		Log:                 l.log(),
		DB:                  l.db("CATALOG"),
		Kafka:               l.kafka(),
		Outbox:              l.outbox(),
		ProductCreatedTopic: l.str("KAFKA_PRODUCT_CREATED_TOPIC"),
		ProductUpdatedTopic: l.str("KAFKA_PRODUCT_UPDATED_TOPIC"),
	}
	return cfg, l.err()
}

type OrdersConfig struct {
	HTTP HTTPConfig
	Log  LogConfig
	DB   DBConfig

	CatalogBaseURL       string
	LookupTimeout        time.Duration
	MaxLookupConcurrency int
	StrictTransitions    bool
}

func LoadOrders() (*OrdersConfig, error) {
	l := newLoader(merge(commonDefaults("ORDERS", 8082, "orders_db"), map[string]any{
		"CATALOG_BASE_URL":              "http://localhost:8081",
		"ORDERS_LOOKUP_TIMEOUT":         "3s",
		"ORDERS_MAX_LOOKUP_CONCURRENCY": 8,
		"ORDERS_STRICT_TRANSITIONS":     false,
	}))

	cfg := &OrdersConfig{
		HTTP:                 l.http("ORDERS"),
		Log:                  l.log(),
		DB:                   l.db("ORDERS"),
		CatalogBaseURL:       l.str("CATALOG_BASE_URL"),
		LookupTimeout:        l.duration("ORDERS_LOOKUP_TIMEOUT"),
		MaxLookupConcurrency: l.integer("ORDERS_MAX_LOOKUP_CONCURRENCY"),
		StrictTransitions:    l.boolean("ORDERS_STRICT_TRANSITIONS"),
	}
	if cfg.MaxLookupConcurrency < 1 {
		l.errs = append(l.errs, "ORDERS_MAX_LOOKUP_CONCURRENCY must be at least 1")
	}
	return cfg, l.err()
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type NotificationsConfig struct {
	HTTP  HTTPConfig
	Log   LogConfig
	DB    DBConfig
	Kafka KafkaConfig
	Redis RedisConfig

	ConsumerGroup       string
	ConsumerWorkers     int
	HandlerMaxRetries   int
	HandlerRetryBackoff time.Duration
	Dedupe              string
	DedupeTTL           time.Duration

	UserCreatedTopic    string
	ProductCreatedTopic string
	ProductUpdatedTopic string
}

func LoadNotifications() (*NotificationsConfig, error) {
	l := newLoader(merge(commonDefaults("NOTIFICATIONS", 8083, "notifications_db"), map[string]any{
		"KAFKA_CONSUMER_GROUP":           "notification-group",
		"NOTIFICATIONS_CONSUMER_WORKERS": 1,
		"KAFKA_HANDLER_MAX_RETRIES":      3,
		"KAFKA_HANDLER_RETRY_BACKOFF":    "200ms",
		"NOTIFICATIONS_DEDUPE":           DedupeInbox,
		"NOTIFICATIONS_DEDUPE_TTL":       "24h",
		"REDIS_ADDR":                     "localhost:6379",
		"REDIS_PASSWORD":                 "",
		"REDIS_DB":                       0,
		"KAFKA_USER_CREATED_TOPIC":       "user-created",
		"KAFKA_PRODUCT_CREATED_TOPIC":    "product-created",
		"KAFKA_PRODUCT_UPDATED_TOPIC":    "product-updated",
	}))

	cfg := &NotificationsConfig{
		HTTP:  l.http("NOTIFICATIONS"),
		Log:   l.log(),
		DB:    l.db("NOTIFICATIONS"),
		Kafka: l.kafka(),
		Redis: RedisConfig{
			Addr:     l.str("REDIS_ADDR"),
			Password: l.str("REDIS_PASSWORD"),
			DB:       l.integer("REDIS_DB"),
		},
		ConsumerGroup:       l.str("KAFKA_CONSUMER_GROUP"),
		ConsumerWorkers:     l.integer("NOTIFICATIONS_CONSUMER_WORKERS"),
		HandlerMaxRetries:   l.integer("KAFKA_HANDLER_MAX_RETRIES"),
		HandlerRetryBackoff: l.duration("KAFKA_HANDLER_RETRY_BACKOFF"),
		Dedupe:              l.str("NOTIFICATIONS_DEDUPE"),
		DedupeTTL:           l.duration("NOTIFICATIONS_DEDUPE_TTL"),
		UserCreatedTopic:    l.str("KAFKA_USER_CREATED_TOPIC"),
		ProductCreatedTopic: l.str("KAFKA_PRODUCT_CREATED_TOPIC"),
		ProductUpdatedTopic: l.str("KAFKA_PRODUCT_UPDATED_TOPIC"),
	}

	switch cfg.Dedupe {
	case DedupeInbox, DedupeRedis, DedupeNone:
	default:
		l.errs = append(l.errs, fmt.Sprintf("invalid NOTIFICATIONS_DEDUPE %q: want inbox, redis or none", cfg.Dedupe))
	}
	if cfg.ConsumerWorkers < 1 {
		l.errs = append(l.errs, "NOTIFICATIONS_CONSUMER_WORKERS must be at least 1")
	}
	return cfg, l.err()
}

type JWTConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

type IdentityConfig struct {
	HTTP   HTTPConfig
	Log    LogConfig
	DB     DBConfig
	Kafka  KafkaConfig
	Outbox OutboxConfig
	JWT    JWTConfig

	BcryptCost       int
	UserCreatedTopic string
}

func LoadIdentity() (*IdentityConfig, error) {
	l := newLoader(merge(commonDefaults("IDENTITY", 8084, "identity_db"), map[string]any{
		"JWT_SECRET":               "change-me",
		"JWT_ISSUER":               "shopflow-identity",
		"JWT_TTL":                  "24h",
		"IDENTITY_BCRYPT_COST":     10,
		"KAFKA_USER_CREATED_TOPIC": "user-created",
	}))

	cfg := &IdentityConfig{
		HTTP:   l.http("IDENTITY"),
		Log:    l.log(),
		DB:     l.db("IDENTITY"),
		Kafka:  l.kafka(),
		Outbox: l.outbox(),
		JWT: JWTConfig{
			Secret: l.str("JWT_SECRET"),
			Issuer: l.str("JWT_ISSUER"),
			TTL:    l.duration("JWT_TTL"),
		},
		BcryptCost:       l.integer("IDENTITY_BCRYPT_COST"),
		UserCreatedTopic: l.str("KAFKA_USER_CREATED_TOPIC"),
	}
	if cfg.JWT.Secret == "" {
		l.errs = append(l.errs, "JWT_SECRET must not be empty")
	}
	return cfg, l.err()
}

type GatewayConfig struct {
	HTTP HTTPConfig
	Log  LogConfig

	IdentityServiceURL      string
	CatalogServiceURL       string
	OrdersServiceURL        string
	NotificationsServiceURL string

	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	RequestTimeout time.Duration

	JWTSecret   string
	JWTIssuer   string
	RequireAuth bool
}

func LoadGateway() (*GatewayConfig, error) {
	l := newLoader(map[string]any{
		"LOG_LEVEL":                  "info",
		"LOG_FORMAT":                 "json",
		"GATEWAY_HTTP_PORT":          8080,
		"HTTP_READ_TIMEOUT":          "10s",
		"HTTP_WRITE_TIMEOUT":         "30s",
		"HTTP_SHUTDOWN_TIMEOUT":      "15s",
		"IDENTITY_SERVICE_HOST":      "http://localhost:8084",
		"CATALOG_SERVICE_HOST":       "http://localhost:8081",
		"ORDERS_SERVICE_HOST":        "http://localhost:8082",
		"NOTIFICATIONS_SERVICE_HOST": "http://localhost:8083",
		"GATEWAY_ALLOWED_ORIGINS":    "http://localhost:5173",
		"GATEWAY_RATE_LIMIT_RPS":     100.0,
		"GATEWAY_RATE_LIMIT_BURST":   200,
		"GATEWAY_REQUEST_TIMEOUT":    "30s",
		"JWT_SECRET":                 "",
		"JWT_ISSUER":                 "shopflow-identity",
		"GATEWAY_REQUIRE_AUTH":       false,
	})

	cfg := &GatewayConfig{
		HTTP:                    l.http("GATEWAY"),
		Log:                     l.log(),
		IdentityServiceURL:      l.str("IDENTITY_SERVICE_HOST"),
		CatalogServiceURL:       l.str("CATALOG_SERVICE_HOST"),
		OrdersServiceURL:        l.str("ORDERS_SERVICE_HOST"),
		NotificationsServiceURL: l.str("NOTIFICATIONS_SERVICE_HOST"),
		AllowedOrigins:          l.list("GATEWAY_ALLOWED_ORIGINS"),
		RateLimitRPS:            l.float("GATEWAY_RATE_LIMIT_RPS"),
		RateLimitBurst:          l.integer("GATEWAY_RATE_LIMIT_BURST"),
		RequestTimeout:          l.duration("GATEWAY_REQUEST_TIMEOUT"),
		JWTSecret:               l.str("JWT_SECRET"),
		JWTIssuer:               l.str("JWT_ISSUER"),
		RequireAuth:             l.boolean("GATEWAY_REQUIRE_AUTH"),
	}
	if cfg.RequireAuth && cfg.JWTSecret == "" {
		l.errs = append(l.errs, "GATEWAY_REQUIRE_AUTH=true needs JWT_SECRET")
	}
	return cfg, l.err()
}
