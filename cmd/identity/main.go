package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"shopflow/internal/app/identity"
	"shopflow/internal/auth"
	"shopflow/internal/config"
	"shopflow/internal/handler/http/common"
	http_users "shopflow/internal/handler/http/users"
	"shopflow/internal/infrastructure/database"
	kafka_infra "shopflow/internal/infrastructure/kafka"
	"shopflow/internal/infrastructure/logger"
	"shopflow/internal/metrics"
	"shopflow/internal/outbox"
	postgres_outbox_repo "shopflow/internal/repository/outbox_repo/postgres"
	postgres_user_repo "shopflow/internal/repository/user_repo/postgres"
	"shopflow/migrations"
)

func main() {
	cfg, err := config.LoadIdentity()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	appLogger, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()
	appLogger = appLogger.With(zap.String("service", "identity"))
	appLogger.Info("Identity Service starting...")

	db, err := database.ConnectWithRetry(cfg.DB.Database(), 10, 5*time.Second, appLogger)
	if err != nil {
		appLogger.Fatal("Could not connect to database. Exiting.", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		}
	}()

	if err := database.RunMigrations(migrations.FS, migrations.Identity, cfg.DB.GetDBMigrationConnectionString(), appLogger); err != nil {
		appLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := kafka_infra.EnsureTopics(ctx, cfg.Kafka.GetKafkaBrokers(), []string{cfg.UserCreatedTopic}, kafka_infra.TopicSpec{
		Partitions:        cfg.Kafka.Partitions,
		ReplicationFactor: cfg.Kafka.ReplicationFactor,
	}, appLogger); err != nil {
		appLogger.Fatal("Failed to ensure Kafka topics", zap.Error(err))
	}

	kafkaProducer := kafka_infra.NewProducer(cfg.Kafka.GetKafkaBrokers(), appLogger.With(zap.String("component", "KafkaProducer")))
	defer func() {
		if err := kafkaProducer.Close(); err != nil {
			appLogger.Error("Error closing Kafka producer", zap.Error(err))
		}
	}()

	appMetrics := metrics.New("identity")
	outboxRepository := postgres_outbox_repo.NewOutboxRepository()

	identityService := identity.NewIdentityService(
		db,
		postgres_user_repo.NewUserRepository(db, appLogger),
		outboxRepository,
		auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL),
		cfg.BcryptCost,
		cfg.UserCreatedTopic,
		appLogger.With(zap.String("component", "IdentityService")),
	)

	outboxProcessor := outbox.NewProcessor(db, outboxRepository, kafkaProducer, outbox.Config{
		PollInterval: cfg.Outbox.PollInterval,
		PollTimeout:  cfg.Outbox.PollTimeout,
		BatchSize:    cfg.Outbox.BatchSize,
		MaxAttempts:  cfg.Outbox.MaxAttempts,
	}, appMetrics, appLogger.With(zap.String("component", "OutboxProcessor")))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		outboxProcessor.Start(ctx)
	}()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(common.RequestLogger(appLogger))
	r.Use(middleware.Recoverer)
	r.Use(appMetrics.Middleware)

	http_users.RegisterRoutes(r, identityService, appLogger)
	common.RegisterHealth(r, "identity", db)
	r.Handle("/metrics", appMetrics.Handler())

	server := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()
	appLogger.Info("Identity Service started", zap.String("address", server.Addr))

	<-sigChan

	appLogger.Info("Shutting down Identity Service...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Identity Service graceful shutdown failed", zap.Error(err))
	}
	cancel()
	wg.Wait()
	appLogger.Info("Identity Service stopped.")
}
