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

	"shopflow/internal/app/notifications"
	"shopflow/internal/config"
	"shopflow/internal/handler/http/common"
	http_notifications "shopflow/internal/handler/http/notifications"
	kafka_handler "shopflow/internal/handler/kafka"
	"shopflow/internal/idempotency"
	"shopflow/internal/infrastructure/database"
	kafka_infra "shopflow/internal/infrastructure/kafka"
	"shopflow/internal/infrastructure/logger"
	"shopflow/internal/metrics"
	postgres_inbox_repo "shopflow/internal/repository/inbox_repo/postgres"
	postgres_notification_repo "shopflow/internal/repository/notification_repo/postgres"
	postgres_snapshot_repo "shopflow/internal/repository/snapshot_repo/postgres"
	"shopflow/migrations"
)

func main() {
	cfg, err := config.LoadNotifications()
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
	appLogger = appLogger.With(zap.String("service", "notifications"))
	appLogger.Info("Notification Service starting...", zap.String("dedupe", cfg.Dedupe))

	appLogger.Info("Waiting for database to be available...")
	db, err := database.ConnectWithRetry(cfg.DB.Database(), 10, 5*time.Second, appLogger)
	if err != nil {
		appLogger.Fatal("Could not connect to database. Exiting.", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		} else {
			appLogger.Info("Database connection closed.")
		}
	}()

	appLogger.Info("Running database migrations...")
	if err := database.RunMigrations(migrations.FS, migrations.Notifications, cfg.DB.GetDBMigrationConnectionString(), appLogger); err != nil {
		appLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	topics := []string{cfg.UserCreatedTopic, cfg.ProductCreatedTopic, cfg.ProductUpdatedTopic}
	if err := kafka_infra.EnsureTopics(ctx, cfg.Kafka.GetKafkaBrokers(), kafka_infra.WithDLQ(topics), kafka_infra.TopicSpec{
		Partitions:        cfg.Kafka.Partitions,
		ReplicationFactor: cfg.Kafka.ReplicationFactor,
	}, appLogger); err != nil {
		appLogger.Fatal("Failed to ensure Kafka topics", zap.Error(err))
	}

	opts := notifications.Options{
		Policy:        notifications.DedupePolicy(cfg.Dedupe),
		ConsumerGroup: cfg.ConsumerGroup,
		TTL:           cfg.DedupeTTL,
	}
	if opts.Policy == notifications.DedupeRedis {
		store, err := idempotency.NewRedisStore(idempotency.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer store.Close()
		opts.Store = store
		appLogger.Info("Redis dedupe store connected", zap.String("addr", cfg.Redis.Addr))
	}

	appMetrics := metrics.New("notifications")

	notificationService, err := notifications.NewNotificationService(
		db,
		postgres_notification_repo.NewNotificationRepository(db, appLogger),
		postgres_snapshot_repo.NewSnapshotRepository(db),
		postgres_inbox_repo.NewInboxRepository(),
		opts,
		appMetrics,
		appLogger.With(zap.String("component", "NotificationService")),
	)
	if err != nil {
		appLogger.Fatal("Failed to create notification service", zap.Error(err))
	}

	dlqProducer := kafka_infra.NewProducer(cfg.Kafka.GetKafkaBrokers(), appLogger.With(zap.String("component", "DLQProducer")))
	defer func() {
		if err := dlqProducer.Close(); err != nil {
			appLogger.Error("Error closing DLQ producer", zap.Error(err))
		}
	}()

	userCreated := kafka_handler.NewUserCreatedConsumer(notificationService, appLogger.With(zap.String("component", "UserCreatedConsumer")))
	productEvents := kafka_handler.NewProductEventConsumer(notificationService, cfg.ProductCreatedTopic, appLogger.With(zap.String("component", "ProductEventConsumer")))

	consumer := kafka_infra.NewConsumer(kafka_infra.ConsumerConfig{
		Brokers:      cfg.Kafka.GetKafkaBrokers(),
		GroupID:      cfg.ConsumerGroup,
		Topics:       topics,
		Workers:      cfg.ConsumerWorkers,
		MaxRetries:   cfg.HandlerMaxRetries,
		RetryBackoff: cfg.HandlerRetryBackoff,
	}, kafka_handler.NewTopicRouter(map[string]kafka_infra.MessageHandler{
		cfg.UserCreatedTopic:    userCreated.HandleMessage,
		cfg.ProductCreatedTopic: productEvents.HandleMessage,
		cfg.ProductUpdatedTopic: productEvents.HandleMessage,
	}), dlqProducer, appMetrics, appLogger.With(zap.String("component", "KafkaConsumer")))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := consumer.Run(ctx); err != nil {
			appLogger.Error("Kafka consumer stopped with error", zap.Error(err))
		}
	}()
	appLogger.Info("Kafka consumer started!", zap.Strings("topics", topics))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(common.RequestLogger(appLogger))
	r.Use(middleware.Recoverer)
	r.Use(appMetrics.Middleware)

	http_notifications.RegisterRoutes(r, notificationService, appLogger)
	common.RegisterHealth(r, "notifications", db)
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
	appLogger.Info("Notification Service started", zap.String("address", server.Addr))

	<-sigChan

	appLogger.Info("Shutting down Notification Service...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Notification Service graceful shutdown failed", zap.Error(err))
	}
	cancel()
	wg.Wait()
	if err := consumer.Close(); err != nil {
		appLogger.Error("Error closing Kafka consumer", zap.Error(err))
	}
	appLogger.Info("Notification Service stopped.")
}
