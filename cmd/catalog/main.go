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

	"shopflow/internal/app/catalog"
	"shopflow/internal/config"
	"shopflow/internal/handler/http/common"
	http_products "shopflow/internal/handler/http/products"
	"shopflow/internal/infrastructure/database"
	kafka_infra "shopflow/internal/infrastructure/kafka"
	"shopflow/internal/infrastructure/logger"
	"shopflow/internal/metrics"
	"shopflow/internal/outbox"
	postgres_outbox_repo "shopflow/internal/repository/outbox_repo/postgres"
	postgres_product_repo "shopflow/internal/repository/product_repo/postgres"
	"shopflow/migrations"
)

func main() {
	cfg, err := config.LoadCatalog()
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
	appLogger = appLogger.With(zap.String("service", "catalog"))
	appLogger.Info("Catalog Service starting...")

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
	if err := database.RunMigrations(migrations.FS, migrations.Catalog, cfg.DB.GetDBMigrationConnectionString(), appLogger); err != nil {
		appLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	topics := []string{cfg.ProductCreatedTopic, cfg.ProductUpdatedTopic}
	if err := kafka_infra.EnsureTopics(ctx, cfg.Kafka.GetKafkaBrokers(), topics, kafka_infra.TopicSpec{
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

	appMetrics := metrics.New("catalog")

	productRepository := postgres_product_repo.NewProductRepository(db, appLogger)
	outboxRepository := postgres_outbox_repo.NewOutboxRepository()

	productService := catalog.NewProductService(db, productRepository, outboxRepository, catalog.Topics{
		ProductCreated: cfg.ProductCreatedTopic,
		ProductUpdated: cfg.ProductUpdatedTopic,
	}, appLogger.With(zap.String("component", "ProductService")))

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
	appLogger.Info("Transactional Outbox sender started.")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(common.RequestLogger(appLogger))
	r.Use(middleware.Recoverer)
	r.Use(appMetrics.Middleware)

	http_products.RegisterRoutes(r, productService, appLogger)
	common.RegisterHealth(r, "catalog", db)
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
	appLogger.Info("Catalog Service started", zap.String("address", server.Addr))

	<-sigChan

	appLogger.Info("Shutting down Catalog Service...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Catalog Service graceful shutdown failed", zap.Error(err))
	}
	cancel()
	wg.Wait()
	appLogger.Info("Catalog Service stopped.")
}
