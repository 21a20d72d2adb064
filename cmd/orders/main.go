package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"shopflow/internal/app/orders"
	"shopflow/internal/config"
	"shopflow/internal/domain"
	"shopflow/internal/handler/http/common"
	http_orders "shopflow/internal/handler/http/orders"
	"shopflow/internal/infrastructure/catalog"
	"shopflow/internal/infrastructure/database"
	"shopflow/internal/infrastructure/logger"
	"shopflow/internal/metrics"
	postgres_order_repo "shopflow/internal/repository/order_repo/postgres"
	"shopflow/migrations"
)

func main() {
	cfg, err := config.LoadOrders()
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
	appLogger = appLogger.With(zap.String("service", "orders"))
	appLogger.Info("Order Service starting...")

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
	if err := database.RunMigrations(migrations.FS, migrations.Orders, cfg.DB.GetDBMigrationConnectionString(), appLogger); err != nil {
		appLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	appMetrics := metrics.New("orders")

	catalogClient := catalog.NewClient(cfg.CatalogBaseURL, cfg.LookupTimeout, appLogger.With(zap.String("component", "CatalogClient")))
	orderRepository := postgres_order_repo.NewOrderRepository(db, appLogger)

	transitions := domain.StatusTransitionValidator(domain.AllowAnyTransition)
	if cfg.StrictTransitions {
		transitions = domain.StrictTransitions
		appLogger.Info("Strict order status transitions enabled")
	}

	orderService := orders.NewOrderService(db, orderRepository, catalogClient, orders.Options{
		LookupTimeout:        cfg.LookupTimeout,
		MaxLookupConcurrency: cfg.MaxLookupConcurrency,
		TransitionValidator:  transitions,
	}, appMetrics, appLogger.With(zap.String("component", "OrderService")))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(common.RequestLogger(appLogger))
	r.Use(middleware.Recoverer)
	r.Use(appMetrics.Middleware)

	http_orders.RegisterRoutes(r, orderService, appLogger)
	common.RegisterHealth(r, "orders", db)
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
	appLogger.Info("Order Service started", zap.String("address", server.Addr), zap.String("catalog_url", cfg.CatalogBaseURL))

	<-sigChan

	appLogger.Info("Shutting down Order Service...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("Order Service graceful shutdown failed", zap.Error(err))
	}
	appLogger.Info("Order Service stopped.")
}
