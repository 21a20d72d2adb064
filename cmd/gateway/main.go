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

	"go.uber.org/zap"

	"shopflow/internal/config"
	"shopflow/internal/gateway"
	"shopflow/internal/infrastructure/logger"
	"shopflow/internal/metrics"
)

func main() {
	cfg, err := config.LoadGateway()
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
	appLogger = appLogger.With(zap.String("service", "gateway"))

	r, err := gateway.NewRouter(cfg, metrics.New("gateway"), appLogger)
	if err != nil {
		appLogger.Fatal("Failed to create router", zap.Error(err))
	}

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
	appLogger.Info("API Gateway started",
		zap.String("address", server.Addr),
		zap.Bool("require_auth", cfg.RequireAuth),
		zap.Float64("rate_limit_rps", cfg.RateLimitRPS))

	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("API Gateway graceful shutdown failed", zap.Error(err))
	}
	appLogger.Info("API Gateway stopped.")
}
