// Command ingestion runs the Ingestion HTTP service (spec.md §4.1):
// validates and enqueues batch/stream feature vectors onto data_queue and
// stream_queue. Grounded on go-api-gateway/cmd/main.go's bootstrap shape
// (config.Load -> logger -> dependencies -> router -> graceful shutdown).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sasank-in/ml-drift-pipeline/internal/config"
	"github.com/sasank-in/ml-drift-pipeline/internal/httpctx"
	"github.com/sasank-in/ml-drift-pipeline/internal/ingestion"
	"github.com/sasank-in/ml-drift-pipeline/internal/logging"
	"github.com/sasank-in/ml-drift-pipeline/internal/metrics"
	"github.com/sasank-in/ml-drift-pipeline/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(cfg.Logging, cfg.Environment, "ingestion")
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting ingestion service", zap.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q, err := queue.New(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer q.Close() //nolint:errcheck

	svc := ingestion.New(q, logger)
	handler := ingestion.NewHandler(svc)

	reg := metrics.New("ingestion")
	router := httpctx.NewRouter(cfg.Environment, logger, reg)
	router.Use(httpctx.WithDeadline(cfg.Server.RequestDeadline()))
	handler.RegisterRoutes(router)
	if cfg.Metrics.Enabled {
		router.GET("/metrics", metrics.Handler())
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.IngestionPort),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout(),
		WriteTimeout:      cfg.Server.WriteTimeout(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server starting", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down ingestion service")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	logger.Info("ingestion service exited gracefully")
}
