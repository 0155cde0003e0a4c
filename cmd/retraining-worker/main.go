// Command retraining-worker runs RetrainingWorker (spec.md §4.4): consumes
// retraining_queue, fits a fresh model against recent data_queue traffic,
// and atomically promotes it into the serving path. Grounded on
// go-api-gateway/cmd/main.go's bootstrap shape, extended with a background
// Run loop alongside the admin HTTP server.
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
	"github.com/sasank-in/ml-drift-pipeline/internal/logging"
	"github.com/sasank-in/ml-drift-pipeline/internal/metrics"
	"github.com/sasank-in/ml-drift-pipeline/internal/notify"
	"github.com/sasank-in/ml-drift-pipeline/internal/queue"
	"github.com/sasank-in/ml-drift-pipeline/internal/retrain"
	"github.com/sasank-in/ml-drift-pipeline/internal/store"
	"github.com/sasank-in/ml-drift-pipeline/internal/trainer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(cfg.Logging, cfg.Environment, "retraining-worker")
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting retraining worker", zap.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.New(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	q, err := queue.New(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer q.Close() //nolint:errcheck

	publisher, err := notify.NewPublisher(cfg.NATS, logger)
	if err != nil {
		logger.Fatal("failed to connect to nats", zap.Error(err))
	}
	defer publisher.Close()

	workerCfg := retrain.Config{
		WindowSize:   cfg.Drift.WindowSize,
		CVFolds:      cfg.Retrain.CVFolds,
		Seed:         cfg.Retrain.Seed,
		PollInterval: cfg.Retrain.PollInterval(),
		ModelDir:     "models",
	}
	worker := retrain.New(workerCfg, db, q, publisher, newLogisticTrainer, logger)
	handler := retrain.NewHandler(worker)

	var wg chanWaiter
	wg.start(func() { worker.Run(ctx) })

	reg := metrics.New("retraining-worker")
	router := httpctx.NewRouter(cfg.Environment, logger, reg)
	handler.RegisterRoutes(router)
	if cfg.Metrics.Enabled {
		router.GET("/metrics", metrics.Handler())
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.RetrainingWorkerPort),
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

	logger.Info("shutting down retraining worker")
	cancel()
	wg.wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	logger.Info("retraining worker exited gracefully")
}

// newLogisticTrainer builds a fresh, untrained classifier for one
// retraining job, satisfying retrain.TrainerFactory.
func newLogisticTrainer() trainer.Trainer {
	return trainer.NewLogisticRegression()
}

// chanWaiter runs one background goroutine and lets main block until it
// returns after ctx cancellation.
type chanWaiter struct {
	done chan struct{}
}

func (w *chanWaiter) start(fn func()) {
	w.done = make(chan struct{})
	go func() {
		defer close(w.done)
		fn()
	}()
}

func (w *chanWaiter) wait() {
	<-w.done
}
