// Command prediction runs the Prediction HTTP service (spec.md §4.2):
// serves predictions from the currently-active model, reloading it at
// startup, on a NATS model.updates nudge (SPEC_FULL.md §4.2a), or on POST
// /reload_model. It does not poll the model_update cache key. Grounded on
// go-api-gateway/cmd/main.go's bootstrap shape.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sasank-in/ml-drift-pipeline/internal/config"
	"github.com/sasank-in/ml-drift-pipeline/internal/httpctx"
	"github.com/sasank-in/ml-drift-pipeline/internal/logging"
	"github.com/sasank-in/ml-drift-pipeline/internal/metrics"
	"github.com/sasank-in/ml-drift-pipeline/internal/models"
	"github.com/sasank-in/ml-drift-pipeline/internal/notify"
	"github.com/sasank-in/ml-drift-pipeline/internal/prediction"
	"github.com/sasank-in/ml-drift-pipeline/internal/queue"
	"github.com/sasank-in/ml-drift-pipeline/internal/store"
	"github.com/sasank-in/ml-drift-pipeline/internal/trainer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(cfg.Logging, cfg.Environment, "prediction")
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting prediction service", zap.String("environment", cfg.Environment))

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

	serviceID := uuid.NewString()
	svc := prediction.New(db, q, loadTrainer, serviceID, logger)

	if _, err := svc.ReloadModel(ctx); err != nil {
		logger.Warn("no active model at startup, predictions will 503 until one is deployed", zap.Error(err))
	}

	unsubscribe, err := publisher.Subscribe(func(update models.ModelUpdate) {
		logger.Info("received model update nudge", zap.String("version", update.Version))
		if _, err := svc.ReloadModel(ctx); err != nil {
			logger.Error("failed to reload model after nudge", zap.Error(err))
		}
	})
	if err != nil {
		logger.Fatal("failed to subscribe to model updates", zap.Error(err))
	}
	defer unsubscribe()

	handler := prediction.NewHandler(svc)

	reg := metrics.New("prediction")
	router := httpctx.NewRouter(cfg.Environment, logger, reg)
	router.Use(httpctx.WithDeadline(cfg.Server.RequestDeadline()))
	handler.RegisterRoutes(router)
	if cfg.Metrics.Enabled {
		router.GET("/metrics", metrics.Handler())
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.PredictionPort),
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

	logger.Info("shutting down prediction service")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	logger.Info("prediction service exited gracefully")
}

// loadTrainer materializes the gob-serialized LogisticRegression artifact
// at path, satisfying prediction.ModelLoader.
func loadTrainer(path string) (trainer.Trainer, error) {
	m := trainer.NewLogisticRegression()
	if err := m.Load(path); err != nil {
		return nil, err
	}
	return m, nil
}
