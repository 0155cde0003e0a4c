// Package logging builds the shared zap.Logger used by all four services,
// following go-api-gateway/cmd/main.go's initLogger split between
// production and development configurations.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sasank-in/ml-drift-pipeline/internal/config"
)

// New builds a named *zap.Logger for the given component
// ("ingestion", "prediction", "drift-monitor", "retraining-worker").
func New(cfg config.LoggingConfig, environment, component string) (*zap.Logger, error) {
	var zapCfg zap.Config
	if environment == "production" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level := zapcore.InfoLevel
	if err := level.Set(cfg.Level); err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}

	return logger.Named(component), nil
}
