// Package notify wraps the NATS "model.updates" subject used for the
// out-of-band reload nudge RetrainingWorker sends Prediction on promotion
// (SPEC_FULL.md §4.2a), additive to the model_update Redis cache key the
// worker also writes. Grounded on
// go-services/message-broker/main.go's nats.Connect options (reconnect
// handling, bounded reconnect attempts).
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/sasank-in/ml-drift-pipeline/internal/config"
	"github.com/sasank-in/ml-drift-pipeline/internal/models"
)

// Subject is the fixed NATS subject model updates are published on.
const Subject = "model.updates"

// Publisher connects to NATS and can publish ModelUpdate notifications.
// It degrades to a no-op if NATS.URL is unset, since spec.md only mandates
// the Redis cache-key path and treats NATS as an additive nudge.
type Publisher struct {
	conn   *nats.Conn
	logger *zap.Logger
}

// NewPublisher connects to cfg.URL. If cfg.URL is empty, it returns a
// Publisher with a nil connection whose Publish is a harmless no-op.
func NewPublisher(cfg config.NATSConfig, logger *zap.Logger) (*Publisher, error) {
	logger = logger.Named("notify")
	if cfg.URL == "" {
		logger.Info("NATS_URL not configured, model-update nudges disabled")
		return &Publisher{logger: logger}, nil
	}

	conn, err := nats.Connect(cfg.URL,
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	return &Publisher{conn: conn, logger: logger}, nil
}

// Publish announces a model update. A nil connection (NATS disabled) is a
// no-op. The worker also writes the same update to the Redis model_update
// cache key; no service reads that key back.
func (p *Publisher) Publish(update models.ModelUpdate) error {
	if p.conn == nil {
		return nil
	}
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal model update: %w", err)
	}
	if err := p.conn.Publish(Subject, payload); err != nil {
		p.logger.Warn("publish model update failed", zap.Error(err))
		return fmt.Errorf("publish model update: %w", err)
	}
	return nil
}

// Subscribe registers fn to run on every ModelUpdate published, returning a
// no-op unsubscribe func if NATS is disabled.
func (p *Publisher) Subscribe(fn func(models.ModelUpdate)) (func(), error) {
	if p.conn == nil {
		return func() {}, nil
	}

	sub, err := p.conn.Subscribe(Subject, func(msg *nats.Msg) {
		var update models.ModelUpdate
		if err := json.Unmarshal(msg.Data, &update); err != nil {
			p.logger.Warn("discarding malformed model update", zap.Error(err))
			return
		}
		fn(update)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to model updates: %w", err)
	}

	return func() { _ = sub.Unsubscribe() }, nil
}

// Close drains and closes the NATS connection, if any.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
