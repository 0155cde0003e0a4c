// Package httpctx provides the gin middleware shared by all four HTTP
// servers: request logging, metrics observation, and a per-request
// deadline. Grounded on go-api-gateway/cmd/main.go's setupRouter
// (Recovery + CORS + security headers + request-logging middleware stack).
package httpctx

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sasank-in/ml-drift-pipeline/internal/metrics"
)

// NewRouter builds a gin.Engine with the common middleware stack: recovery,
// permissive CORS (the pipeline has no browser-facing auth surface), and
// request logging, mirroring setupRouter's layering.
func NewRouter(environment string, logger *zap.Logger, reg *metrics.Registry) *gin.Engine {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Requested-With"}
	router.Use(cors.New(corsConfig))

	router.Use(requestLogger(logger))
	router.Use(metricsMiddleware(reg))

	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

func metricsMiddleware(reg *metrics.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if reg == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		reg.ObserveRequest(route, statusClass(c.Writer.Status()), time.Since(start).Seconds())
	}
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// WithDeadline wraps handler so it runs with a ctx bounded by timeout,
// replacing the request's context (spec.md §5's "10s request deadlines on
// Ingestion/Prediction HTTP handlers").
func WithDeadline(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
