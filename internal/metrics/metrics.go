// Package metrics defines the Prometheus collectors shared across the four
// services and the gin handler that exposes them on /metrics. Grounded on
// go-services/message-broker/main.go's BrokerMetrics pattern (a struct of
// CounterVec/Gauge/HistogramVec fields registered once at startup).
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the shared collectors. New registers all of them for
// every service; a collector a service never updates simply stays at zero.
type Registry struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	QueueDepth       *prometheus.GaugeVec
	PredictionsTotal prometheus.Counter
	DriftChecksTotal prometheus.Counter
	DriftDetected    prometheus.Counter
	TrainingJobs     *prometheus.CounterVec
	ActiveModelInfo  *prometheus.GaugeVec
}

// New builds and registers a Registry against the default Prometheus
// registerer, namespaced per-component so ingestion/prediction/drift
// metrics don't collide when scraped together.
func New(component string) *Registry {
	r := &Registry{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_http_requests_total",
				Help: "Total HTTP requests handled, by component/route/status.",
				ConstLabels: prometheus.Labels{"component": component},
			},
			[]string{"route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "pipeline_http_request_duration_seconds",
				Help:        "HTTP request latency in seconds.",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: prometheus.Labels{"component": component},
			},
			[]string{"route"},
		),
		QueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name:        "pipeline_queue_depth",
				Help:        "Current length of a Redis-backed queue.",
				ConstLabels: prometheus.Labels{"component": component},
			},
			[]string{"queue"},
		),
		PredictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "pipeline_predictions_total",
			Help:        "Total predictions served.",
			ConstLabels: prometheus.Labels{"component": component},
		}),
		DriftChecksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "pipeline_drift_checks_total",
			Help:        "Total drift-detection ticks run.",
			ConstLabels: prometheus.Labels{"component": component},
		}),
		DriftDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "pipeline_drift_detected_total",
			Help:        "Total drift-detection ticks that found drift.",
			ConstLabels: prometheus.Labels{"component": component},
		}),
		TrainingJobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "pipeline_training_jobs_total",
				Help:        "Total retraining jobs, by terminal status.",
				ConstLabels: prometheus.Labels{"component": component},
			},
			[]string{"status"},
		),
		ActiveModelInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name:        "pipeline_active_model_accuracy",
				Help:        "Accuracy of the currently deployed model, labeled by version.",
				ConstLabels: prometheus.Labels{"component": component},
			},
			[]string{"model_version"},
		),
	}

	prometheus.MustRegister(
		r.RequestsTotal, r.RequestDuration, r.QueueDepth, r.PredictionsTotal,
		r.DriftChecksTotal, r.DriftDetected, r.TrainingJobs, r.ActiveModelInfo,
	)
	return r
}

// Handler returns the gin handler that serves /metrics via promhttp.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// ObserveRequest records one HTTP request's outcome for RequestsTotal and
// RequestDuration, the common middleware body every service wires in.
func (r *Registry) ObserveRequest(route, status string, seconds float64) {
	r.RequestsTotal.WithLabelValues(route, status).Inc()
	r.RequestDuration.WithLabelValues(route).Observe(seconds)
}
