package ingestion

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sasank-in/ml-drift-pipeline/internal/models"
)

// Handler adapts Service to gin's HTTP surface, following
// go-api-gateway/internal/api/health.go's handler-struct convention.
type Handler struct {
	svc *Service
}

// NewHandler builds an ingestion Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes wires the endpoints spec.md §6 names for the ingestion
// service.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.health)
	router.GET("/stats", h.stats)
	router.POST("/ingest/batch", h.ingestBatch)
	router.POST("/ingest/stream", h.ingestStream)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "ingestion",
		"version": "1.0.0",
	})
}

type ingestBatchRequest struct {
	Features [][]float64 `json:"features"`
	Labels   []int       `json:"labels,omitempty"`
	BatchID  string      `json:"batch_id,omitempty"`
}

func (h *Handler) ingestBatch(c *gin.Context) {
	var req ingestBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid request body"})
		return
	}

	batchID := req.BatchID
	if batchID == "" {
		batchID = uuid.NewString()
	}

	batch := models.Batch{
		Features: toFeatureVectors(req.Features),
		Labels:   req.Labels,
		BatchID:  batchID,
	}

	n, err := h.svc.IngestBatch(c.Request.Context(), batch)
	if err != nil {
		if errors.Is(err, models.ErrInvalidShape) {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid shape"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            "success",
		"samples_ingested":  n,
		"batch_id":          batchID,
	})
}

type ingestStreamRequest struct {
	Features []float64 `json:"features"`
	Label    *int      `json:"label,omitempty"`
}

func (h *Handler) ingestStream(c *gin.Context) {
	var req ingestStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid request body"})
		return
	}

	sample := models.StreamSample{Features: req.Features, Label: req.Label}
	if err := h.svc.IngestStream(c.Request.Context(), sample); err != nil {
		if errors.Is(err, models.ErrInvalidShape) {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid shape"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) stats(c *gin.Context) {
	batchSize, streamSize, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"batch_queue_size":  batchSize,
		"stream_queue_size": streamSize,
	})
}

func toFeatureVectors(rows [][]float64) []models.FeatureVector {
	out := make([]models.FeatureVector, len(rows))
	for i, row := range rows {
		out[i] = row
	}
	return out
}
