package retrain

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sasank-in/ml-drift-pipeline/internal/models"
)

// Handler exposes a minimal admin HTTP surface: health and a manual
// trigger, for operational use and the "manual" TrainingJobTrigger path
// spec.md's error-handling section names.
type Handler struct {
	worker *Worker
}

// NewHandler builds a retraining-worker Handler.
func NewHandler(w *Worker) *Handler {
	return &Handler{worker: w}
}

// RegisterRoutes wires /health and a manual /train endpoint.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.health)
	router.POST("/train", h.manualTrain)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "retraining-worker"})
}

// manualTrain synchronously runs one retraining job with trigger="manual",
// the operator-initiated counterpart to DriftMonitor's automatic trigger.
func (h *Handler) manualTrain(c *gin.Context) {
	job := models.RetrainJob{Trigger: "manual", Timestamp: time.Now()}
	if err := h.worker.ProcessJob(c.Request.Context(), job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
