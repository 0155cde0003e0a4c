package prediction

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sasank-in/ml-drift-pipeline/internal/models"
)

// Handler adapts Service to gin's HTTP surface.
type Handler struct {
	svc *Service
}

// NewHandler builds a prediction Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes wires the endpoints spec.md §6 names for the prediction
// service.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.health)
	router.POST("/predict", h.predict)
	router.POST("/predict/batch", h.predictBatch)
	router.POST("/reload_model", h.reloadModel)
}

func (h *Handler) health(c *gin.Context) {
	lm := h.svc.handle.Load()
	resp := gin.H{"status": "ok", "model_loaded": lm != nil}
	if lm != nil {
		resp["model_version"] = lm.entry.ModelVersion
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) predict(c *gin.Context) {
	var req models.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid request body"})
		return
	}

	resp, err := h.svc.Predict(c.Request.Context(), req.Features.Matrix)
	writePredictResult(c, resp, err)
}

func (h *Handler) predictBatch(c *gin.Context) {
	var req models.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid request body"})
		return
	}

	resp, err := h.svc.PredictBatch(c.Request.Context(), req.Features.Matrix, req.BatchSize)
	writePredictResult(c, resp, err)
}

func writePredictResult(c *gin.Context, resp models.PredictResponse, err error) {
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidShape):
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid shape"})
		case errors.Is(err, models.ErrDimensionMismatch):
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "dimension mismatch"})
		case errors.Is(err, models.ErrNoModel):
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "no model deployed"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) reloadModel(c *gin.Context) {
	version, err := h.svc.ReloadModel(c.Request.Context())
	if err != nil {
		if errors.Is(err, models.ErrNoModel) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "no model deployed"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "model_version": version})
}
