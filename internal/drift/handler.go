package drift

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler exposes a minimal admin HTTP surface for the drift monitor:
// health and an on-demand tick, useful for operational probing and tests.
type Handler struct {
	monitor *Monitor
}

// NewHandler builds a drift-monitor Handler.
func NewHandler(m *Monitor) *Handler {
	return &Handler{monitor: m}
}

// RegisterRoutes wires /health and a manual /check endpoint.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.health)
	router.POST("/check", h.check)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"service":           "drift-monitor",
		"reference_loaded":  h.monitor.reference != nil,
	})
}

// check runs one drift-detection tick synchronously, for manual / test
// invocation outside the periodic loop.
func (h *Handler) check(c *gin.Context) {
	if err := h.monitor.Tick(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
