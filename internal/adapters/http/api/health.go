package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/rollcall/pkg/metrics"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	metrics http.Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{
		metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// HandleHealth handles GET /healthz by serving the metrics registry.
func (h *HealthHandler) HandleHealth(c *gin.Context) {
	h.metrics.ServeHTTP(c.Writer, c.Request)
}

// HandleTest handles GET /test, a plain liveness probe.
func (h *HealthHandler) HandleTest(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "Server is working!",
		"message": "API is accessible",
	})
}
