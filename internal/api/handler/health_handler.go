package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	checks map[string]ReadinessCheck
}

// NewHealthHandler creates a new HealthHandler instance
func NewHealthHandler(deps *Dependencies) *HealthHandler {
	return &HealthHandler{checks: deps.ReadinessChecks}
}

// Live handles GET /healthz
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready handles GET /readyz
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	failures := gin.H{}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			failures[name] = err.Error()
		}
	}

	if len(failures) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"checks": failures,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}
