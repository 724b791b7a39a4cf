package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// CheckFunc checks one dependency
type CheckFunc func(ctx context.Context) error

// HealthHandler handles health check endpoints
type HealthHandler struct {
	checks map[string]CheckFunc
}

// NewHealthHandler creates a new HealthHandler. Nil checks are skipped,
// so optional backends (MySQL) can be passed unconditionally.
func NewHealthHandler(checks map[string]CheckFunc) *HealthHandler {
	active := make(map[string]CheckFunc, len(checks))
	for name, check := range checks {
		if check != nil {
			active[name] = check
		}
	}
	return &HealthHandler{checks: active}
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

// ReadyResponse represents readiness check response
type ReadyResponse struct {
	Status     string            `json:"status" example:"ok"`
	Components map[string]string `json:"components"`
}

// Health godoc
// @Summary Health check
// @Description Returns server health status
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready godoc
// @Summary Readiness check
// @Description Returns readiness of Redis, MySQL (when enabled) and the Sui node
// @Tags health
// @Produce json
// @Success 200 {object} ReadyResponse
// @Failure 503 {object} ReadyResponse
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	response := ReadyResponse{
		Status:     "ok",
		Components: make(map[string]string, len(h.checks)),
	}
	statusCode := http.StatusOK

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			response.Components[name] = "error"
			response.Status = "degraded"
			statusCode = http.StatusServiceUnavailable
			continue
		}
		response.Components[name] = "ok"
	}

	c.JSON(statusCode, response)
}
