package handlers

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// HealthHandler handles health HTTP requests
type HealthHandler struct {
	checks map[string]HealthCheck
}

// NewHealthHandler creates a new health handler over the named checks
func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	if checks == nil {
		checks = map[string]HealthCheck{}
	}
	return &HealthHandler{checks: checks}
}

// HandleGetHealthCheck runs every check and returns 503 when any fails
func (h *HealthHandler) HandleGetHealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	healthy := true
	details := make(map[string]bool, len(names))
	for _, name := range names {
		err := h.checks[name](ctx)
		details[name] = err == nil
		if err != nil {
			healthy = false
			log.Warn().Err(err).Str("check", name).Msg("Health check failed")
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":     healthy,
		"details":    details,
		"goroutines": runtime.NumGoroutine(),
	})
}

// RegisterRoutes registers the handler's routes
func (h *HealthHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.HandleGetHealthCheck)
}
