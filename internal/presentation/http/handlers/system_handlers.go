package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/storyloom/storyloom-go/internal/infrastructure/caching"
	"github.com/storyloom/storyloom-go/internal/infrastructure/observability/logging"
	"github.com/storyloom/storyloom-go/internal/infrastructure/observability/performance"
	"github.com/storyloom/storyloom-go/internal/presentation/http/middleware"
	"github.com/storyloom/storyloom-go/pkg/config"
)

// SystemHandlers serves the health and metrics endpoints.
type SystemHandlers struct {
	registry    *middleware.MetricsRegistry
	store       *caching.StoryboardStore
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewSystemHandlers creates system handlers with injected dependencies.
func NewSystemHandlers(registry *middleware.MetricsRegistry, store *caching.StoryboardStore, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *SystemHandlers {
	return &SystemHandlers{
		registry:    registry,
		store:       store,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// GetHealth handles GET /api/storyboards/health. Liveness plus config
// readiness; a running server without credentials reports degraded.
func (h *SystemHandlers) GetHealth(c *gin.Context) {
	status := "ok"
	if config.ServiceAccountJSON == "" || config.GCPProjectID == "" {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":           status,
		"uptime":           h.perfTracker.Uptime().String(),
		"storedStoryboards": h.store.Count(),
		"credentialsLoaded": config.ServiceAccountJSON != "",
		"projectConfigured": config.GCPProjectID != "",
	})
}

// GetMetrics handles GET /api/storyboards/metrics: per-endpoint request
// counters plus the perf tracker's per-operation timings.
func (h *SystemHandlers) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"endpoints":  h.registry.Snapshot(),
		"operations": h.perfTracker.Snapshot(),
		"uptime":     h.perfTracker.Uptime().String(),
	})
}
