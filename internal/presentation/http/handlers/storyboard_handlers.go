// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/storyloom/storyloom-go/internal/application/services"
	"github.com/storyloom/storyloom-go/internal/domain"
	"github.com/storyloom/storyloom-go/internal/infrastructure/observability/logging"
	"github.com/storyloom/storyloom-go/internal/infrastructure/observability/performance"
	"github.com/storyloom/storyloom-go/internal/presentation/http/middleware"
)

// StoryboardHandlers contains all storyboard-related HTTP handlers.
type StoryboardHandlers struct {
	orchestrator *services.OrchestratorService
	logger       *logging.ChanneledLogger
	perfTracker  *performance.Tracker
}

// NewStoryboardHandlers creates storyboard handlers with injected dependencies.
func NewStoryboardHandlers(orchestrator *services.OrchestratorService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *StoryboardHandlers {
	return &StoryboardHandlers{
		orchestrator: orchestrator,
		logger:       logger,
		perfTracker:  perfTracker,
	}
}

// respondError maps a domain error to its HTTP status and a JSON body.
// Auth failures go out redacted so credential material never reaches the
// caller; plan failures carry the raw model text for diagnostics.
func (h *StoryboardHandlers) respondError(c *gin.Context, err error) {
	status := domain.HTTPStatus(err)

	var authErr *domain.AuthError
	if errors.As(err, &authErr) {
		h.logger.Auth().Error("Auth failure surfaced to caller", "requestId", middleware.GetRequestID(c), "error", err.Error())
		c.JSON(status, gin.H{"error": authErr.Redacted()})
		return
	}

	var planErr *domain.PlanError
	if errors.As(err, &planErr) {
		c.JSON(status, gin.H{"error": planErr.Error(), "raw": planErr.Raw})
		return
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

// PostPlan handles POST /api/storyboards/plan.
func (h *StoryboardHandlers) PostPlan(c *gin.Context) {
	start := time.Now()
	marker := h.perfTracker.StartOperation("http:plan")
	defer marker.Complete()

	var req struct {
		StoryboardID string `json:"storyboardId"`
		Intent       string `json:"intent"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Plan().Error("Plan request JSON binding failed", "requestId", middleware.GetRequestID(c), "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}

	plan, err := h.orchestrator.Plan(c.Request.Context(), req.Intent, req.StoryboardID)
	if err != nil {
		marker.SetError(err)
		h.respondError(c, err)
		return
	}

	marker.SetSuccess(true)
	h.logger.Plan().Info("Plan request served",
		"requestId", middleware.GetRequestID(c), "storyboardId", plan.StoryboardID, "duration", time.Since(start))
	c.JSON(http.StatusOK, plan)
}

// PostGenerate handles POST /api/storyboards/generate. Repeated calls for
// the same storyboard id return the stored result unchanged.
func (h *StoryboardHandlers) PostGenerate(c *gin.Context) {
	start := time.Now()
	marker := h.perfTracker.StartOperation("http:generate")
	defer marker.Complete()

	var req struct {
		StoryboardID string                 `json:"storyboardId"`
		Plan         *domain.StoryboardPlan `json:"plan"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}
	if req.Plan == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan is required"})
		return
	}
	if req.StoryboardID != "" {
		req.Plan.StoryboardID = req.StoryboardID
	}

	sb, err := h.orchestrator.Generate(c.Request.Context(), req.Plan)
	if err != nil {
		marker.SetError(err)
		h.respondError(c, err)
		return
	}

	marker.SetSuccess(true)
	h.logger.System().Info("Generate request served",
		"requestId", middleware.GetRequestID(c), "storyboardId", sb.StoryboardID, "duration", time.Since(start))
	c.JSON(http.StatusOK, sb)
}

// PostGenerateFrame handles POST /api/storyboards/generate-frame.
func (h *StoryboardHandlers) PostGenerateFrame(c *gin.Context) {
	marker := h.perfTracker.StartOperation("http:generate-frame")
	defer marker.Complete()

	var req struct {
		StoryboardID string `json:"storyboardId"`
		FrameIndex   *int   `json:"frameIndex"`
		Description  string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}
	if req.FrameIndex == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "frameIndex is required"})
		return
	}

	frame, err := h.orchestrator.GenerateFrame(c.Request.Context(), req.StoryboardID, *req.FrameIndex, req.Description)
	if err != nil {
		marker.SetError(err)
		h.respondError(c, err)
		return
	}

	marker.SetSuccess(true)
	c.JSON(http.StatusOK, frame)
}

// PostExtend handles POST /api/storyboards/extend.
func (h *StoryboardHandlers) PostExtend(c *gin.Context) {
	marker := h.perfTracker.StartOperation("http:extend")
	defer marker.Complete()

	var req struct {
		StoryboardID string             `json:"storyboardId"`
		ExtraFrames  []domain.PlanFrame `json:"extraFrames"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}

	sb, err := h.orchestrator.Extend(c.Request.Context(), req.StoryboardID, req.ExtraFrames)
	if err != nil {
		marker.SetError(err)
		h.respondError(c, err)
		return
	}

	marker.SetSuccess(true)
	c.JSON(http.StatusOK, sb)
}

// PostEdit handles POST /api/storyboards/edit.
func (h *StoryboardHandlers) PostEdit(c *gin.Context) {
	marker := h.perfTracker.StartOperation("http:edit")
	defer marker.Complete()

	var req struct {
		StoryboardID   string `json:"storyboardId"`
		FrameIndex     *int   `json:"frameIndex"`
		NewDescription string `json:"newDescription"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}
	if req.FrameIndex == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "frameIndex is required"})
		return
	}

	sb, err := h.orchestrator.Edit(c.Request.Context(), req.StoryboardID, *req.FrameIndex, req.NewDescription)
	if err != nil {
		marker.SetError(err)
		h.respondError(c, err)
		return
	}

	marker.SetSuccess(true)
	c.JSON(http.StatusOK, sb)
}

// GetStoryboard handles GET /api/storyboards/:storyboardId.
func (h *StoryboardHandlers) GetStoryboard(c *gin.Context) {
	sb, err := h.orchestrator.Get(c.Param("storyboardId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sb)
}
