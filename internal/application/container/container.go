// Package container provides dependency injection for all singleton services
package container

import (
	"fmt"
	"net/http"

	"github.com/storyloom/storyloom-go/internal/application/services"
	"github.com/storyloom/storyloom-go/internal/infrastructure/ai"
	"github.com/storyloom/storyloom-go/internal/infrastructure/caching"
	"github.com/storyloom/storyloom-go/internal/infrastructure/observability/logging"
	"github.com/storyloom/storyloom-go/internal/infrastructure/observability/performance"
	"github.com/storyloom/storyloom-go/internal/presentation/http/middleware"
	"github.com/storyloom/storyloom-go/pkg/config"
	"golang.org/x/time/rate"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Application services
	PlanService         *services.PlanService
	FrameService        *services.FrameService
	OrchestratorService *services.OrchestratorService

	// Infrastructure
	Credentials     *ai.ServiceAccount
	TokenProvider   *ai.TokenProvider
	StoryboardStore *caching.StoryboardStore
	Metrics         *middleware.MetricsRegistry
	Logger          *logging.ChanneledLogger
	PerfTracker     *performance.Tracker
}

// NewContainer creates and wires all singleton services
func NewContainer() (*Container, error) {
	loggerConfig := logging.DefaultLoggerConfig()
	logger, err := logging.NewChanneledLogger(loggerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	creds, err := ai.LoadCredentials(config.ServiceAccountJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to load service account credentials: %w", err)
	}

	perfTracker := performance.NewTracker()
	store := caching.NewStoryboardStore(config.StoryboardTTL)
	metrics := middleware.NewMetricsRegistry()

	httpClient := &http.Client{Timeout: config.UpstreamTimeout}
	tokens := ai.NewTokenProvider(httpClient, logger)
	textClient := ai.NewTextClient(httpClient, logger, config.GCPProjectID, config.GCPLocation, config.TextModel)
	imageClient := ai.NewImageClient(httpClient, logger, config.GCPProjectID, config.GCPLocation)

	primaryModel, fallbackModel := imageModels()

	planService := services.NewPlanService(textClient, tokens, creds, logger, perfTracker)
	frameService := services.NewFrameService(imageClient, logger, perfTracker,
		primaryModel, fallbackModel, config.FrameAttempts, config.FrameRetryDelay)

	limiter := rate.NewLimiter(rate.Every(config.FrameInterval), 1)
	orchestrator := services.NewOrchestratorService(planService, frameService, store,
		tokens, creds, limiter, logger, perfTracker)

	return &Container{
		PlanService:         planService,
		FrameService:        frameService,
		OrchestratorService: orchestrator,

		Credentials:     creds,
		TokenProvider:   tokens,
		StoryboardStore: store,
		Metrics:         metrics,
		Logger:          logger,
		PerfTracker:     perfTracker,
	}, nil
}

// imageModels resolves the configured tier to a primary model and the
// fallback used on quota rejection. Running on the fast tier already means
// there is nowhere cheaper to fall to.
func imageModels() (primary, fallback string) {
	if config.ImageModelTier == "fast" {
		return config.ImageModelFast, ""
	}
	return config.ImageModelPro, config.ImageModelFast
}
