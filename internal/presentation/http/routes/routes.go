// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/storyloom/storyloom-go/internal/application/container"
	"github.com/storyloom/storyloom-go/internal/presentation/http/handlers"
	"github.com/storyloom/storyloom-go/internal/presentation/http/middleware"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.MetricsMiddleware(container.Metrics))

	storyboardHandlers := handlers.NewStoryboardHandlers(container.OrchestratorService, container.Logger, container.PerfTracker)
	systemHandlers := handlers.NewSystemHandlers(container.Metrics, container.StoryboardStore, container.Logger, container.PerfTracker)

	api := r.Group("/api/storyboards")
	{
		api.POST("/plan", storyboardHandlers.PostPlan)
		api.POST("/generate", storyboardHandlers.PostGenerate)
		api.POST("/generate-frame", storyboardHandlers.PostGenerateFrame)
		api.POST("/extend", storyboardHandlers.PostExtend)
		api.POST("/edit", storyboardHandlers.PostEdit)

		api.GET("/metrics", systemHandlers.GetMetrics)
		api.GET("/health", systemHandlers.GetHealth)
		api.GET("/:storyboardId", storyboardHandlers.GetStoryboard)
	}

	return r
}
