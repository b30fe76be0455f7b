// Package server provides HTTP server initialization and management.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/storyloom/storyloom-go/internal/application/container"
	"github.com/storyloom/storyloom-go/internal/presentation/http/routes"
	"github.com/storyloom/storyloom-go/pkg/config"
)

// Server runs the storyboard API over net/http with the gin router mounted
// as its handler. The write timeout must stay comfortably above the worst
// case for a full generate run (7 frames, each with retries), so it is
// configured independently of the read timeout.
type Server struct {
	httpServer *http.Server
	container  *container.Container
}

// New builds the server around the shared container and the configured
// timeouts.
func New(port string, container *container.Container) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         ":" + port,
			Handler:      routes.SetupRoutes(container),
			ReadTimeout:  config.ServerReadTimeout,
			WriteTimeout: config.ServerWriteTimeout,
			IdleTimeout:  config.ServerIdleTimeout,
		},
		container: container,
	}
}

// Start blocks serving the storyboard API until Stop is called or the
// listener fails.
func (s *Server) Start() error {
	log.Printf("Storyboard API listening on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("storyboard API server failed: %w", err)
	}

	return nil
}

// Stop drains in-flight requests and shuts the listener down. Generate runs
// already past their last provider call finish writing their responses
// within the context deadline.
func (s *Server) Stop(ctx context.Context) error {
	log.Println("Draining storyboard API connections...")
	return s.httpServer.Shutdown(ctx)
}
