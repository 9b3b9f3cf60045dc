// Package server exposes flow sessions over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alkime/onboard/internal/config"
	"github.com/alkime/onboard/internal/flow"
	"github.com/alkime/onboard/internal/session"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PublicDir holds optional static assets served for unmatched paths.
const PublicDir = "./public"

// Server represents the HTTP server
type Server struct {
	config   *config.Config
	logger   *slog.Logger
	router   *gin.Engine
	registry *session.Registry
	flow     flow.Definition
}

// New creates a new Server instance. def is the flow new sessions run unless
// the request names a builtin flow.
func New(cfg *config.Config, logger *slog.Logger, registry *session.Registry, def flow.Definition) *Server {
	// Set Gin mode based on environment
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), requestMetrics())

	// Configure proxy trust for production (Fly.io)
	if cfg.IsProduction() {
		router.TrustedPlatform = gin.PlatformFlyIO
		logger.Debug("Configured trusted platform", "platform", "fly.io")
	}

	server := &Server{
		config:   cfg,
		logger:   logger,
		router:   router,
		registry: registry,
		flow:     def,
	}

	// Setup middleware and routes
	setupSecurityMiddleware(router, cfg, logger)
	server.setupRoutes()

	return server
}

// Router returns the underlying handler, for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, s *Server) error {
	srv := &http.Server{
		Addr:              ":" + s.config.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errC := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "port", s.config.Port)
		errC <- srv.ListenAndServe()
	}()

	select {
	case err := <-errC:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	return nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api/v1")
	{
		api.GET("/flows/:flow", s.handleGetFlow)

		api.POST("/sessions", s.handleCreateSession)

		sessions := api.Group("/sessions/:id", s.loadSession)
		sessions.GET("", s.handleGetSession)
		sessions.DELETE("", s.handleDeleteSession)
		sessions.POST("/transcript", s.handleTranscript)
		sessions.POST("/steps/:step/complete", s.handleCompleteStep)
		sessions.POST("/steps/:step/goto", s.handleGoToStep)
		sessions.POST("/steps/:step/expand", s.handleExpandStep)
		sessions.POST("/collapse", s.handleCollapse)
		sessions.PATCH("/form", s.handleUpdateForm)
	}

	// Serve static assets for anything the API does not claim. The file
	// system wrapper rejects paths escaping the root.
	s.router.NoRoute(static.Serve("/", static.LocalFile(PublicDir, false)))
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"service":  "onboard",
		"sessions": s.registry.Len(),
	})
}
