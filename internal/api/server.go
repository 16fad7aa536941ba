// Package api exposes the assessment service over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/neuroscreen-fusion-server/internal/domain"
	"github.com/neuroscreen-fusion-server/internal/metrics"
	"github.com/neuroscreen-fusion-server/internal/middleware"
	"github.com/neuroscreen-fusion-server/internal/service"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

const shutdownTimeout = 30 * time.Second

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Server represents the HTTP server
type Server struct {
	config  domain.ServerConfig
	service *service.AssessmentService
	metrics *metrics.Metrics
	checks  map[string]HealthCheck
	log     *logrus.Logger
	router  *gin.Engine
	server  *http.Server
}

// Options wires a Server.
type Options struct {
	Config  domain.ServerConfig
	Service *service.AssessmentService
	Metrics *metrics.Metrics
	Checks  map[string]HealthCheck
	Logger  *logrus.Logger
}

// NewServer creates a new HTTP server instance
func NewServer(opts Options) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger(opts.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RateLimit(opts.Config.RateLimit, opts.Config.RateBurst))
	router.Use(middleware.RequestTimeout(opts.Config.RequestTimeout))

	s := &Server{
		config:  opts.Config,
		service: opts.Service,
		metrics: opts.Metrics,
		checks:  opts.Checks,
		log:     opts.Logger,
		router:  router,
	}
	s.setupRoutes()
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithFields(logrus.Fields{
			"addr": addr,
			"tls":  s.config.TLSEnabled,
		}).Info("HTTP server listening")

		var err error
		if s.config.TLSEnabled {
			err = s.server.ListenAndServeTLS(s.config.CertFile, s.config.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.log.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/fusion", s.handleFuse)

		v1.POST("/assessments", s.handleCreateAssessment)
		v1.GET("/assessments", s.handleListAssessments)
		v1.GET("/assessments/:id", s.handleGetAssessment)
		v1.GET("/assessments/:id/report", s.handleReport)
		v1.POST("/assessments/:id/feedback", s.handleSubmitFeedback)

		v1.GET("/feedback", s.handleListFeedback)

		v1.POST("/weights/evaluate", s.handleEvaluateWeights)
		v1.POST("/weights/optimize", s.handleOptimizeWeights)

		v1.GET("/config/fusion", s.handleGetFusionConfig)
	}
}

// handleHealth reports overall status and the result of each dependency
// probe. Any failing probe turns the status to degraded with a 503.
func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK
	components := make(map[string]string, len(s.checks))

	for name, check := range s.checks {
		if err := check(c.Request.Context()); err != nil {
			components[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	c.JSON(code, gin.H{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC(),
		"version":    Version,
	})
}
