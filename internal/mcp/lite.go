package mcp

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/neuroscreen-fusion-server/internal/cache"
	"github.com/neuroscreen-fusion-server/internal/config"
	"github.com/neuroscreen-fusion-server/internal/domain"
	"github.com/neuroscreen-fusion-server/internal/feedback"
	"github.com/neuroscreen-fusion-server/internal/fusion"
	"github.com/neuroscreen-fusion-server/internal/repository"
	"github.com/neuroscreen-fusion-server/internal/service"
)

// LiteServer is a lightweight MCP server that requires no external services.
// Assessments live in memory and clinician feedback is kept in SQLite.
type LiteServer struct {
	config        *config.LiteConfig
	server        *Server
	service       *service.AssessmentService
	feedbackStore feedback.Store
	cache         *cache.MemoryCache
	logger        *logrus.Logger
}

// LiteServerOption is a functional option for LiteServer.
type LiteServerOption func(*LiteServer) error

// WithFeedbackStore sets a custom feedback store.
func WithFeedbackStore(store feedback.Store) LiteServerOption {
	return func(s *LiteServer) error {
		s.feedbackStore = store
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) LiteServerOption {
	return func(s *LiteServer) error {
		s.logger = logger
		return nil
	}
}

// NewLiteServer creates a new lightweight MCP server instance.
func NewLiteServer(cfg *config.LiteConfig, opts ...LiteServerOption) (*LiteServer, error) {
	server := &LiteServer{config: cfg}

	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.logger == nil {
		logger, err := config.NewLogger(cfg.Logging())
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		server.logger = logger
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	strategy, err := fusion.ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	engine, err := fusion.NewEngine(cfg.FusionConfig(), strategy)
	if err != nil {
		return nil, fmt.Errorf("invalid fusion configuration: %w", err)
	}

	server.cache = cache.NewMemoryCache(cfg.CacheMaxItems, cfg.CacheTTL)

	if server.feedbackStore == nil {
		store, err := feedback.NewSQLiteStore(cfg.FeedbackDBPath())
		if err != nil {
			return nil, fmt.Errorf("failed to create feedback store: %w", err)
		}
		server.feedbackStore = store
	}

	svc, err := service.NewAssessmentService(service.Dependencies{
		Logger:     server.logger,
		Engine:     engine,
		Repository: repository.NewMemoryAssessmentRepository(),
		Cache:      server.cache,
		CacheTTL:   cfg.CacheTTL,
		Feedback:   server.feedbackStore,
	})
	if err != nil {
		return nil, err
	}
	server.service = svc

	server.server, err = NewServer(Options{
		Config: domain.MCPConfig{
			ServerName:    "neurofusion-lite",
			ServerVersion: defaultServerVersion,
			TransportType: cfg.Transport,
			HTTPHost:      cfg.HTTPHost,
			HTTPPort:      cfg.HTTPPort,
		},
		Service:   svc,
		ExportDir: cfg.ExportDir(),
		Logger:    server.logger,
	})
	if err != nil {
		return nil, err
	}

	server.logger.WithFields(logrus.Fields{
		"data_dir":  cfg.DataDir,
		"strategy":  strategy,
		"transport": cfg.Transport,
	}).Info("Lite server initialized")
	return server, nil
}

// Server returns the MCP server.
func (s *LiteServer) Server() *Server {
	return s.server
}

// Start serves until ctx is cancelled or the client disconnects.
func (s *LiteServer) Start(ctx context.Context) error {
	return s.server.Run(ctx)
}

// Close cleans up server resources.
func (s *LiteServer) Close() error {
	if s.feedbackStore != nil {
		if err := s.feedbackStore.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close feedback store")
		}
	}
	if s.cache != nil {
		return s.cache.Close()
	}
	return nil
}
