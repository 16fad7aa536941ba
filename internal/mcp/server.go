// Package mcp exposes the fusion and assessment operations as MCP tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/neuroscreen-fusion-server/internal/domain"
	"github.com/neuroscreen-fusion-server/internal/service"
)

// Supported transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

const (
	defaultServerName    = "neurofusion"
	defaultServerVersion = "1.0.0"
	shutdownTimeout      = 10 * time.Second
)

// Server wraps the MCP SDK server around the assessment service.
type Server struct {
	mcpServer *sdkmcp.Server
	service   *service.AssessmentService
	config    domain.MCPConfig
	exportDir string
	logger    *logrus.Logger
}

// Options wires a Server. ExportDir is where export_feedback writes and
// where relative import_feedback paths are resolved.
type Options struct {
	Config    domain.MCPConfig
	Service   *service.AssessmentService
	ExportDir string
	Logger    *logrus.Logger
}

// NewServer creates an MCP server with every tool registered.
func NewServer(opts Options) (*Server, error) {
	if opts.Service == nil {
		return nil, errors.New("mcp: service is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}

	cfg := opts.Config
	if cfg.ServerName == "" {
		cfg.ServerName = defaultServerName
	}
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = defaultServerVersion
	}
	if cfg.TransportType == "" {
		cfg.TransportType = TransportStdio
	}

	s := &Server{
		mcpServer: sdkmcp.NewServer(&sdkmcp.Implementation{
			Name:    cfg.ServerName,
			Version: cfg.ServerVersion,
		}, nil),
		service:   opts.Service,
		config:    cfg,
		exportDir: opts.ExportDir,
		logger:    logger,
	}
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying SDK server, mainly for tests that connect
// over in-memory transports.
func (s *Server) MCPServer() *sdkmcp.Server {
	return s.mcpServer
}

// Run serves on the configured transport until ctx is cancelled or the
// client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.WithFields(logrus.Fields{
		"server":    s.config.ServerName,
		"version":   s.config.ServerVersion,
		"transport": s.config.TransportType,
	}).Info("Starting MCP server")

	switch s.config.TransportType {
	case TransportStdio:
		if err := s.mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("MCP server failed: %w", err)
		}
		return nil
	case TransportHTTP:
		return s.runHTTP(ctx)
	default:
		return domain.NewConfigurationError("", fmt.Sprintf("unsupported MCP transport %q", s.config.TransportType))
	}
}

// HTTPHandler serves the streamable HTTP transport.
func (s *Server) HTTPHandler() http.Handler {
	return sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server {
		return s.mcpServer
	}, nil)
}

func (s *Server) runHTTP(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/mcp", s.HTTPHandler())

	addr := fmt.Sprintf("%s:%d", s.config.HTTPHost, s.config.HTTPPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("MCP streamable HTTP transport listening on /mcp")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("MCP HTTP transport failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
