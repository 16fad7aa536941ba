// Package main runs the MCP server against the fully configured backends:
// PostgreSQL, Redis, Kafka and the analyzer services, as set in the
// configuration file.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/neuroscreen-fusion-server/internal/app"
	"github.com/neuroscreen-fusion-server/internal/config"
	"github.com/neuroscreen-fusion-server/internal/mcp"
)

func main() {
	var (
		configManager *config.Manager
		err           error
	)
	if path := os.Getenv("NEUROFUSION_CONFIG_FILE"); path != "" {
		configManager, err = config.NewManagerFromFile(path)
	} else {
		configManager, err = config.NewManager()
	}
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	// stdout carries the MCP protocol on the stdio transport.
	loggingCfg := cfg.Logging
	if loggingCfg.Output == "" || loggingCfg.Output == "stdout" {
		loggingCfg.Output = "stderr"
	}
	logger, err := config.NewLogger(loggingCfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}
	defer application.Close()

	server, err := mcp.NewServer(mcp.Options{
		Config:    cfg.MCP,
		Service:   application.Service,
		ExportDir: cfg.Feedback.ExportDir,
		Logger:    logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create MCP server")
	}

	if err := server.Run(ctx); err != nil {
		logger.WithError(err).Error("MCP server failed")
		application.Close()
		os.Exit(1)
	}
	logger.Info("MCP server stopped")
}
