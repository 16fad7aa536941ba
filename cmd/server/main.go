package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/neuroscreen-fusion-server/internal/api"
	"github.com/neuroscreen-fusion-server/internal/app"
	"github.com/neuroscreen-fusion-server/internal/config"
)

func main() {
	// Load configuration
	configManager, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}
	defer application.Close()

	server := api.NewServer(api.Options{
		Config:  cfg.Server,
		Service: application.Service,
		Metrics: application.Metrics,
		Checks:  application.Checks,
		Logger:  logger,
	})

	logger.WithFields(logrus.Fields{
		"host":        cfg.Server.Host,
		"port":        cfg.Server.Port,
		"environment": cfg.Environment,
	}).Info("Starting NeuroFusion screening server")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("Server failed")
		application.Close()
		os.Exit(1)
	}

	logger.Info("Server stopped")
}

// loadConfig reads NEUROFUSION_CONFIG_FILE when set, otherwise searches the
// default locations.
func loadConfig() (*config.Manager, error) {
	if path := os.Getenv("NEUROFUSION_CONFIG_FILE"); path != "" {
		return config.NewManagerFromFile(path)
	}
	return config.NewManager()
}
