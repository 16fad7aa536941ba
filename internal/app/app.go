// Package app assembles the service graph shared by the HTTP and MCP
// servers from the loaded configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/neuroscreen-fusion-server/internal/analyzer"
	"github.com/neuroscreen-fusion-server/internal/api"
	"github.com/neuroscreen-fusion-server/internal/cache"
	"github.com/neuroscreen-fusion-server/internal/database"
	"github.com/neuroscreen-fusion-server/internal/domain"
	"github.com/neuroscreen-fusion-server/internal/events"
	"github.com/neuroscreen-fusion-server/internal/feedback"
	"github.com/neuroscreen-fusion-server/internal/fusion"
	"github.com/neuroscreen-fusion-server/internal/metrics"
	"github.com/neuroscreen-fusion-server/internal/repository"
	"github.com/neuroscreen-fusion-server/internal/service"
)

// App holds the wired service and everything that must be closed with it.
type App struct {
	Config  *domain.Config
	Logger  *logrus.Logger
	Metrics *metrics.Metrics
	Service *service.AssessmentService
	Checks  map[string]api.HealthCheck

	closers []func() error
}

// New connects every configured backend and builds the assessment service.
// Backends that are not configured fall back to in-process implementations:
// an in-memory repository, no cache, no event publishing and no analyzers.
func New(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (_ *App, err error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
		Checks:  make(map[string]api.HealthCheck),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	strategy, err := fusion.ParseStrategy(cfg.Fusion.Strategy)
	if err != nil {
		return nil, err
	}
	engine, err := fusion.NewEngine(cfg.Fusion.FusionConfig(), strategy)
	if err != nil {
		return nil, fmt.Errorf("invalid fusion configuration: %w", err)
	}

	repo, err := a.openRepository(ctx)
	if err != nil {
		return nil, err
	}

	outcomes, err := cache.New(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	a.closers = append(a.closers, outcomes.Close)
	if rc, ok := outcomes.(*cache.RedisCache); ok {
		a.Checks["cache"] = rc.Ping
	}

	store, err := feedback.Open(cfg.Feedback, database.ConfigFrom(cfg.Database).URL())
	if err != nil {
		return nil, fmt.Errorf("failed to open feedback store: %w", err)
	}
	a.closers = append(a.closers, store.Close)

	publisher, err := events.New(cfg.Events, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create event publisher: %w", err)
	}
	a.closers = append(a.closers, publisher.Close)

	analyzers, err := analyzer.NewAnalyzers(cfg.Analyzers, logger, a.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer clients: %w", err)
	}
	var collector *analyzer.Collector
	if len(analyzers) > 0 {
		collector = analyzer.NewCollector(cfg.Analyzers.Timeout, logger, analyzers...)
	} else {
		logger.Warn("No analyzer services configured; assessments require ready modality results")
	}

	a.Service, err = service.NewAssessmentService(service.Dependencies{
		Logger:     logger,
		Engine:     engine,
		Repository: repo,
		Cache:      outcomes,
		CacheTTL:   cfg.Cache.DefaultTTL,
		Feedback:   store,
		Publisher:  publisher,
		Collector:  collector,
		Metrics:    a.Metrics,
	})
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"strategy":        strategy,
		"database":        cfg.Database.Enabled,
		"cache":           cfg.Cache.Enabled,
		"cache_backend":   cfg.Cache.Backend,
		"feedback_driver": cfg.Feedback.Driver,
		"event_brokers":   len(cfg.Events.Brokers),
		"analyzers":       len(analyzers),
	}).Info("Application initialized")
	return a, nil
}

func (a *App) openRepository(ctx context.Context) (domain.AssessmentRepository, error) {
	if !a.Config.Database.Enabled {
		a.Logger.Warn("Database disabled; assessments are kept in memory")
		return repository.NewMemoryAssessmentRepository(), nil
	}

	dbCfg := database.ConfigFrom(a.Config.Database)
	if a.Config.Database.AutoMigrate {
		if err := Migrate(ctx, a.Config.Database, a.Logger, true); err != nil {
			return nil, err
		}
	}

	db, err := database.NewConnection(ctx, dbCfg, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.closers = append(a.closers, func() error { db.Close(); return nil })
	a.Checks["database"] = db.Health
	return repository.NewAssessmentRepository(db.Pool, a.Logger), nil
}

// Migrate applies (up) or rolls back one step of (down) the schema
// migrations.
func Migrate(ctx context.Context, cfg domain.DatabaseConfig, logger *logrus.Logger, up bool) error {
	runner, err := database.NewMigrationRunner(database.ConfigFrom(cfg).URL(), cfg.MigrationsPath, logger)
	if err != nil {
		return fmt.Errorf("failed to create migration runner: %w", err)
	}
	defer runner.Close()

	if up {
		err = runner.Up(ctx)
	} else {
		err = runner.Down(ctx)
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Close releases every backend in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
