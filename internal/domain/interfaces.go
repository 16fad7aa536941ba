package domain

import (
	"context"
)

// FusionEngine combines per-modality results into one outcome.
type FusionEngine interface {
	Fuse(results []ModalityResult) (*FusionOutcome, error)
}

// ModalityAnalyzer is a client for one external analyzer service.
type ModalityAnalyzer interface {
	Modality() Modality
	Analyze(ctx context.Context, input AnalyzerInput) (*ModalityResult, error)
}

// AnalyzerInput is the raw capture forwarded to an analyzer service. The
// payload is opaque to this service.
type AnalyzerInput struct {
	ContentType string  `json:"content_type"`
	Data        []byte  `json:"data"`
	DurationSec float64 `json:"duration_seconds,omitempty"`
}

// AssessmentRepository defines the interface for assessment persistence
type AssessmentRepository interface {
	Create(ctx context.Context, record *AssessmentRecord) error
	GetByID(ctx context.Context, id string) (*AssessmentRecord, error)
	List(ctx context.Context, limit, offset int) ([]*AssessmentRecord, error)
	Count(ctx context.Context) (int64, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetDatabaseConfig() *DatabaseConfig
	GetFusionConfig() FusionConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetDatabaseURL() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
