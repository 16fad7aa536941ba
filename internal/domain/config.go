package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Environment string          `mapstructure:"environment"`
	Server      ServerConfig    `mapstructure:"server"`
	Fusion      FusionSettings  `mapstructure:"fusion"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Feedback    FeedbackConfig  `mapstructure:"feedback"`
	Cache       CacheConfig     `mapstructure:"cache"`
	Analyzers   AnalyzersConfig `mapstructure:"analyzers"`
	Events      EventsConfig    `mapstructure:"events"`
	Logging     LoggingConfig   `mapstructure:"logging"`
	MCP         MCPConfig       `mapstructure:"mcp"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"` // requests per second per client, 0 disables
	RateBurst      int           `mapstructure:"rate_burst"`
	TLSEnabled     bool          `mapstructure:"tls_enabled"`
	CertFile       string        `mapstructure:"cert_file"`
	KeyFile        string        `mapstructure:"key_file"`
}

// FusionSettings is the file/env representation of FusionConfig.
// Weights are explicit fields because viper lower-cases map keys.
type FusionSettings struct {
	Strategy          string         `mapstructure:"strategy"`
	PositiveThreshold float64        `mapstructure:"positive_threshold"`
	BaseWeights       WeightSettings `mapstructure:"base_weights"`
}

// WeightSettings holds one base weight per modality.
type WeightSettings struct {
	Voice   float64 `mapstructure:"voice"`
	Imaging float64 `mapstructure:"imaging"`
	Motor   float64 `mapstructure:"motor"`
}

// FusionConfig converts the settings into the engine configuration.
func (s FusionSettings) FusionConfig() FusionConfig {
	return FusionConfig{
		BaseWeights: map[Modality]float64{
			VOICE:   s.BaseWeights.Voice,
			IMAGING: s.BaseWeights.Imaging,
			MOTOR:   s.BaseWeights.Motor,
		},
		PositiveThreshold: s.PositiveThreshold,
	}
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// FeedbackConfig selects the clinician feedback store.
type FeedbackConfig struct {
	Driver     string `mapstructure:"driver"` // "sqlite" or "postgres"
	SQLitePath string `mapstructure:"sqlite_path"`
	ExportDir  string `mapstructure:"export_dir"`
}

// CacheConfig represents outcome cache configuration
type CacheConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Backend     string        `mapstructure:"backend"` // "memory" or "redis"
	RedisURL    string        `mapstructure:"redis_url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MaxItems    int           `mapstructure:"max_items"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
}

// AnalyzersConfig lists the external modality analyzer services.
type AnalyzersConfig struct {
	Timeout        time.Duration        `mapstructure:"timeout"`
	Voice          AnalyzerConfig       `mapstructure:"voice"`
	Imaging        AnalyzerConfig       `mapstructure:"imaging"`
	Motor          AnalyzerConfig       `mapstructure:"motor"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// ByModality returns the analyzer configuration for m.
func (a AnalyzersConfig) ByModality(m Modality) AnalyzerConfig {
	switch m {
	case VOICE:
		return a.Voice
	case IMAGING:
		return a.Imaging
	case MOTOR:
		return a.Motor
	default:
		return AnalyzerConfig{}
	}
}

// AnalyzerConfig represents one analyzer service endpoint
type AnalyzerConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  int           `mapstructure:"rate_limit"`
	RetryCount int           `mapstructure:"retry_count"`
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

// EventsConfig represents event publishing configuration
type EventsConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MCPConfig represents MCP server configuration
type MCPConfig struct {
	ServerName    string `mapstructure:"server_name"`
	ServerVersion string `mapstructure:"server_version"`
	TransportType string `mapstructure:"transport_type"` // "stdio", "http"
	HTTPHost      string `mapstructure:"http_host"`
	HTTPPort      int    `mapstructure:"http_port"`
}
