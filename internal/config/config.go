// Package config loads service configuration from a YAML file, NEUROFUSION_*
// environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/viper"

	"github.com/neuroscreen-fusion-server/internal/database"
	"github.com/neuroscreen-fusion-server/internal/domain"
	"github.com/neuroscreen-fusion-server/internal/fusion"
)

// EnvPrefix is prepended to every environment override, e.g.
// NEUROFUSION_FUSION_POSITIVE_THRESHOLD.
const EnvPrefix = "NEUROFUSION"

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v          *viper.Viper
	configFile string
	config     *domain.Config
}

// NewManager creates a new configuration manager that searches the usual
// locations for config.yaml.
func NewManager() (*Manager, error) {
	return NewManagerFromFile("")
}

// NewManagerFromFile creates a configuration manager reading configFile.
// An empty path searches ., ./config and /etc/neurofusion/.
func NewManagerFromFile(configFile string) (*Manager, error) {
	m := &Manager{configFile: configFile}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := viper.New()

	if m.configFile != "" {
		v.SetConfigFile(m.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/neurofusion/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// The file is optional; defaults and environment variables suffice.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.v = v
	m.config = config
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("server.rate_limit", 20)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.tls_enabled", false)

	// Fusion defaults
	def := domain.DefaultFusionConfig()
	v.SetDefault("fusion.strategy", string(fusion.ConfidenceWeighted))
	v.SetDefault("fusion.positive_threshold", def.PositiveThreshold)
	v.SetDefault("fusion.base_weights.voice", def.BaseWeights[domain.VOICE])
	v.SetDefault("fusion.base_weights.imaging", def.BaseWeights[domain.IMAGING])
	v.SetDefault("fusion.base_weights.motor", def.BaseWeights[domain.MOTOR])

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "neurofusion")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.conn_max_idle_time", "1m")
	v.SetDefault("database.auto_migrate", true)

	// Feedback defaults
	v.SetDefault("feedback.driver", "sqlite")
	v.SetDefault("feedback.sqlite_path", "data/feedback.db")
	v.SetDefault("feedback.export_dir", "data/exports")

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_url", "redis://localhost:6379")
	v.SetDefault("cache.default_ttl", "1h")
	v.SetDefault("cache.max_items", 1024)
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")

	// Analyzer defaults
	v.SetDefault("analyzers.timeout", "60s")
	for _, m := range []string{"voice", "imaging", "motor"} {
		v.SetDefault("analyzers."+m+".timeout", "30s")
		v.SetDefault("analyzers."+m+".rate_limit", 5)
		v.SetDefault("analyzers."+m+".retry_count", 2)
	}
	v.SetDefault("analyzers.circuit_breaker.max_requests", 3)
	v.SetDefault("analyzers.circuit_breaker.interval", "30s")
	v.SetDefault("analyzers.circuit_breaker.timeout", "60s")
	v.SetDefault("analyzers.circuit_breaker.failure_threshold", 5)

	// Events defaults
	v.SetDefault("events.topic", "neurofusion.assessments")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// MCP defaults
	v.SetDefault("mcp.server_name", "neurofusion")
	v.SetDefault("mcp.server_version", "1.0.0")
	v.SetDefault("mcp.transport_type", "stdio")
	v.SetDefault("mcp.http_host", "127.0.0.1")
	v.SetDefault("mcp.http_port", 8081)
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetFusionConfig returns the engine configuration built from fusion.*
func (m *Manager) GetFusionConfig() domain.FusionConfig {
	return m.config.Fusion.FusionConfig()
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.RateLimit < 0 || math.IsNaN(config.Server.RateLimit) {
		return fmt.Errorf("invalid server rate limit: %v", config.Server.RateLimit)
	}
	if config.Server.TLSEnabled && (config.Server.CertFile == "" || config.Server.KeyFile == "") {
		return fmt.Errorf("TLS is enabled but cert_file or key_file is missing")
	}

	if _, err := fusion.ParseStrategy(config.Fusion.Strategy); err != nil {
		return err
	}
	if err := m.GetFusionConfig().Validate(); err != nil {
		return err
	}

	if config.Database.Enabled || config.Feedback.Driver == "postgres" {
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	}

	switch config.Feedback.Driver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid feedback driver: %s", config.Feedback.Driver)
	}

	if config.Cache.Enabled {
		switch config.Cache.Backend {
		case "", "memory":
		case "redis":
			if config.Cache.RedisURL == "" {
				return fmt.Errorf("Redis URL is required")
			}
		default:
			return fmt.Errorf("invalid cache backend: %s", config.Cache.Backend)
		}
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	switch config.MCP.TransportType {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid MCP transport: %s", config.MCP.TransportType)
	}

	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string
func (m *Manager) GetDatabaseConnectionString() string {
	return database.ConfigFrom(m.config.Database).DSN()
}

// GetDatabaseURL returns the database URL used by migrations and lib/pq
func (m *Manager) GetDatabaseURL() string {
	return database.ConfigFrom(m.config.Database).URL()
}

// GetRedisConnectionString returns the Redis connection string
func (m *Manager) GetRedisConnectionString() string {
	return m.config.Cache.RedisURL
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Environment)
	return env == "development" || env == "dev" || env == ""
}

var _ domain.ConfigManager = (*Manager)(nil)
