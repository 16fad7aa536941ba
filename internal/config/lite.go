package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/neuroscreen-fusion-server/internal/domain"
)

// LiteConfig configures the standalone MCP server. It needs no external
// services: assessments stay in memory and feedback goes to SQLite.
type LiteConfig struct {
	DataDir string `mapstructure:"data_dir"`

	CacheMaxItems int           `mapstructure:"cache_max_items"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`

	Strategy          string  `mapstructure:"strategy"`
	PositiveThreshold float64 `mapstructure:"positive_threshold"`

	Transport string `mapstructure:"transport"` // stdio or http
	HTTPHost  string `mapstructure:"http_host"`
	HTTPPort  int    `mapstructure:"http_port"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()

	return &LiteConfig{
		DataDir:           filepath.Join(homeDir, ".neurofusion"),
		CacheMaxItems:     1000,
		CacheTTL:          24 * time.Hour,
		Strategy:          "confidence_weighted",
		PositiveThreshold: domain.DefaultFusionConfig().PositiveThreshold,
		Transport:         "stdio",
		HTTPHost:          "127.0.0.1",
		HTTPPort:          8081,
		LogLevel:          "info",
		LogFormat:         "json",
	}
}

// LoadLiteConfig reads NEUROFUSION_* environment variables on top of the
// defaults, e.g. NEUROFUSION_DATA_DIR or NEUROFUSION_CACHE_TTL=12h.
// Unparseable values fall back to the default.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("cache_max_items", cfg.CacheMaxItems)
	v.SetDefault("cache_ttl", cfg.CacheTTL)
	v.SetDefault("strategy", cfg.Strategy)
	v.SetDefault("positive_threshold", cfg.PositiveThreshold)
	v.SetDefault("transport", cfg.Transport)
	v.SetDefault("http_host", cfg.HTTPHost)
	v.SetDefault("http_port", cfg.HTTPPort)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)

	loaded := *cfg
	if err := v.Unmarshal(&loaded); err != nil {
		return cfg
	}
	if loaded.CacheMaxItems <= 0 {
		loaded.CacheMaxItems = cfg.CacheMaxItems
	}
	if loaded.HTTPPort <= 0 {
		loaded.HTTPPort = cfg.HTTPPort
	}
	return &loaded
}

// FusionConfig returns the default weights with the configured threshold.
func (c *LiteConfig) FusionConfig() domain.FusionConfig {
	cfg := domain.DefaultFusionConfig()
	cfg.PositiveThreshold = c.PositiveThreshold
	return cfg
}

// Logging returns logger settings. The lite server speaks MCP over stdio,
// so logs always go to stderr.
func (c *LiteConfig) Logging() domain.LoggingConfig {
	return domain.LoggingConfig{Level: c.LogLevel, Format: c.LogFormat, Output: "stderr"}
}

// FeedbackDBPath returns the path to the feedback SQLite database.
func (c *LiteConfig) FeedbackDBPath() string {
	return filepath.Join(c.DataDir, "feedback.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}
