package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "confidence_weighted", cfg.Strategy)
	assert.Equal(t, 0.5, cfg.PositiveThreshold)
	assert.Equal(t, "stdio", cfg.Transport)
	assert.Equal(t, 8081, cfg.HTTPPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadLiteConfig_Defaults(t *testing.T) {
	cfg := LoadLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, "stdio", cfg.Transport)
}

func TestLoadLiteConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("NEUROFUSION_DATA_DIR", "/tmp/test-neurofusion")
	t.Setenv("NEUROFUSION_CACHE_MAX_ITEMS", "500")
	t.Setenv("NEUROFUSION_CACHE_TTL", "12h")
	t.Setenv("NEUROFUSION_STRATEGY", "majority_vote")
	t.Setenv("NEUROFUSION_POSITIVE_THRESHOLD", "0.4")
	t.Setenv("NEUROFUSION_TRANSPORT", "http")
	t.Setenv("NEUROFUSION_HTTP_PORT", "9090")
	t.Setenv("NEUROFUSION_LOG_LEVEL", "debug")

	cfg := LoadLiteConfig()

	assert.Equal(t, "/tmp/test-neurofusion", cfg.DataDir)
	assert.Equal(t, 500, cfg.CacheMaxItems)
	assert.Equal(t, 12*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "majority_vote", cfg.Strategy)
	assert.Equal(t, 0.4, cfg.PositiveThreshold)
	assert.Equal(t, 0.4, cfg.FusionConfig().PositiveThreshold)
	assert.Equal(t, "http", cfg.Transport)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "stderr", cfg.Logging().Output)
}

func TestLoadLiteConfig_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("NEUROFUSION_CACHE_MAX_ITEMS", "-3")

	cfg := LoadLiteConfig()
	assert.Equal(t, 1000, cfg.CacheMaxItems)
}

func TestLiteConfig_Paths(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.neurofusion"}

	assert.Equal(t, "/home/user/.neurofusion/feedback.db", cfg.FeedbackDBPath())
	assert.Equal(t, "/home/user/.neurofusion/exports", cfg.ExportDir())
}

func TestLiteConfig_EnsureDataDir(t *testing.T) {
	cfg := &LiteConfig{DataDir: filepath.Join(t.TempDir(), "neurofusion")}

	require.NoError(t, cfg.EnsureDataDir())

	_, err := os.Stat(cfg.DataDir)
	assert.NoError(t, err)
	_, err = os.Stat(cfg.ExportDir())
	assert.NoError(t, err)
}
