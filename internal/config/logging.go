package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/neuroscreen-fusion-server/internal/domain"
)

// NewLogger builds a logrus logger from logging settings. Output is stdout,
// stderr or a file path; stdio MCP servers must log to stderr.
func NewLogger(cfg domain.LoggingConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	level := cfg.Level
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(parsed)

	switch strings.ToLower(cfg.Format) {
	case "", "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("invalid log format: %s", cfg.Format)
	}

	out, err := logOutput(cfg.Output)
	if err != nil {
		return nil, err
	}
	logger.SetOutput(out)

	return logger, nil
}

func logOutput(output string) (io.Writer, error) {
	switch output {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		return f, nil
	}
}
