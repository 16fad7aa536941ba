// Package analyzer calls the external Voice, Imaging and Motor analyzer
// services and gathers their results for fusion.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/neuroscreen-fusion-server/internal/domain"
	"github.com/neuroscreen-fusion-server/internal/fusion"
	"github.com/neuroscreen-fusion-server/internal/metrics"
)

const (
	defaultTimeout          = 30 * time.Second
	defaultRateLimit        = 5
	defaultFailureThreshold = 5
	defaultBackoff          = 200 * time.Millisecond
	maxResponseBytes        = 1 << 20
)

// statusError is a non-2xx analyzer response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("analyzer returned status %d: %s", e.code, e.body)
}

func (e *statusError) retryable() bool {
	return e.code >= 500 || e.code == http.StatusTooManyRequests
}

// HTTPAnalyzer is a JSON client for one modality analyzer service. It posts
// the capture to {base_url}/analyze and expects a ModalityResult back.
type HTTPAnalyzer struct {
	modality   domain.Modality
	endpoint   string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	retries    int
	backoff    time.Duration
	log        *logrus.Logger
	metrics    *metrics.Metrics
}

// NewHTTPAnalyzer creates a client for one modality.
func NewHTTPAnalyzer(
	modality domain.Modality,
	cfg domain.AnalyzerConfig,
	cbConfig domain.CircuitBreakerConfig,
	logger *logrus.Logger,
	m *metrics.Metrics,
) (*HTTPAnalyzer, error) {
	if !modality.IsValid() {
		return nil, domain.NewConfigurationError(modality, "unknown analyzer modality")
	}
	if cfg.BaseURL == "" {
		return nil, domain.NewConfigurationError(modality, "analyzer base_url is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	threshold := cbConfig.FailureThreshold
	if threshold == 0 {
		threshold = defaultFailureThreshold
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        string(modality),
		MaxRequests: cbConfig.MaxRequests,
		Interval:    cbConfig.Interval,
		Timeout:     cbConfig.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"analyzer": name,
				"from":     from.String(),
				"to":       to.String(),
			}).Warn("Analyzer circuit breaker changed state")
		},
	})

	return &HTTPAnalyzer{
		modality: modality,
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/analyze",
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		breaker: breaker,
		retries: cfg.RetryCount,
		backoff: defaultBackoff,
		log:     logger,
		metrics: m,
	}, nil
}

// Modality reports which modality this client serves.
func (a *HTTPAnalyzer) Modality() domain.Modality {
	return a.modality
}

// Analyze sends one capture to the analyzer and validates the result.
func (a *HTTPAnalyzer) Analyze(ctx context.Context, input domain.AnalyzerInput) (*domain.ModalityResult, error) {
	start := time.Now()
	result, err := a.analyze(ctx, input)
	a.metrics.AnalyzerCall(string(a.modality), err, time.Since(start))
	return result, err
}

func (a *HTTPAnalyzer) analyze(ctx context.Context, input domain.AnalyzerInput) (*domain.ModalityResult, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshaling analyzer request: %w", err)
	}

	out, err := a.breaker.Execute(func() (interface{}, error) {
		return a.postWithRetry(ctx, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s analyzer unavailable: %w", a.modality, err)
		}
		return nil, fmt.Errorf("%s analyzer request failed: %w", a.modality, err)
	}

	result := out.(*domain.ModalityResult)
	if result.Modality == "" {
		result.Modality = a.modality
	}
	if result.Modality != a.modality {
		return nil, domain.NewFieldError(a.modality, "modality",
			fmt.Sprintf("analyzer answered for %s", result.Modality), result.Modality)
	}
	if err := fusion.ValidateResults([]domain.ModalityResult{*result}); err != nil {
		return nil, err
	}

	a.log.WithFields(logrus.Fields{
		"modality":             a.modality,
		"prediction":           result.Prediction,
		"probability_positive": result.ProbabilityPositive,
		"confidence":           result.Confidence,
	}).Debug("Analyzer result received")

	return result, nil
}

func (a *HTTPAnalyzer) postWithRetry(ctx context.Context, body []byte) (*domain.ModalityResult, error) {
	var lastErr error
	for attempt := 0; attempt <= a.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(a.backoff * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := a.post(ctx, body)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, err
		}

		a.log.WithFields(logrus.Fields{
			"modality": a.modality,
			"attempt":  attempt + 1,
			"error":    err,
		}).Warn("Analyzer request failed")
	}
	return nil, lastErr
}

func (a *HTTPAnalyzer) post(ctx context.Context, body []byte) (*domain.ModalityResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if a.apiKey != "" {
		req.Header.Set("X-API-Key", a.apiKey)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(payload))}
	}

	var result domain.ModalityResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decoding analyzer response: %w", err)
	}
	return &result, nil
}

// NewAnalyzers builds a client for every modality that has a base URL.
func NewAnalyzers(cfg domain.AnalyzersConfig, logger *logrus.Logger, m *metrics.Metrics) ([]domain.ModalityAnalyzer, error) {
	var analyzers []domain.ModalityAnalyzer
	for _, modality := range domain.AllModalities() {
		ac := cfg.ByModality(modality)
		if ac.BaseURL == "" {
			continue
		}
		a, err := NewHTTPAnalyzer(modality, ac, cfg.CircuitBreaker, logger, m)
		if err != nil {
			return nil, err
		}
		analyzers = append(analyzers, a)
	}
	return analyzers, nil
}
