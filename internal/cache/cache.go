// Package cache stores fusion outcomes keyed by their exact inputs.
//
// Fusion is a pure function of its inputs, so a cached outcome is always
// identical to a recomputed one.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/neuroscreen-fusion-server/internal/domain"
)

// KeyPrefix namespaces outcome keys in shared stores.
const KeyPrefix = "fusion:outcome:"

// OutcomeCache is implemented by MemoryCache and RedisCache.
type OutcomeCache interface {
	Get(ctx context.Context, key string) (*domain.FusionOutcome, bool, error)
	Set(ctx context.Context, key string, outcome *domain.FusionOutcome, ttl time.Duration) error
	Close() error
}

type keyResult struct {
	Modality              domain.Modality   `json:"m"`
	Prediction            domain.Prediction `json:"p"`
	Confidence            float64           `json:"c"`
	ProbabilityPositive   float64           `json:"pp"`
	ProbabilityNegative   float64           `json:"pn"`
	ProcessingTimeSeconds float64           `json:"t"`
}

type keyDocument struct {
	Results   []keyResult                 `json:"r"`
	Weights   map[domain.Modality]float64 `json:"w"`
	Threshold float64                     `json:"th"`
	Strategy  string                      `json:"s"`
}

// Key returns the cache key for one fusion call: the SHA-256 of a canonical
// JSON document of the results in modality order, the configuration and the
// strategy. Contributing features do not take part in fusion and are left out.
func Key(results []domain.ModalityResult, cfg domain.FusionConfig, strategy string) (string, error) {
	doc := keyDocument{
		Weights:   cfg.BaseWeights,
		Threshold: cfg.PositiveThreshold,
		Strategy:  strategy,
	}
	for _, r := range results {
		doc.Results = append(doc.Results, keyResult{
			Modality:              r.Modality,
			Prediction:            r.Prediction,
			Confidence:            r.Confidence,
			ProbabilityPositive:   r.ProbabilityPositive,
			ProbabilityNegative:   r.ProbabilityNegative,
			ProcessingTimeSeconds: r.ProcessingTimeSeconds,
		})
	}
	sort.SliceStable(doc.Results, func(i, j int) bool {
		return doc.Results[i].Modality.Rank() < doc.Results[j].Modality.Rank()
	})

	// encoding/json writes map keys sorted, which keeps the document canonical.
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cache key: %w", err)
	}
	sum := sha256.Sum256(data)
	return KeyPrefix + hex.EncodeToString(sum[:]), nil
}

// NoopCache never stores anything.
type NoopCache struct{}

// Get always misses.
func (NoopCache) Get(context.Context, string) (*domain.FusionOutcome, bool, error) {
	return nil, false, nil
}

// Set discards the outcome.
func (NoopCache) Set(context.Context, string, *domain.FusionOutcome, time.Duration) error {
	return nil
}

// Close is a no-op.
func (NoopCache) Close() error { return nil }

// New builds the cache selected by configuration.
func New(cfg domain.CacheConfig) (OutcomeCache, error) {
	if !cfg.Enabled {
		return NoopCache{}, nil
	}
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryCache(cfg.MaxItems, cfg.DefaultTTL), nil
	case "redis":
		return NewRedisCache(cfg)
	default:
		return nil, domain.NewConfigurationError("", fmt.Sprintf("unknown cache backend %q", cfg.Backend))
	}
}
