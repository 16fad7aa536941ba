package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/neuroscreen-fusion-server/internal/domain"
)

// DefaultMaxItems bounds the in-process cache when no size is configured.
const DefaultMaxItems = 1024

// MemoryCache is an in-process expiring LRU of outcome views.
type MemoryCache struct {
	lru *expirable.LRU[string, domain.FusionOutcomeView]
}

// NewMemoryCache creates a cache holding at most size outcomes, each kept for
// ttl. A zero ttl keeps entries until they are evicted.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = DefaultMaxItems
	}
	return &MemoryCache{lru: expirable.NewLRU[string, domain.FusionOutcomeView](size, nil, ttl)}
}

// Get returns a fresh copy of the cached outcome.
func (c *MemoryCache) Get(_ context.Context, key string) (*domain.FusionOutcome, bool, error) {
	view, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	return view.Outcome(), true, nil
}

// Set stores outcome. The LRU applies its own TTL, so ttl is ignored.
func (c *MemoryCache) Set(_ context.Context, key string, outcome *domain.FusionOutcome, _ time.Duration) error {
	c.lru.Add(key, outcome.View())
	return nil
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// Close purges all entries.
func (c *MemoryCache) Close() error {
	c.lru.Purge()
	return nil
}
