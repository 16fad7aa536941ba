package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	maxTrackedClients = 10000
	clientIdleTTL     = 10 * time.Minute
)

// RateLimiter hands out one token bucket per client IP. Buckets for idle
// clients are evicted after clientIdleTTL.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	clients *expirable.LRU[string, *rate.Limiter]
}

// NewRateLimiter allows rps requests per second per client with the given
// burst. A burst below one is raised to one.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		clients: expirable.NewLRU[string, *rate.Limiter](maxTrackedClients, nil, clientIdleTTL),
	}
}

func (rl *RateLimiter) limiter(client string) *rate.Limiter {
	if l, ok := rl.clients.Get(client); ok {
		return l
	}
	l := rate.NewLimiter(rl.limit, rl.burst)
	rl.clients.Add(client, l)
	return l
}

// Allow reports whether client may make a request now.
func (rl *RateLimiter) Allow(client string) bool {
	return rl.limiter(client).Allow()
}

// RateLimit rejects clients exceeding rps with 429. A non-positive rps
// disables limiting.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	rl := NewRateLimiter(rps, burst)
	retryAfter := strconv.Itoa(int(1/rps) + 1)

	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":       "RATE_LIMIT_EXCEEDED",
				"message":    "Too many requests",
				"request_id": c.GetString(CorrelationIDKey),
				"timestamp":  time.Now().UTC(),
			})
			return
		}
		c.Next()
	}
}
