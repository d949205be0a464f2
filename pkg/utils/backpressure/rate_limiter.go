// Package backpressure provides request throttling for the HTTP surface
package backpressure

import (
	"context"
	"sync"
	"time"

	"github.com/rzzdr/vol-analytics-engine/pkg/utils/logger"
)

// TokenBucketLimiter implements token bucket rate limiting
type TokenBucketLimiter struct {
	rate       float64
	burst      int
	tokens     float64
	lastUpdate time.Time
	mutex      sync.Mutex
	log        *logger.Logger
}

// NewTokenBucketLimiter creates a limiter refilling at rate tokens per
// second with the given burst capacity
func NewTokenBucketLimiter(rate float64, burst int) *TokenBucketLimiter {
	if rate <= 0 {
		rate = 1.0
	}
	if burst <= 0 {
		burst = 1
	}

	return &TokenBucketLimiter{
		rate:       rate,
		burst:      burst,
		tokens:     float64(burst),
		lastUpdate: time.Now(),
		log:        logger.GetLogger("backpressure.token_bucket"),
	}
}

// Allow checks if a single operation is allowed
func (tb *TokenBucketLimiter) Allow() bool {
	return tb.AllowN(1)
}

// AllowN checks if n operations are allowed
func (tb *TokenBucketLimiter) AllowN(n int) bool {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	tb.refill(time.Now())

	if tb.tokens >= float64(n) {
		tb.tokens -= float64(n)
		return true
	}
	return false
}

// Wait blocks until a single operation is allowed or the context ends
func (tb *TokenBucketLimiter) Wait(ctx context.Context) error {
	for {
		if tb.Allow() {
			return nil
		}

		select {
		case <-time.After(time.Duration(float64(time.Second) / tb.rate)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// TokensRemaining returns the number of whole tokens remaining
func (tb *TokenBucketLimiter) TokensRemaining() int {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	tb.refill(time.Now())
	return int(tb.tokens)
}

func (tb *TokenBucketLimiter) refill(now time.Time) {
	elapsed := now.Sub(tb.lastUpdate)
	if elapsed <= 0 {
		return
	}

	tb.tokens += elapsed.Seconds() * tb.rate
	if tb.tokens > float64(tb.burst) {
		tb.tokens = float64(tb.burst)
	}
	tb.lastUpdate = now
}

// LimiterRegistry hands out one limiter per key, typically a client IP
type LimiterRegistry struct {
	rate     float64
	burst    int
	limiters map[string]*TokenBucketLimiter
	mutex    sync.Mutex
}

// NewLimiterRegistry creates a registry of per-key limiters
func NewLimiterRegistry(rate float64, burst int) *LimiterRegistry {
	return &LimiterRegistry{
		rate:     rate,
		burst:    burst,
		limiters: make(map[string]*TokenBucketLimiter),
	}
}

// Get returns the limiter for key, creating it on first use
func (r *LimiterRegistry) Get(key string) *TokenBucketLimiter {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if limiter, ok := r.limiters[key]; ok {
		return limiter
	}

	limiter := NewTokenBucketLimiter(r.rate, r.burst)
	r.limiters[key] = limiter
	return limiter
}
