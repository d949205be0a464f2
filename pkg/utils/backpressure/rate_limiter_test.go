package backpressure

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketBurstThenDeny(t *testing.T) {
	limiter := NewTokenBucketLimiter(1, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow())
	}
	assert.False(t, limiter.Allow())
}

func TestTokenBucketRefills(t *testing.T) {
	limiter := NewTokenBucketLimiter(100, 1)
	require.True(t, limiter.Allow())
	require.False(t, limiter.Allow())

	time.Sleep(50 * time.Millisecond)
	assert.True(t, limiter.Allow())
}

func TestTokenBucketWaitHonorsContext(t *testing.T) {
	limiter := NewTokenBucketLimiter(0.001, 1)
	require.True(t, limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimiterRegistryReturnsSameLimiterPerKey(t *testing.T) {
	registry := NewLimiterRegistry(10, 2)

	a := registry.Get("1.2.3.4")
	b := registry.Get("1.2.3.4")
	c := registry.Get("5.6.7.8")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}
