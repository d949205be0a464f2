package circuit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDownstream = errors.New("downstream failed")

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	breaker := NewBreaker("test", Config{MaxFailures: 3, Timeout: time.Minute})
	fail := func() error { return errDownstream }

	for i := 0; i < 3; i++ {
		require.ErrorIs(t, breaker.Do(fail), errDownstream)
	}
	assert.Equal(t, StateOpen, breaker.State())

	// Calls are shed without invoking fn.
	called := false
	err := breaker.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	breaker := NewBreaker("test", Config{MaxFailures: 2, Timeout: time.Minute})

	require.Error(t, breaker.Do(func() error { return errDownstream }))
	require.NoError(t, breaker.Do(func() error { return nil }))
	require.Error(t, breaker.Do(func() error { return errDownstream }))

	// The success in between kept the streak below the limit.
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	breaker := NewBreaker("test", Config{MaxFailures: 1, Timeout: 10 * time.Millisecond})

	require.Error(t, breaker.Do(func() error { return errDownstream }))
	require.Equal(t, StateOpen, breaker.State())

	time.Sleep(20 * time.Millisecond)

	// A successful probe closes the breaker again.
	require.NoError(t, breaker.Do(func() error { return nil }))
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerReopensOnFailedProbe(t *testing.T) {
	breaker := NewBreaker("test", Config{MaxFailures: 1, Timeout: 10 * time.Millisecond})

	require.Error(t, breaker.Do(func() error { return errDownstream }))
	time.Sleep(20 * time.Millisecond)

	require.Error(t, breaker.Do(func() error { return errDownstream }))
	assert.Equal(t, StateOpen, breaker.State())
}
