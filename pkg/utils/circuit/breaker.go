// Package circuit provides a circuit breaker for flaky downstreams
package circuit

import (
	"errors"
	"sync"
	"time"

	"github.com/rzzdr/vol-analytics-engine/pkg/utils/logger"
)

// ErrOpen is returned while the breaker is rejecting calls
var ErrOpen = errors.New("circuit breaker is open")

// State is the breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateHalfOpen:
		return "HALF_OPEN"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config contains configuration for a circuit breaker
type Config struct {
	// MaxFailures is the consecutive-failure count that opens the breaker
	MaxFailures int
	// Timeout is how long the breaker stays open before probing
	Timeout time.Duration
}

// Breaker trips after consecutive failures and probes again after a
// cool-down, letting a single half-open call decide the next state
type Breaker struct {
	name            string
	config          Config
	state           State
	failures        int
	lastFailureTime time.Time
	mutex           sync.Mutex
	log             *logger.Logger
}

// NewBreaker creates a circuit breaker
func NewBreaker(name string, config Config) *Breaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &Breaker{
		name:   name,
		config: config,
		state:  StateClosed,
		log:    logger.GetLogger("circuit." + name),
	}
}

// Do runs fn through the breaker
func (b *Breaker) Do(fn func() error) error {
	if err := b.beforeCall(); err != nil {
		return err
	}

	err := fn()
	b.afterCall(err == nil)
	return err
}

// State returns the current breaker state
func (b *Breaker) State() State {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.state
}

func (b *Breaker) beforeCall() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.state == StateOpen {
		if time.Since(b.lastFailureTime) < b.config.Timeout {
			return ErrOpen
		}
		b.transition(StateHalfOpen)
	}
	return nil
}

func (b *Breaker) afterCall(success bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if success {
		b.failures = 0
		if b.state == StateHalfOpen {
			b.transition(StateClosed)
		}
		return
	}

	b.failures++
	b.lastFailureTime = time.Now()
	if b.state == StateHalfOpen || b.failures >= b.config.MaxFailures {
		b.transition(StateOpen)
	}
}

func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	b.log.Warnf("Circuit breaker '%s' %s -> %s", b.name, b.state, to)
	b.state = to
}
