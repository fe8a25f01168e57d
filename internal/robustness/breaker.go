// Package robustness holds failure-isolation primitives for outbound
// calls.
package robustness

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned while a breaker is rejecting calls.
var ErrOpen = errors.New("circuit open: recent calls to this target kept failing")

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateHalfOpen
	StateOpen
)

// Breaker trips after consecutive failures and rejects calls until a
// cooldown passes. The first call after the cooldown probes the
// target; its outcome closes or re-opens the circuit.
type Breaker struct {
	threshold int
	cooldown  time.Duration

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		state:     StateClosed,
	}
}

// Allow reports whether a call may proceed, transitioning to half-open
// when the cooldown has passed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if time.Since(b.lastFailure) < b.cooldown {
			return false
		}
		b.state = StateHalfOpen
	}
	return true
}

// Record reports a call outcome.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.state = StateClosed
		b.failures = 0
		return
	}

	b.failures++
	b.lastFailure = time.Now()
	if b.state == StateHalfOpen || b.failures >= b.threshold {
		b.state = StateOpen
	}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// BreakerGroup keys independent breakers by target, e.g. one per
// remote host.
type BreakerGroup struct {
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewBreakerGroup creates an empty group; breakers are created on
// first use.
func NewBreakerGroup(threshold int, cooldown time.Duration) *BreakerGroup {
	return &BreakerGroup{
		threshold: threshold,
		cooldown:  cooldown,
		breakers:  make(map[string]*Breaker),
	}
}

// For returns the breaker for a target, creating it if needed.
func (g *BreakerGroup) For(target string) *Breaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.breakers[target]
	if !ok {
		b = NewBreaker(g.threshold, g.cooldown)
		g.breakers[target] = b
	}
	return b
}
