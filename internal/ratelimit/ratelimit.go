// Package ratelimit paces model API requests so bursts of tool-call
// rounds stay inside provider quotas.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Bucket is a token bucket. Capacity caps bursts; refillRate tokens
// become available per second.
type Bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64
	lastRefill time.Time
	mu         sync.Mutex
}

// NewBucket creates a full bucket.
func NewBucket(capacity, refillRate float64) *Bucket {
	return &Bucket{
		tokens:     capacity,
		capacity:   capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

func (b *Bucket) refill() {
	now := time.Now()
	b.tokens += now.Sub(b.lastRefill).Seconds() * b.refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}

// TryTake consumes n tokens if available.
func (b *Bucket) TryTake(n float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens >= n {
		b.tokens -= n
		return true
	}
	return false
}

// waitTime reports how long until n tokens will be available.
func (b *Bucket) waitTime(n float64) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens >= n {
		return 0
	}
	deficit := n - b.tokens
	return time.Duration(deficit / b.refillRate * float64(time.Second))
}

// Put returns tokens, e.g. after a request failed before reaching the
// provider.
func (b *Bucket) Put(n float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens += n
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
}

// Available returns the current token count.
func (b *Bucket) Available() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	return b.tokens
}

// Limiter gates outgoing model requests on both request count and
// estimated token volume.
type Limiter struct {
	requests *Bucket
	tokens   *Bucket
	enabled  bool

	mu      sync.Mutex
	total   int64
	delayed int64
}

// Config holds limiter settings.
type Config struct {
	Enabled           bool
	RequestsPerMinute int
	TokensPerMinute   int64
	Burst             int
}

// DefaultConfig matches common free-tier provider quotas with
// headroom.
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		RequestsPerMinute: 60,
		TokensPerMinute:   1_000_000,
		Burst:             10,
	}
}

// NewLimiter creates a limiter from the config.
func NewLimiter(cfg Config) *Limiter {
	burst := float64(cfg.Burst)
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		requests: NewBucket(burst, float64(cfg.RequestsPerMinute)/60.0),
		tokens:   NewBucket(float64(cfg.TokensPerMinute)/10.0, float64(cfg.TokensPerMinute)/60.0),
		enabled:  cfg.Enabled,
	}
}

// Wait blocks until a request slot and the estimated token volume are
// available, or the context ends.
func (l *Limiter) Wait(ctx context.Context, estimatedTokens int64) error {
	if l == nil || !l.enabled {
		return nil
	}

	l.mu.Lock()
	l.total++
	l.mu.Unlock()

	if err := l.waitBucket(ctx, l.requests, 1); err != nil {
		return err
	}
	if estimatedTokens > 0 {
		if err := l.waitBucket(ctx, l.tokens, float64(estimatedTokens)); err != nil {
			l.requests.Put(1)
			return err
		}
	}
	return nil
}

func (l *Limiter) waitBucket(ctx context.Context, b *Bucket, n float64) error {
	first := true
	for {
		if b.TryTake(n) {
			return nil
		}
		if first {
			l.mu.Lock()
			l.delayed++
			l.mu.Unlock()
			first = false
		}

		wait := b.waitTime(n)
		if wait < 10*time.Millisecond {
			wait = 10 * time.Millisecond
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Stats reports how often the limiter engaged.
func (l *Limiter) Stats() (total, delayed int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total, l.delayed
}

// EstimateTokens approximates the token count of a prompt. Four bytes
// per token is close enough for pacing.
func EstimateTokens(text string) int64 {
	return int64(len(text) / 4)
}
