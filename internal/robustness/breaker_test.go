package robustness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerStaysClosedBelowThreshold(t *testing.T) {
	b := NewBreaker(3, time.Minute)

	b.Record(false)
	b.Record(false)
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreakerTripsAtThreshold(t *testing.T) {
	b := NewBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		b.Record(false)
	}
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(3, time.Minute)

	b.Record(false)
	b.Record(false)
	b.Record(true)
	b.Record(false)
	b.Record(false)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenAfterCooldown(t *testing.T) {
	b := NewBreaker(1, 10*time.Millisecond)

	b.Record(false)
	require.False(t, b.Allow())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())
}

func TestBreakerProbeSuccessCloses(t *testing.T) {
	b := NewBreaker(1, 10*time.Millisecond)
	b.Record(false)
	time.Sleep(20 * time.Millisecond)
	require.True(t, b.Allow())

	b.Record(true)
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	b := NewBreaker(5, 10*time.Millisecond)
	for i := 0; i < 5; i++ {
		b.Record(false)
	}
	time.Sleep(20 * time.Millisecond)
	require.True(t, b.Allow())

	// A single failure in half-open re-opens regardless of threshold.
	b.Record(false)
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreakerGroupKeysIndependently(t *testing.T) {
	g := NewBreakerGroup(1, time.Minute)

	g.For("api.example.com").Record(false)

	assert.False(t, g.For("api.example.com").Allow())
	assert.True(t, g.For("other.example.com").Allow())
	// Same key returns the same breaker.
	assert.Same(t, g.For("api.example.com"), g.For("api.example.com"))
}
