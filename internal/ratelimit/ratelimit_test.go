package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketTryTake(t *testing.T) {
	b := NewBucket(5, 0)

	assert.True(t, b.TryTake(3))
	assert.True(t, b.TryTake(2))
	assert.False(t, b.TryTake(1))
}

func TestBucketPutRestoresTokens(t *testing.T) {
	b := NewBucket(5, 0)
	require.True(t, b.TryTake(5))

	b.Put(2)
	assert.True(t, b.TryTake(2))

	// Put never overfills past capacity.
	b.Put(100)
	assert.False(t, b.TryTake(6))
	assert.True(t, b.TryTake(5))
}

func TestBucketRefills(t *testing.T) {
	// 1000 tokens per second refills fast enough to observe in a test.
	b := NewBucket(10, 1000)
	require.True(t, b.TryTake(10))
	require.False(t, b.TryTake(1))

	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.TryTake(1))
}

func TestNilLimiterWaitIsNoOp(t *testing.T) {
	var l *Limiter
	assert.NoError(t, l.Wait(context.Background(), 1000))
}

func TestDisabledLimiterWaitIsNoOp(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	l := NewLimiter(cfg)

	// An expired context would fail if the limiter actually waited.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, l.Wait(ctx, 1<<40))
}

func TestLimiterWaitUnderBurst(t *testing.T) {
	l := NewLimiter(DefaultConfig())

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Wait(context.Background(), 100))
	}
	assert.Less(t, time.Since(start), time.Second)

	total, delayed := l.Stats()
	assert.Equal(t, int64(5), total)
	assert.Equal(t, int64(0), delayed)
}

func TestLimiterWaitHonorsContextCancel(t *testing.T) {
	l := NewLimiter(Config{
		Enabled:           true,
		RequestsPerMinute: 1,
		TokensPerMinute:   1_000_000,
		Burst:             1,
	})
	require.NoError(t, l.Wait(context.Background(), 0))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, delayed := l.Stats()
	assert.Equal(t, int64(1), delayed)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, int64(0), EstimateTokens(""))
	assert.Equal(t, int64(0), EstimateTokens("abc"))
	assert.Equal(t, int64(25), EstimateTokens(string(make([]byte, 100))))
}
