package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostLimiter_Wait(t *testing.T) {
	limiter := NewHostLimiter(10, 1)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx, "a.ma"))
	assert.Less(t, time.Since(start), 50*time.Millisecond, "first request is immediate")

	start = time.Now()
	require.NoError(t, limiter.Wait(ctx, "a.ma"))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)

	// Other hosts have their own budget
	start = time.Now()
	require.NoError(t, limiter.Wait(ctx, "b.ma"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	stats := limiter.GetStats()
	assert.Equal(t, int64(2), stats["a.ma"].RequestCount)
	assert.Equal(t, int64(1), stats["b.ma"].RequestCount)
}

func TestHostLimiter_ContextCancellation(t *testing.T) {
	limiter := NewHostLimiter(0.1, 1)
	require.NoError(t, limiter.Wait(context.Background(), "a.ma"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, limiter.Wait(ctx, "a.ma"))
}

func TestHostLimiter_Backoff(t *testing.T) {
	limiter := NewHostLimiter(100, 1)

	for i := 0; i < 3; i++ {
		limiter.RecordError("a.ma")
	}
	assert.False(t, limiter.GetStats()["a.ma"].InBackoff, "no backoff before the threshold")

	limiter.RecordError("a.ma")
	stats := limiter.GetStats()["a.ma"]
	assert.True(t, stats.InBackoff)
	assert.Equal(t, int64(4), stats.ErrorCount)
	assert.WithinDuration(t, time.Now().Add(2*time.Minute), stats.BackoffUntil, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, limiter.Wait(ctx, "a.ma"), context.DeadlineExceeded)

	limiter.RecordSuccess("a.ma")
	stats = limiter.GetStats()["a.ma"]
	assert.False(t, stats.InBackoff)
	assert.Zero(t, stats.ErrorCount)
}

func TestHostLimiter_BackoffCap(t *testing.T) {
	limiter := NewHostLimiter(1, 1)
	for i := 0; i < 20; i++ {
		limiter.RecordError("a.ma")
	}
	stats := limiter.GetStats()["a.ma"]
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), stats.BackoffUntil, time.Second)
}
