package papersources

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Allow(t *testing.T) {
	limiter := NewRateLimiter(1, 2)

	assert.True(t, limiter.Allow())
	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow(), "burst exhausted")
}

func TestRateLimiter_Wait(t *testing.T) {
	t.Run("returns immediately with tokens", func(t *testing.T) {
		limiter := NewRateLimiter(10, 1)
		start := time.Now()
		require.NoError(t, limiter.Wait(context.Background()))
		assert.Less(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("respects cancellation", func(t *testing.T) {
		limiter := NewRateLimiter(0.01, 1)
		require.True(t, limiter.Allow())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.Error(t, limiter.Wait(ctx))
	})

	t.Run("safe for concurrent use", func(t *testing.T) {
		limiter := NewRateLimiter(1000, 50)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, limiter.Wait(context.Background()))
			}()
		}
		wg.Wait()
	})
}

func TestRateLimiter_Tokens(t *testing.T) {
	limiter := NewRateLimiter(1, 3)
	assert.InDelta(t, 3.0, limiter.Tokens(), 0.01)
	limiter.Allow()
	assert.InDelta(t, 2.0, limiter.Tokens(), 0.05)
}
