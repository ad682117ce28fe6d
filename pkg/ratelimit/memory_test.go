package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	l := NewMemoryLimiter(2, time.Hour)
	defer l.Stop()

	now := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	ctx := context.Background()
	key := Key("cancel", "jane@example.com")

	for i, want := range []bool{true, true, false} {
		ok, err := l.Allow(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, ok, "hit %d", i+1)
	}

	other, _ := l.Allow(ctx, Key("cancel", "bob@example.com"))
	assert.True(t, other)

	now = now.Add(time.Hour)
	ok, _ := l.Allow(ctx, key)
	assert.True(t, ok, "new window resets the counter")
}

func TestMemoryLimiter_EmptyKeyAlwaysAllowed(t *testing.T) {
	l := NewMemoryLimiter(1, time.Minute)
	defer l.Stop()

	for range 5 {
		ok, err := l.Allow(context.Background(), "")
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestMemoryLimiter_Concurrent(t *testing.T) {
	l := NewMemoryLimiter(10, time.Hour)
	defer l.Stop()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Allow(context.Background(), "k"); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// A window boundary could split the burst; at most two windows' worth may pass.
	assert.GreaterOrEqual(t, allowed, 10)
	assert.LessOrEqual(t, allowed, 20)
}
