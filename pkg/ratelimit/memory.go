package ratelimit

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	window time.Time
	hits   int
}

// MemoryLimiter keeps counters in process. Suitable for tests and single-instance runs.
type MemoryLimiter struct {
	mu       sync.Mutex
	counters map[string]*counter
	limit    int
	window   time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	l := &MemoryLimiter{
		counters: make(map[string]*counter),
		limit:    limit,
		window:   window,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
	go l.cleanup()
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	if key == "" {
		return true, nil
	}

	start := windowStart(l.now(), l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[key]
	if !ok || !c.window.Equal(start) {
		c = &counter{window: start}
		l.counters[key] = c
	}
	c.hits++
	return c.hits <= l.limit, nil
}

func (l *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			start := windowStart(l.now(), l.window)
			l.mu.Lock()
			for key, c := range l.counters {
				if c.window.Before(start) {
					delete(l.counters, key)
				}
			}
			l.mu.Unlock()
		case <-l.stopCh:
			return
		}
	}
}

func (l *MemoryLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}
