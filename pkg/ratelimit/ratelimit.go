// Package ratelimit provides fixed-window request limiting keyed by an arbitrary string,
// typically "<action>:<subject>" such as "cancel:jane@example.com".
package ratelimit

import (
	"context"
	"time"
)

type Limiter interface {
	// Allow records one hit for key and reports whether it fits inside the current window.
	Allow(ctx context.Context, key string) (bool, error)
}

func Key(action, subject string) string {
	return action + ":" + subject
}

// windowStart truncates now to the beginning of its fixed window.
func windowStart(now time.Time, window time.Duration) time.Time {
	return now.Truncate(window)
}
