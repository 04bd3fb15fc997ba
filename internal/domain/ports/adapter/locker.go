package adapter

import (
	"context"
	"time"
)

// Locker is a cross-instance mutual exclusion primitive.
type Locker interface {
	// Lock returns a token to pass to Unlock, or ok=false if the key is held.
	Lock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

// RateLimiter is a fixed-window counter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
