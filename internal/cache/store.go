package cache

import (
	"context"
	"errors"
	"time"
)

// Key namespaces shared by every Store implementation.
const (
	RecipePrefix    = "recipe:"
	RateLimitPrefix = "ratelimit:"
)

// ErrStoreUnavailable is returned by stores that were never initialised.
var ErrStoreUnavailable = errors.New("cache: store not initialised")

// Store represents a shared key/value cache used by the recipe cache and the rate limiter.
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Delete removes keys and returns how many existed.
	Delete(ctx context.Context, keys ...string) (int64, error)
	// Clear removes every key with the prefix and returns how many were removed.
	Clear(ctx context.Context, prefix string) (int64, error)
	// Len counts live keys with the prefix.
	Len(ctx context.Context, prefix string) (int64, error)
	Ping(ctx context.Context) error
}
