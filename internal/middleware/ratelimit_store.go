package middleware

import (
	"context"
	"time"

	"github.com/charlesng35/recipekeeper/internal/cache"
)

const memoryRateStoreItems = 10000

// RateStore coordinates rate limiting counters for a specific key.
type RateStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, ttl time.Duration, err error)
}

type storeRateStore struct {
	store cache.Store
}

// NewMemoryRateStore constructs a process-local rate store.
func NewMemoryRateStore() RateStore {
	return &storeRateStore{store: cache.NewMemoryStore(memoryRateStoreItems)}
}

// NewStoreRateStore counts requests in a shared cache store such as Redis or the
// SQL database, so limits hold across instances.
func NewStoreRateStore(store cache.Store) RateStore {
	if store == nil {
		return NewMemoryRateStore()
	}
	return &storeRateStore{store: store}
}

func (s *storeRateStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}
	count, ttl, err := s.store.IncrementWithTTL(ctx, cache.RateLimitPrefix+key, window)
	return int(count), ttl, err
}
