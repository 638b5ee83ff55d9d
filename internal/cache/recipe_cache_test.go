package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/recipekeeper/internal/breaker"
	"github.com/charlesng35/recipekeeper/internal/models"
)

var errStoreDown = errors.New("connection refused")

// failingStore simulates an unreachable primary.
type failingStore struct{}

func (failingStore) IncrementWithTTL(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errStoreDown
}
func (failingStore) Set(context.Context, string, []byte, time.Duration) error { return errStoreDown }
func (failingStore) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, errStoreDown }
func (failingStore) Delete(context.Context, ...string) (int64, error)         { return 0, errStoreDown }
func (failingStore) Clear(context.Context, string) (int64, error)             { return 0, errStoreDown }
func (failingStore) Len(context.Context, string) (int64, error)               { return 0, errStoreDown }
func (failingStore) Ping(context.Context) error                               { return errStoreDown }

// switchableStore is a memory-backed primary that can be taken offline.
type switchableStore struct {
	*MemoryStore
	down atomic.Bool
}

func (s *switchableStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.down.Load() {
		return nil, false, errStoreDown
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *switchableStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	if s.down.Load() {
		return 0, errStoreDown
	}
	return s.MemoryStore.Delete(ctx, keys...)
}

func (s *switchableStore) Clear(ctx context.Context, prefix string) (int64, error) {
	if s.down.Load() {
		return 0, errStoreDown
	}
	return s.MemoryStore.Clear(ctx, prefix)
}

func sampleRecipe() models.Recipe {
	return models.Recipe{
		Title:       "Pancakes",
		Ingredients: []string{"2 eggs", "1 cup flour"},
		Steps:       []string{"Mix", "Fry"},
		SourceURL:   "https://youtu.be/dQw4w9WgXcQ",
		Platform:    "youtube",
		Language:    "en",
	}
}

func TestRecipeCacheRedisRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, server := newMiniredisStore(t)
	c := NewRecipeCache(store, Options{Enabled: true, Backend: "redis", TTL: time.Hour, MaxItems: 10})

	_, ok := c.Get(ctx, "0123456789abcdef")
	require.False(t, ok)

	written, err := c.Set(ctx, "0123456789abcdef", sampleRecipe(), "youtube:dQw4w9WgXcQ", "youtube")
	require.NoError(t, err)
	require.NotNil(t, written)
	require.True(t, server.Exists(RecipePrefix+"0123456789abcdef"))

	entry, ok := c.Get(ctx, "0123456789abcdef")
	require.True(t, ok)
	require.Equal(t, sampleRecipe(), entry.Recipe)
	require.Equal(t, "youtube:dQw4w9WgXcQ", entry.CanonicalURL)
	require.Equal(t, "youtube", entry.Platform)
	require.False(t, entry.CachedAt.IsZero())

	stats := c.Stats(ctx)
	require.True(t, stats.PrimaryAvailable)
	require.Equal(t, "redis", stats.Backend)
	require.Equal(t, int64(1), stats.PrimarySize)
	require.Equal(t, uint64(1), stats.PrimaryHits)
	require.Equal(t, uint64(1), stats.Misses)
	require.InDelta(t, 0.5, stats.HitRate, 0.0001)
	require.Equal(t, int64(3600), stats.TTLSeconds)

	deleted, err := c.Delete(ctx, "0123456789abcdef")
	require.NoError(t, err)
	require.True(t, deleted)
	_, ok = c.Get(ctx, "0123456789abcdef")
	require.False(t, ok)

	deleted, err = c.Delete(ctx, "0123456789abcdef")
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestRecipeCacheExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	store, server := newMiniredisStore(t)
	c := NewRecipeCache(store, Options{Enabled: true, Backend: "redis", TTL: time.Minute})

	_, err := c.Set(ctx, "aaaaaaaaaaaaaaaa", sampleRecipe(), "youtube:x", "youtube")
	require.NoError(t, err)
	server.FastForward(2 * time.Minute)

	_, ok := c.Get(ctx, "aaaaaaaaaaaaaaaa")
	require.False(t, ok)
}

func TestRecipeCacheFallsBackToMemory(t *testing.T) {
	ctx := context.Background()
	c := NewRecipeCache(failingStore{}, Options{
		Enabled:  true,
		Backend:  "redis",
		TTL:      time.Hour,
		MaxItems: 10,
		Breaker:  breaker.Settings{Name: "cache_test_fallback", MinRequests: 100},
	})

	_, err := c.Set(ctx, "bbbbbbbbbbbbbbbb", sampleRecipe(), "website:example.com/r", "website")
	require.NoError(t, err)

	entry, ok := c.Get(ctx, "bbbbbbbbbbbbbbbb")
	require.True(t, ok)
	require.Equal(t, "Pancakes", entry.Recipe.Title)

	stats := c.Stats(ctx)
	require.False(t, stats.PrimaryAvailable)
	require.Equal(t, int64(1), stats.MemorySize)
	require.Equal(t, uint64(1), stats.MemoryHits)
	require.Equal(t, uint64(2), stats.PrimaryErrors)

	cleared, err := c.Clear(ctx)
	require.Error(t, err)
	require.Equal(t, int64(1), cleared)
	_, ok = c.Get(ctx, "bbbbbbbbbbbbbbbb")
	require.False(t, ok)
}

func TestRecipeCacheDeleteReportsUnreachablePrimary(t *testing.T) {
	ctx := context.Background()
	primary := &switchableStore{MemoryStore: NewMemoryStore(0)}
	c := NewRecipeCache(primary, Options{
		Enabled: true,
		Backend: "redis",
		TTL:     time.Hour,
		Breaker: breaker.Settings{Name: "cache_test_delete", MinRequests: 1, Timeout: time.Hour},
	})

	const key = "cccccccccccccccc"
	_, err := c.Set(ctx, key, sampleRecipe(), "website:example.com/c", "website")
	require.NoError(t, err)

	primary.down.Store(true)
	_, ok := c.Get(ctx, key)
	require.False(t, ok)

	// The breaker is open now: neither operation may pretend the entry is gone.
	_, err = c.Delete(ctx, key)
	require.ErrorIs(t, err, ErrPrimaryUnavailable)
	require.ErrorIs(t, err, breaker.ErrOpen)
	_, err = c.Clear(ctx)
	require.ErrorIs(t, err, ErrPrimaryUnavailable)

	primary.down.Store(false)
	_, found, err := primary.MemoryStore.Get(ctx, RecipePrefix+key)
	require.NoError(t, err)
	require.True(t, found)
}

func TestRecipeCacheMemoryOnly(t *testing.T) {
	ctx := context.Background()
	c := NewRecipeCache(nil, Options{Enabled: true, Backend: "redis", TTL: time.Hour, MaxItems: 2})

	for _, key := range []string{"1111111111111111", "2222222222222222", "3333333333333333"} {
		_, err := c.Set(ctx, key, sampleRecipe(), "youtube:"+key, "youtube")
		require.NoError(t, err)
	}

	stats := c.Stats(ctx)
	require.Equal(t, BackendMemory, stats.Backend)
	require.Equal(t, 2, stats.MaxItems)
	require.LessOrEqual(t, stats.MemorySize, int64(2))
	require.NoError(t, c.Ping(ctx))
}

func TestRecipeCacheDisabled(t *testing.T) {
	ctx := context.Background()
	store, server := newMiniredisStore(t)
	c := NewRecipeCache(store, Options{Enabled: false, Backend: "redis"})

	entry, err := c.Set(ctx, "cccccccccccccccc", sampleRecipe(), "youtube:x", "youtube")
	require.NoError(t, err)
	require.Nil(t, entry)
	require.False(t, server.Exists(RecipePrefix+"cccccccccccccccc"))

	_, ok := c.Get(ctx, "cccccccccccccccc")
	require.False(t, ok)
	require.False(t, c.Stats(ctx).Enabled)
}

func TestRecipeCacheDropsCorruptEntries(t *testing.T) {
	ctx := context.Background()
	store, server := newMiniredisStore(t)
	c := NewRecipeCache(store, Options{Enabled: true, Backend: "redis", TTL: time.Hour})

	require.NoError(t, server.Set(RecipePrefix+"dddddddddddddddd", "{not json"))
	_, ok := c.Get(ctx, "dddddddddddddddd")
	require.False(t, ok)
	require.False(t, server.Exists(RecipePrefix+"dddddddddddddddd"))
}
