package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/recipekeeper/internal/breaker"
	"github.com/charlesng35/recipekeeper/internal/models"
	"github.com/charlesng35/recipekeeper/internal/monitoring"
	"github.com/charlesng35/recipekeeper/pkg/logger"
)

// BackendMemory names the memory-only configuration in stats.
const BackendMemory = "memory"

// ErrPrimaryUnavailable is returned by Delete and Clear when the primary store could
// not be reached, including while its breaker is open. Memory was still purged, but
// the primary copy survives and will be served again once the store recovers.
var ErrPrimaryUnavailable = errors.New("cache: primary store unavailable")

// Entry is the payload stored for each cache key.
type Entry struct {
	Recipe       models.Recipe `json:"recipe"`
	CanonicalURL string        `json:"canonical_url"`
	Platform     string        `json:"platform"`
	CachedAt     time.Time     `json:"cached_at"`
}

// Stats reports cache effectiveness and sizing.
type Stats struct {
	Enabled          bool    `json:"enabled"`
	Backend          string  `json:"backend"`
	PrimaryAvailable bool    `json:"primary_available"`
	PrimarySize      int64   `json:"primary_size"`
	MemorySize       int64   `json:"memory_size"`
	PrimaryHits      uint64  `json:"primary_hits"`
	MemoryHits       uint64  `json:"memory_hits"`
	Misses           uint64  `json:"misses"`
	HitRate          float64 `json:"hit_rate"`
	PrimaryErrors    uint64  `json:"primary_errors"`
	TTLSeconds       int64   `json:"ttl_seconds"`
	MaxItems         int     `json:"max_items"`
}

// Options configure a RecipeCache.
type Options struct {
	Enabled  bool
	Backend  string
	TTL      time.Duration
	MaxItems int
	Breaker  breaker.Settings
}

// RecipeCache stores extracted recipes in a primary Store with an in-process
// fallback. Primary failures are counted and routed to the fallback.
type RecipeCache struct {
	primary Store
	memory  *MemoryStore
	breaker *breaker.Breaker
	backend string
	enabled bool
	ttl     time.Duration
	log     *zap.Logger
	now     func() time.Time

	primaryHits   atomic.Uint64
	memoryHits    atomic.Uint64
	misses        atomic.Uint64
	primaryErrors atomic.Uint64
}

// NewRecipeCache builds the cache manager. A nil primary runs memory-only.
func NewRecipeCache(primary Store, opts Options) *RecipeCache {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	backend := opts.Backend
	if primary == nil || backend == "" {
		backend = BackendMemory
	}
	if opts.Breaker.Name == "" {
		opts.Breaker.Name = "cache_" + backend
	}

	c := &RecipeCache{
		primary: primary,
		memory:  NewMemoryStore(opts.MaxItems),
		backend: backend,
		enabled: opts.Enabled,
		ttl:     opts.TTL,
		log:     logger.WithModule("cache"),
		now:     time.Now,
	}
	if primary != nil {
		c.breaker = breaker.New(opts.Breaker)
	}
	return c
}

// Enabled reports whether caching is switched on.
func (c *RecipeCache) Enabled() bool {
	return c != nil && c.enabled
}

// Memory exposes the fallback store for maintenance.
func (c *RecipeCache) Memory() *MemoryStore {
	return c.memory
}

// Primary exposes the primary store, nil when running memory-only.
func (c *RecipeCache) Primary() Store {
	return c.primary
}

// Get looks key up in the primary store, then in memory.
func (c *RecipeCache) Get(ctx context.Context, key string) (*Entry, bool) {
	if !c.Enabled() {
		return nil, false
	}
	storeKey := RecipePrefix + key

	if c.primary != nil {
		cached, err := breaker.Execute(c.breaker, func() (cachedValue, error) {
			data, ok, err := c.primary.Get(ctx, storeKey)
			return cachedValue{data: data, found: ok}, err
		})
		switch {
		case err != nil:
			c.primaryFailed("get", key, err)
		case cached.found:
			if entry, ok := c.decode(ctx, c.primary, storeKey, cached.data); ok {
				c.primaryHits.Add(1)
				monitoring.RecordCacheLookup(monitoring.CacheTierPrimary)
				c.log.Debug("cache hit", zap.String("key", key), zap.String("tier", c.backend))
				return entry, true
			}
		}
	}

	data, found, _ := c.memory.Get(ctx, storeKey)
	if found {
		if entry, ok := c.decode(ctx, c.memory, storeKey, data); ok {
			c.memoryHits.Add(1)
			monitoring.RecordCacheLookup(monitoring.CacheTierMemory)
			c.log.Debug("cache hit", zap.String("key", key), zap.String("tier", BackendMemory))
			return entry, true
		}
	}

	c.misses.Add(1)
	monitoring.RecordCacheLookup(monitoring.CacheTierMiss)
	return nil, false
}

// Set stores recipe under key. When the primary write fails the entry lands in memory.
func (c *RecipeCache) Set(ctx context.Context, key string, recipe models.Recipe, canonicalURL, platform string) (*Entry, error) {
	if !c.Enabled() {
		return nil, nil
	}
	entry := &Entry{
		Recipe:       recipe,
		CanonicalURL: canonicalURL,
		Platform:     platform,
		CachedAt:     c.now().UTC(),
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	storeKey := RecipePrefix + key

	if c.primary != nil {
		err := c.breaker.Run(func() error {
			return c.primary.Set(ctx, storeKey, payload, c.ttl)
		})
		if err == nil {
			c.log.Debug("cached recipe", zap.String("key", key), zap.String("tier", c.backend))
			return entry, nil
		}
		c.primaryFailed("set", key, err)
	}

	if err := c.memory.Set(ctx, storeKey, payload, c.ttl); err != nil {
		return nil, err
	}
	c.log.Debug("cached recipe", zap.String("key", key), zap.String("tier", BackendMemory))
	return entry, nil
}

// Delete removes key from both tiers and reports whether it existed in either.
// A primary failure is returned wrapped in ErrPrimaryUnavailable.
func (c *RecipeCache) Delete(ctx context.Context, key string) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	storeKey := RecipePrefix + key

	removed, _ := c.memory.Delete(ctx, storeKey)
	if c.primary == nil {
		return removed > 0, nil
	}

	err := c.breaker.Run(func() error {
		n, err := c.primary.Delete(ctx, storeKey)
		removed += n
		return err
	})
	if err != nil {
		c.primaryFailed("delete", key, err)
		return removed > 0, fmt.Errorf("%w: %w", ErrPrimaryUnavailable, err)
	}
	return removed > 0, nil
}

// Clear drops every cached recipe and returns how many entries were removed. A
// primary failure is returned wrapped in ErrPrimaryUnavailable alongside the
// memory count.
func (c *RecipeCache) Clear(ctx context.Context) (int64, error) {
	if !c.Enabled() {
		return 0, nil
	}

	removed, _ := c.memory.Clear(ctx, RecipePrefix)
	if c.primary != nil {
		err := c.breaker.Run(func() error {
			n, err := c.primary.Clear(ctx, RecipePrefix)
			removed += n
			return err
		})
		if err != nil {
			c.primaryFailed("clear", "*", err)
			return removed, fmt.Errorf("%w: %w", ErrPrimaryUnavailable, err)
		}
	}

	c.log.Info("cache cleared", zap.Int64("removed", removed))
	return removed, nil
}

// Stats reports counters and sizes for both tiers.
func (c *RecipeCache) Stats(ctx context.Context) Stats {
	stats := Stats{
		Enabled:       c.Enabled(),
		Backend:       c.backend,
		PrimaryHits:   c.primaryHits.Load(),
		MemoryHits:    c.memoryHits.Load(),
		Misses:        c.misses.Load(),
		PrimaryErrors: c.primaryErrors.Load(),
		TTLSeconds:    int64(c.ttl / time.Second),
		MaxItems:      c.memory.MaxItems(),
	}
	stats.MemorySize, _ = c.memory.Len(ctx, RecipePrefix)

	if c.primary != nil && !c.breaker.Open() {
		if size, err := c.primary.Len(ctx, RecipePrefix); err == nil {
			stats.PrimaryAvailable = true
			stats.PrimarySize = size
		}
	}

	if total := stats.PrimaryHits + stats.MemoryHits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.PrimaryHits+stats.MemoryHits) / float64(total)
	}
	return stats
}

// Ping probes the primary store. Memory-only caches always succeed.
func (c *RecipeCache) Ping(ctx context.Context) error {
	if c.primary == nil {
		return nil
	}
	return c.primary.Ping(ctx)
}

type cachedValue struct {
	data  []byte
	found bool
}

func (c *RecipeCache) primaryFailed(op, key string, err error) {
	if errors.Is(err, breaker.ErrOpen) {
		c.log.Debug("primary cache skipped while breaker open", zap.String("operation", op))
		return
	}
	c.primaryErrors.Add(1)
	monitoring.RecordCacheError(op)
	c.log.Warn("primary cache unavailable, using memory fallback",
		zap.String("operation", op),
		zap.String("key", key),
		zap.Error(err))
}

// decode parses a stored payload; corrupt entries are removed and treated as misses.
func (c *RecipeCache) decode(ctx context.Context, store Store, storeKey string, data []byte) (*Entry, bool) {
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.log.Warn("dropping corrupt cache entry", zap.String("key", storeKey), zap.Error(err))
		_, _ = store.Delete(ctx, storeKey)
		return nil, false
	}
	return &entry, true
}
