package app

import (
	"strings"

	"github.com/charlesng35/recipekeeper/internal/cache"
)

// RedisClientConfig converts the application cache configuration into the cache package representation.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	return cache.RedisConfig{
		URL:      strings.TrimSpace(c.Redis.URL),
		Address:  strings.TrimSpace(c.Redis.Address),
		Username: strings.TrimSpace(c.Redis.Username),
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		TLS:      c.Redis.TLS,
		Timeout:  c.Redis.Timeout,
	}
}

// RedisConfigured reports whether any Redis endpoint was supplied.
func (c CacheConfig) RedisConfigured() bool {
	return strings.TrimSpace(c.Redis.URL) != "" || strings.TrimSpace(c.Redis.Address) != ""
}

// RecipeCacheOptions converts the configuration into cache manager options.
func (c CacheConfig) RecipeCacheOptions(backend string) cache.Options {
	return cache.Options{
		Enabled:  c.Enabled,
		Backend:  backend,
		TTL:      c.CacheTTL(),
		MaxItems: c.MaxItems,
	}
}
