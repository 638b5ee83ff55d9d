package app

import (
	"fmt"
	"os"
	"strings"
)

// ApplyRuntimeDefaults resolves settings that depend on the environment rather than
// on configuration alone. It returns the keys it changed so callers can log them.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	changed := make(map[string]bool)

	cfg.Cache.Driver = strings.ToLower(strings.TrimSpace(cfg.Cache.Driver))
	if cfg.Cache.Driver == "redis" && !cfg.Cache.RedisConfigured() {
		cfg.Cache.Driver = "memory"
		changed["cache.driver"] = true
	}

	origins := make([]string, 0, len(cfg.Server.CORSOrigins))
	for _, origin := range cfg.Server.CORSOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
		changed["server.cors_origins"] = true
	}
	cfg.Server.CORSOrigins = origins

	if dir := strings.TrimSpace(cfg.Video.TempDir); dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create temp dir: %w", err)
			}
			changed["video.temp_dir"] = true
		}
	}

	if path := strings.TrimSpace(cfg.Video.CookiesPath); path != "" {
		if _, err := os.Stat(path); err != nil {
			cfg.Video.CookiesPath = ""
			changed["video.cookies_path"] = true
		}
	}

	return changed, nil
}
