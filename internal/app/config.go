package app

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Config represents the runtime configuration for the recipe extraction backend.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Gemini      GeminiConfig      `mapstructure:"gemini"`
	Video       VideoConfig       `mapstructure:"video"`
	Scraper     ScraperConfig     `mapstructure:"scraper"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Database    DatabaseConfig    `mapstructure:"database"`
	History     HistoryConfig     `mapstructure:"history"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host        string          `mapstructure:"host"`
	Port        int             `mapstructure:"port"`
	LogLevel    string          `mapstructure:"log_level"`
	LogFormat   string          `mapstructure:"log_format"`
	CORSOrigins []string        `mapstructure:"cors_origins"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig bounds requests per client IP.
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// GeminiConfig configures the model client.
type GeminiConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Timeout           time.Duration `mapstructure:"timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
}

// VideoConfig configures yt-dlp.
type VideoConfig struct {
	Binary          string        `mapstructure:"binary"`
	TempDir         string        `mapstructure:"temp_dir"`
	MaxSizeMB       int           `mapstructure:"max_size_mb"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	MetadataTimeout time.Duration `mapstructure:"metadata_timeout"`
	CookiesPath     string        `mapstructure:"cookies_path"`
}

// ScraperConfig configures recipe page fetching.
type ScraperConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	MaxRetries   int           `mapstructure:"max_retries"`
	UserAgent    string        `mapstructure:"user_agent"`
}

// CacheConfig describes the recipe cache.
type CacheConfig struct {
	Enabled    bool             `mapstructure:"enabled"`
	Driver     string           `mapstructure:"driver"`
	TTLSeconds int              `mapstructure:"ttl_seconds"`
	MaxItems   int              `mapstructure:"max_items"`
	Redis      RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	URL      string        `mapstructure:"url"`
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string            `mapstructure:"host"`
	Port     int               `mapstructure:"port"`
	Database string            `mapstructure:"database"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	Options  map[string]string `mapstructure:"options"`
}

// HistoryConfig controls extraction history persistence.
type HistoryConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	RetentionDays int  `mapstructure:"retention_days"`
}

// MaintenanceConfig schedules background jobs.
type MaintenanceConfig struct {
	TempSweepSchedule  string        `mapstructure:"temp_sweep_schedule"`
	TempMaxAge         time.Duration `mapstructure:"temp_max_age"`
	CachePurgeSchedule string        `mapstructure:"cache_purge_schedule"`
	HistorySchedule    string        `mapstructure:"history_schedule"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// legacyEnv maps config keys to the unprefixed variables older deployments set.
var legacyEnv = map[string]string{
	"gemini.api_key":         "GEMINI_API_KEY",
	"server.host":            "HOST",
	"server.port":            "PORT",
	"server.cors_origins":    "CORS_ORIGINS",
	"video.temp_dir":         "TEMP_DIR",
	"video.max_size_mb":      "MAX_VIDEO_SIZE_MB",
	"video.download_timeout": "VIDEO_DOWNLOAD_TIMEOUT",
	"video.cookies_path":     "YOUTUBE_COOKIES_PATH",
	"cache.enabled":          "CACHE_ENABLED",
	"cache.ttl_seconds":      "CACHE_TTL_SECONDS",
	"cache.max_items":        "CACHE_MAX_ITEMS",
	"cache.redis.url":        "REDIS_URL",
}

const envPrefix = "RECIPEKEEPER"

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("config: bind env %s: %w", legacy, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

// Validate reports configuration that would prevent the service from working.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Gemini.APIKey) == "" {
		problems = append(problems, "gemini.api_key (GEMINI_API_KEY) is required")
	}
	switch strings.ToLower(strings.TrimSpace(c.Cache.Driver)) {
	case "redis", "database", "memory":
	default:
		problems = append(problems, fmt.Sprintf("cache.driver %q is not one of redis, database, memory", c.Cache.Driver))
	}

	positive := map[string]int64{
		"server.port":                int64(c.Server.Port),
		"gemini.requests_per_minute": int64(c.Gemini.RequestsPerMinute),
		"video.max_size_mb":          int64(c.Video.MaxSizeMB),
		"video.download_timeout":     int64(c.Video.DownloadTimeout),
		"scraper.timeout":            int64(c.Scraper.Timeout),
		"scraper.max_body_bytes":     c.Scraper.MaxBodyBytes,
		"cache.ttl_seconds":          int64(c.Cache.TTLSeconds),
		"cache.max_items":            int64(c.Cache.MaxItems),
	}
	for _, key := range sortedKeys(positive) {
		if positive[key] <= 0 {
			problems = append(problems, key+" must be positive")
		}
	}
	if c.Server.RateLimit.Enabled && (c.Server.RateLimit.Requests <= 0 || c.Server.RateLimit.Window <= 0) {
		problems = append(problems, "server.rate_limit requires positive requests and window")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: invalid: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Address returns the listen address.
func (s ServerConfig) Address() string {
	host := strings.TrimSpace(s.Host)
	return fmt.Sprintf("%s:%d", host, s.Port)
}

// CacheTTL converts the configured seconds into a duration.
func (c CacheConfig) CacheTTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// MaxVideoBytes converts the configured limit into bytes.
func (v VideoConfig) MaxVideoBytes() int64 {
	return int64(v.MaxSizeMB) * 1024 * 1024
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.rate_limit.requests", 30)
	v.SetDefault("server.rate_limit.window", "1m")

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.requests_per_minute", 15)
	v.SetDefault("gemini.timeout", "2m")
	v.SetDefault("gemini.poll_interval", "1s")

	v.SetDefault("video.binary", "yt-dlp")
	v.SetDefault("video.temp_dir", "/tmp/recipe-keeper")
	v.SetDefault("video.max_size_mb", 100)
	v.SetDefault("video.download_timeout", "60s")
	v.SetDefault("video.metadata_timeout", "30s")
	v.SetDefault("video.cookies_path", "")

	v.SetDefault("scraper.timeout", "10s")
	v.SetDefault("scraper.max_body_bytes", 5*1024*1024)
	v.SetDefault("scraper.max_retries", 3)
	v.SetDefault("scraper.user_agent", "")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.driver", "redis")
	v.SetDefault("cache.ttl_seconds", 86400)
	v.SetDefault("cache.max_items", 1000)
	v.SetDefault("cache.redis.url", "")
	v.SetDefault("cache.redis.address", "")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "3s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/recipekeeper.sqlite")
	v.SetDefault("database.dsn", "")

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.retention_days", 30)

	v.SetDefault("maintenance.temp_sweep_schedule", "@every 15m")
	v.SetDefault("maintenance.temp_max_age", "1h")
	v.SetDefault("maintenance.cache_purge_schedule", "@every 10m")
	v.SetDefault("maintenance.history_schedule", "@daily")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			secondsToDurationHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// secondsToDurationHookFunc accepts bare integers such as VIDEO_DOWNLOAD_TIMEOUT=60
// as a number of seconds.
func secondsToDurationHookFunc() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		durationType := reflect.TypeOf(time.Duration(0))
		if to != durationType || from == durationType {
			return data, nil
		}
		switch from.Kind() {
		case reflect.String:
			raw := strings.TrimSpace(data.(string))
			if seconds, err := strconv.ParseInt(raw, 10, 64); err == nil {
				return time.Duration(seconds) * time.Second, nil
			}
			return data, nil
		case reflect.Int, reflect.Int32, reflect.Int64:
			return time.Duration(reflect.ValueOf(data).Int()) * time.Second, nil
		default:
			return data, nil
		}
	}
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
