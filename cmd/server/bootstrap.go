package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/recipekeeper/internal/api"
	"github.com/charlesng35/recipekeeper/internal/app"
	"github.com/charlesng35/recipekeeper/internal/app/maintenance"
	"github.com/charlesng35/recipekeeper/internal/cache"
	"github.com/charlesng35/recipekeeper/internal/database"
	"github.com/charlesng35/recipekeeper/internal/extractor"
	"github.com/charlesng35/recipekeeper/internal/middleware"
	"github.com/charlesng35/recipekeeper/internal/monitoring"
	"github.com/charlesng35/recipekeeper/internal/monitoring/checks"
	"github.com/charlesng35/recipekeeper/internal/scraper"
	"github.com/charlesng35/recipekeeper/internal/services"
	"github.com/charlesng35/recipekeeper/internal/video"
)

const (
	cacheDriverRedis    = "redis"
	cacheDriverDatabase = "database"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB         *gorm.DB
	Redis      *cache.RedisStore
	Cache      *cache.RecipeCache
	History    *services.HistoryService
	Extraction *services.ExtractionService
	Monitoring *monitoring.Module
	Cleaner    *maintenance.Cleaner
	RateStore  middleware.RateStore
	Router     *gin.Engine
}

// bootstrapOptions lets tests replace external dependencies.
type bootstrapOptions struct {
	model  extractor.Model
	runner video.Runner
}

// bootstrapRuntime initialises the database, caches, extraction pipeline, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger, opts bootstrapOptions) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			if shutdownErr := stack.Shutdown(context.Background(), log); shutdownErr != nil {
				log.Warn("partial bootstrap cleanup failed", zap.Error(shutdownErr))
			}
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.Monitoring, err = monitoring.NewModule(monitoring.Options{})
	if err != nil {
		return nil, fmt.Errorf("initialise monitoring: %w", err)
	}
	monitoring.SetModule(stack.Monitoring)

	if cfg.History.Enabled || cfg.Cache.Driver == cacheDriverDatabase {
		stack.DB, err = initialiseDatabase(cfg)
		if err != nil {
			return nil, err
		}
	}

	primary, backend := stack.primaryStore(ctx, cfg, log)
	stack.Cache = cache.NewRecipeCache(primary, cfg.Cache.RecipeCacheOptions(backend))
	stack.RateStore = middleware.NewStoreRateStore(primary)

	model := opts.model
	if model == nil {
		model, err = extractor.NewGeminiModel(ctx, extractor.GeminiConfig{
			APIKey:       cfg.Gemini.APIKey,
			Model:        cfg.Gemini.Model,
			PollInterval: cfg.Gemini.PollInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("initialise gemini: %w", err)
		}
	}
	recipes, err := extractor.New(model, extractor.Config{
		RequestsPerMinute: cfg.Gemini.RequestsPerMinute,
		Timeout:           cfg.Gemini.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise extractor: %w", err)
	}

	var videoOpts []video.Option
	if opts.runner != nil {
		videoOpts = append(videoOpts, video.WithRunner(opts.runner))
	}
	videos, err := video.NewProcessor(video.Config{
		Binary:          cfg.Video.Binary,
		TempDir:         cfg.Video.TempDir,
		MaxSizeMB:       cfg.Video.MaxSizeMB,
		DownloadTimeout: cfg.Video.DownloadTimeout,
		MetadataTimeout: cfg.Video.MetadataTimeout,
		CookiesPath:     cfg.Video.CookiesPath,
	}, videoOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise video processor: %w", err)
	}

	fetcher := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:      cfg.Scraper.Timeout,
		MaxBodyBytes: cfg.Scraper.MaxBodyBytes,
		MaxRetries:   cfg.Scraper.MaxRetries,
		UserAgent:    cfg.Scraper.UserAgent,
	}, nil)
	websites := scraper.New(fetcher, recipes)

	var extractionOpts []services.ExtractionOption
	if cfg.History.Enabled && stack.DB != nil {
		stack.History, err = services.NewHistoryService(stack.DB)
		if err != nil {
			return nil, fmt.Errorf("initialise history service: %w", err)
		}
		extractionOpts = append(extractionOpts, services.WithHistory(stack.History))
	}

	stack.Extraction, err = services.NewExtractionService(videos, recipes, websites, stack.Cache, extractionOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise extraction service: %w", err)
	}

	stack.Cleaner = maintenance.NewCleaner(cfg.Video.TempDir, stack.cleanerOptions(cfg)...)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.registerHealthChecks(cfg, videos)

	deps := api.Dependencies{
		Config:     cfg,
		Extraction: stack.Extraction,
		Cache:      stack.Cache,
		Monitoring: stack.Monitoring,
		RateStore:  stack.RateStore,
	}
	if stack.History != nil {
		deps.History = stack.History
	}
	stack.Router, err = api.NewRouter(deps)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// primaryStore resolves the configured cache driver. Redis that cannot be reached
// leaves the cache on process memory.
func (s *runtimeStack) primaryStore(ctx context.Context, cfg *app.Config, log *zap.Logger) (cache.Store, string) {
	switch cfg.Cache.Driver {
	case cacheDriverRedis:
		client, err := cache.NewRedisClient(ctx, cfg.Cache.RedisClientConfig())
		if err != nil {
			log.Warn("redis unavailable; falling back to in-memory cache", zap.Error(err))
			return nil, cache.BackendMemory
		}
		s.Redis = cache.NewRedisStore(client)
		log.Info("redis connected")
		return s.Redis, cacheDriverRedis
	case cacheDriverDatabase:
		if s.DB != nil {
			return cache.NewDatabaseStore(s.DB), cacheDriverDatabase
		}
	}
	return nil, cache.BackendMemory
}

func (s *runtimeStack) cleanerOptions(cfg *app.Config) []maintenance.Option {
	opts := []maintenance.Option{
		maintenance.WithTempMaxAge(cfg.Maintenance.TempMaxAge),
		maintenance.WithTempSweepSchedule(cfg.Maintenance.TempSweepSchedule),
		maintenance.WithCachePurgeSchedule(cfg.Maintenance.CachePurgeSchedule),
		maintenance.WithHistorySchedule(cfg.Maintenance.HistorySchedule),
		maintenance.WithMemoryCache(s.Cache.Memory()),
	}
	if durable, ok := s.Cache.Primary().(*cache.DatabaseStore); ok {
		opts = append(opts, maintenance.WithDatabaseCache(durable))
	}
	if s.History != nil {
		opts = append(opts, maintenance.WithHistory(s.History, cfg.History.RetentionDays))
	}
	return opts
}

func (s *runtimeStack) registerHealthChecks(cfg *app.Config, videos *video.Processor) {
	health := s.Monitoring.Health()

	var primary checks.CachePinger
	if store := s.Cache.Primary(); store != nil {
		primary = store
	}
	health.RegisterReadiness(checks.Cache("cache", primary, cfg.Cache.Enabled, cfg.Cache.Redis.Timeout))
	if s.DB != nil {
		health.RegisterReadiness(checks.Database(s.DB, 0))
	}
	health.RegisterReadiness(checks.TempDir(videos.TempDir()))
	health.RegisterReadiness(checks.Binary("yt-dlp", videos.Binary()))
	health.RegisterReadiness(checks.Gemini(cfg.Gemini.APIKey != ""))
	if s.Cleaner != nil {
		health.RegisterReadiness(checks.Maintenance(s.Cleaner.StalenessWindows()))
	}
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) error {
	if s == nil {
		return nil
	}

	var errs error
	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			<-stopCtx.Done()
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.Redis != nil {
		errs = multierr.Append(errs, wrapShutdown("redis", s.Redis.Close()))
	}

	if s.DB != nil {
		errs = multierr.Append(errs, wrapShutdown("database", database.Close(s.DB)))
	}
	return errs
}

func wrapShutdown(component string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("close %s: %w", component, err)
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg.Database.ConnectionConfig())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.MigrateAll(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}
