package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/recipekeeper/internal/app"
	"github.com/charlesng35/recipekeeper/internal/handlers"
	"github.com/charlesng35/recipekeeper/internal/middleware"
	"github.com/charlesng35/recipekeeper/internal/monitoring"
)

// Dependencies are the services exposed over HTTP. History and Monitoring are
// optional; their routes are skipped when nil.
type Dependencies struct {
	Config     *app.Config
	Extraction handlers.ExtractionRunner
	Cache      handlers.CacheAdmin
	History    handlers.HistoryLister
	Monitoring *monitoring.Module
	RateStore  middleware.RateStore
}

// NewRouter builds the Gin engine, wires middleware and registers the API routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	cfg := deps.Config
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.Extraction == nil {
		return nil, fmt.Errorf("extraction service must be provided")
	}
	if deps.Cache == nil {
		return nil, fmt.Errorf("recipe cache must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORSOrigins...))
	if cfg.Server.RateLimit.Enabled {
		r.Use(middleware.RateLimit(deps.RateStore, cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window, unlimitedRoutes(cfg)...))
	}

	registerHealthRoutes(r, cfg, deps.Monitoring)
	registerMetricsRoute(r, cfg, deps.Monitoring)

	api := r.Group("/api")
	registerRecipeRoutes(api, handlers.NewRecipeHandler(deps.Extraction))
	registerCacheRoutes(api, handlers.NewCacheHandler(deps.Cache))
	if deps.History != nil {
		registerExtractionRoutes(api, handlers.NewExtractionsHandler(deps.History))
	}
	registerMonitoringRoutes(api, handlers.NewMonitoringHandler(deps.Monitoring, cfg))

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

// unlimitedRoutes lists the probe and scrape routes that load balancers and
// Prometheus poll on a fixed cadence.
func unlimitedRoutes(cfg *app.Config) []string {
	return []string{
		"/api/health",
		"/health",
		"/health/live",
		"/health/ready",
		"/api/health/live",
		"/api/health/ready",
		metricsEndpoint(cfg),
	}
}

func metricsEndpoint(cfg *app.Config) string {
	endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
	if endpoint == "" {
		endpoint = "/metrics"
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return endpoint
}

func registerMetricsRoute(r *gin.Engine, cfg *app.Config, mon *monitoring.Module) {
	if !cfg.Monitoring.Prometheus.Enabled || mon == nil {
		return
	}
	r.GET(metricsEndpoint(cfg), gin.WrapH(mon.Handler()))
}
