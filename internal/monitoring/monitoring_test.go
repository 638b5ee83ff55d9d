package monitoring_test

import (
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/recipekeeper/internal/monitoring"
	"github.com/charlesng35/recipekeeper/internal/monitoring/checks"
)

func setupModule(t *testing.T) *monitoring.Module {
	t.Helper()

	mod, err := monitoring.NewModule(monitoring.Options{})
	require.NoError(t, err)
	monitoring.SetModule(mod)
	return mod
}

func TestSummaryAggregatesMetrics(t *testing.T) {
	setupModule(t)

	monitoring.RecordExtraction("youtube", "description", "success", false, 2*time.Second)
	monitoring.RecordExtraction("youtube", "cache", "success", true, 10*time.Millisecond)
	monitoring.RecordExtraction("website", "no_recipe_found", "failure", false, time.Second)
	monitoring.RecordCacheLookup(monitoring.CacheTierPrimary)
	monitoring.RecordCacheLookup(monitoring.CacheTierMemory)
	monitoring.RecordCacheLookup(monitoring.CacheTierMiss)
	monitoring.RecordCacheError("get")
	monitoring.RecordGeminiCall("text", "success", "", time.Second)
	monitoring.RecordGeminiCall("video", "quota_exceeded", "429 RESOURCE_EXHAUSTED", time.Second)
	monitoring.RecordBreakerState("gemini", "", "closed")
	monitoring.RecordBreakerState("gemini", "closed", "open")
	monitoring.RecordMaintenanceRun("temp_sweep", "success", "", time.Second)

	summary := monitoring.Snapshot()
	require.Equal(t, uint64(2), summary.Extractions.Success)
	require.Equal(t, uint64(1), summary.Extractions.Failure)
	require.Equal(t, uint64(1), summary.Extractions.FromCache)
	require.Len(t, summary.Platforms, 2)
	require.Equal(t, uint64(1), summary.Cache.PrimaryHits)
	require.Equal(t, uint64(1), summary.Cache.MemoryHits)
	require.Equal(t, uint64(1), summary.Cache.Misses)
	require.Equal(t, uint64(1), summary.Cache.Errors)
	require.Equal(t, uint64(1), summary.Gemini.Success)
	require.Equal(t, uint64(1), summary.Gemini.QuotaExceeded)
	require.Equal(t, "429 RESOURCE_EXHAUSTED", summary.Gemini.LastError)
	require.Len(t, summary.Breakers, 1)
	require.Equal(t, "open", summary.Breakers[0].State)
	require.Equal(t, uint64(1), summary.Breakers[0].Trips)
	require.NotEmpty(t, summary.Maintenance.Jobs)
}

func TestHandlerServesMetrics(t *testing.T) {
	mod := setupModule(t)
	monitoring.ObserveAPILatency("post", "/api/extract-recipe", "200", 150*time.Millisecond)
	monitoring.RecordRateLimited("/api/extract-recipe")

	rec := httptest.NewRecorder()
	mod.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "recipekeeper_api_latency_seconds")
	require.Contains(t, string(body), `path="api/extract-recipe"`)
	require.Contains(t, string(body), "recipekeeper_rate_limited_requests_total")
}

func TestHealthManagerEvaluate(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager(0)
	manager.RegisterReadiness(monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	manager.RegisterReadiness(monitoring.NewCheck("redis", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "connection refused"}
	}))

	report := manager.EvaluateReadiness(context.Background())
	require.False(t, report.Success)
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Len(t, report.Checks, 2)
}

func TestHealthManagerDegradedStillServes(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager(0)
	manager.RegisterReadiness(monitoring.NewCheck("cache", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "using memory fallback"}
	}))
	manager.RegisterReadiness(monitoring.NewCheck("yt-dlp", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))

	report := manager.EvaluateReadiness(context.Background())
	require.True(t, report.Success)
	require.Equal(t, monitoring.StatusDegraded, report.Status)
	require.Equal(t, "cache", report.Checks[0].Component)
	require.Equal(t, "yt-dlp", report.Checks[1].Component)
	require.False(t, report.CheckedAt.IsZero())
}

func TestHealthManagerBoundsSlowAndPanickingChecks(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager(20 * time.Millisecond)
	manager.RegisterReadiness(monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		<-ctx.Done()
		return monitoring.ResultFromError("database", ctx.Err(), 0)
	}))
	manager.RegisterReadiness(monitoring.NewCheck("gemini", func(ctx context.Context) monitoring.ProbeResult {
		panic("boom")
	}))

	report := manager.EvaluateReadiness(context.Background())
	require.False(t, report.Success)
	require.Equal(t, monitoring.StatusDegraded, report.Checks[0].Status)
	require.Equal(t, monitoring.StatusDown, report.Checks[1].Status)
	require.Contains(t, report.Checks[1].Details, "boom")
}

func TestMaintenanceCheckReportsFailures(t *testing.T) {
	setupModule(t)

	monitoring.RecordMaintenanceRun("temp_sweep", "success", "", time.Second)
	monitoring.RecordMaintenanceRun("history_retention", "failure", "timeout", time.Second)

	result := checks.Maintenance(nil).Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)
	require.Contains(t, result.Details, "history_retention")
	require.Contains(t, result.Details, "timeout")
}

func TestMaintenanceCheckUsesPerJobWindows(t *testing.T) {
	setupModule(t)
	monitoring.RecordMaintenanceRun("history_retention", "success", "", time.Millisecond)
	monitoring.RecordMaintenanceRun("temp_sweep", "success", "", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	fresh := checks.Maintenance(map[string]time.Duration{
		"history_retention": 48 * time.Hour,
		"temp_sweep":        30 * time.Minute,
	}).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, fresh.Status)

	stale := checks.Maintenance(map[string]time.Duration{
		"history_retention": time.Millisecond,
		"temp_sweep":        30 * time.Minute,
	})
	result := stale.Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)
	require.Contains(t, result.Details, "history_retention")
	require.NotContains(t, result.Details, "temp_sweep")

	manager := monitoring.NewHealthManager(0)
	manager.RegisterReadiness(stale)
	report := manager.EvaluateReadiness(context.Background())
	require.True(t, report.Success)
	require.True(t, manager.EvaluateLiveness(context.Background()).Success)
}

func TestTempDirCheck(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.Equal(t, monitoring.StatusUp, checks.TempDir(dir).Run(context.Background()).Status)

	missing := filepath.Join(dir, "missing")
	require.Equal(t, monitoring.StatusDown, checks.TempDir(missing).Run(context.Background()).Status)

	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	require.Equal(t, monitoring.StatusDown, checks.TempDir(file).Run(context.Background()).Status)
}

func TestBinaryAndGeminiChecks(t *testing.T) {
	t.Parallel()

	result := checks.Binary("yt_dlp", "definitely-not-a-real-binary-xyz").Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)

	require.Equal(t, monitoring.StatusDown, checks.Gemini(false).Run(context.Background()).Status)
	require.Equal(t, monitoring.StatusUp, checks.Gemini(true).Run(context.Background()).Status)
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestCacheCheckDegradesWhenPrimaryFails(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	require.Equal(t, monitoring.StatusUp, checks.Cache("redis", stubPinger{}, true, time.Second).Run(ctx).Status)
	require.Equal(t, monitoring.StatusUp, checks.Cache("redis", nil, false, time.Second).Run(ctx).Status)

	result := checks.Cache("redis", stubPinger{err: io.ErrUnexpectedEOF}, true, time.Second).Run(ctx)
	require.Equal(t, monitoring.StatusDegraded, result.Status)
	require.Contains(t, result.Details, "memory fallback")
	require.Equal(t, "redis", result.Component)
}
