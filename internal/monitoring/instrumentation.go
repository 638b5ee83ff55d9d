package monitoring

import (
	"strings"
	"time"
)

// Cache tiers reported by RecordCacheLookup.
const (
	CacheTierPrimary = "primary"
	CacheTierMemory  = "memory"
	CacheTierMiss    = "miss"
)

// ObserveAPILatency captures the HTTP request latency for the supplied route.
func ObserveAPILatency(method, path, status string, duration time.Duration) {
	module := activeModule()
	if module == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "UNKNOWN"
	}
	path = sanitizePath(path)
	if path == "" {
		path = "unknown"
	}
	status = strings.TrimSpace(status)
	if status == "" {
		status = "unknown"
	}
	module.metrics.apiLatency.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordExtraction records the outcome of one extraction request. Source is the
// layer that produced the recipe, or the error code when extraction failed.
func RecordExtraction(platform, source, result string, fromCache bool, duration time.Duration) {
	module := activeModule()
	if module == nil {
		return
	}
	platform = normalizeLabel(platform)
	source = normalizeLabel(source)
	result = normalizeLabel(result)

	module.metrics.extractions.WithLabelValues(platform, source, result).Inc()
	observeDuration(module.metrics.extractionDuration.WithLabelValues(platform), duration)
	module.stats.platformEntry(platform).record(result, source, fromCache, duration)
	module.stats.recordExtraction(result, fromCache)
}

// RecordCacheLookup counts which cache tier answered a lookup.
func RecordCacheLookup(tier string) {
	module := activeModule()
	if module == nil {
		return
	}
	tier = normalizeLabel(tier)
	module.metrics.cacheLookups.WithLabelValues(tier).Inc()
	module.stats.recordCacheLookup(tier)
}

// RecordCacheError counts a failed primary cache operation.
func RecordCacheError(operation string) {
	module := activeModule()
	if module == nil {
		return
	}
	module.metrics.cacheErrors.WithLabelValues(normalizeLabel(operation)).Inc()
	module.stats.cacheErrors.Add(1)
}

// RecordGeminiCall captures the outcome and latency of a model request.
func RecordGeminiCall(operation, result, message string, duration time.Duration) {
	module := activeModule()
	if module == nil {
		return
	}
	operation = normalizeLabel(operation)
	result = normalizeLabel(result)
	module.metrics.geminiCalls.WithLabelValues(operation, result).Inc()
	observeDuration(module.metrics.geminiLatency.WithLabelValues(operation), duration)
	module.stats.recordGemini(result, strings.TrimSpace(message))
}

// RecordVideoDownload counts yt-dlp download attempts.
func RecordVideoDownload(platform, result string) {
	module := activeModule()
	if module == nil {
		return
	}
	module.metrics.videoDownloads.WithLabelValues(normalizeLabel(platform), normalizeLabel(result)).Inc()
}

// RecordBreakerState publishes the current state of a named circuit breaker.
func RecordBreakerState(name, from, to string) {
	module := activeModule()
	if module == nil {
		return
	}
	name = normalizeLabel(name)
	to = normalizeLabel(to)
	module.metrics.breakerState.WithLabelValues(name).Set(breakerStateValue(to))
	if from != "" {
		module.metrics.breakerTransitions.WithLabelValues(name, normalizeLabel(from), to).Inc()
	}
	module.stats.recordBreaker(name, to)
}

// RecordRateLimited counts a request rejected by the rate limiter.
func RecordRateLimited(path string) {
	module := activeModule()
	if module == nil {
		return
	}
	path = sanitizePath(path)
	if path == "" {
		path = "unknown"
	}
	module.metrics.rateLimited.WithLabelValues(path).Inc()
}

// RecordMaintenanceRun records the completion of a maintenance job.
func RecordMaintenanceRun(job, result, message string, duration time.Duration) {
	module := activeModule()
	if module == nil {
		return
	}
	jobID := normalizeLabel(job)
	result = normalizeLabel(result)
	module.metrics.maintenanceRuns.WithLabelValues(jobID, result).Inc()
	observeDuration(module.metrics.maintenanceDuration.WithLabelValues(jobID), duration)
	if result == "success" {
		module.metrics.maintenanceLastRun.WithLabelValues(jobID).Set(float64(time.Now().Unix()))
	}
	stats := module.stats.maintenanceEntry(jobID)
	stats.record(result, strings.TrimSpace(message), duration)
}

func breakerStateValue(state string) float64 {
	switch state {
	case "closed":
		return 0
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}

func sanitizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "/" {
		return "root"
	}
	path = strings.Trim(path, "/")
	return strings.ReplaceAll(path, " ", "_")
}
