package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metricSet struct {
	apiLatency          *prometheus.HistogramVec
	extractions         *prometheus.CounterVec
	extractionDuration  *prometheus.HistogramVec
	cacheLookups        *prometheus.CounterVec
	cacheErrors         *prometheus.CounterVec
	geminiCalls         *prometheus.CounterVec
	geminiLatency       *prometheus.HistogramVec
	videoDownloads      *prometheus.CounterVec
	breakerState        *prometheus.GaugeVec
	breakerTransitions  *prometheus.CounterVec
	rateLimited         *prometheus.CounterVec
	maintenanceRuns     *prometheus.CounterVec
	maintenanceDuration *prometheus.HistogramVec
	maintenanceLastRun  *prometheus.GaugeVec
}

func newMetricSet(namespace string) *metricSet {
	buckets := prometheus.DefBuckets
	// Extractions include video downloads and model calls, so they run far
	// longer than a regular API request.
	extractionBuckets := []float64{
		0.05, 0.25, 1, 2.5, 5, // cache hits and structured pages
		10, 20, 30, 60, // AI fallbacks
		90, 120, 180,
	}

	return &metricSet{
		apiLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_latency_seconds",
				Help:      "API endpoint latency",
				Buckets:   buckets,
			},
			[]string{"method", "path", "status"},
		),
		extractions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extractions_total",
				Help:      "Recipe extraction attempts by platform, winning source and result",
			},
			[]string{"platform", "source", "result"},
		),
		extractionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "extraction_duration_seconds",
				Help:      "End-to-end recipe extraction duration",
				Buckets:   extractionBuckets,
			},
			[]string{"platform"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Recipe cache lookups grouped by the tier that answered",
			},
			[]string{"tier"},
		),
		cacheErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_errors_total",
				Help:      "Primary cache store failures by operation",
			},
			[]string{"operation"},
		),
		geminiCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gemini_calls_total",
				Help:      "Gemini API calls by operation and result",
			},
			[]string{"operation", "result"},
		),
		geminiLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gemini_latency_seconds",
				Help:      "Gemini API call latency",
				Buckets:   extractionBuckets,
			},
			[]string{"operation"},
		),
		videoDownloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "video_downloads_total",
				Help:      "yt-dlp downloads by platform and result",
			},
			[]string{"platform", "result"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
		breakerTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_transitions_total",
				Help:      "Circuit breaker state transitions",
			},
			[]string{"name", "from", "to"},
		),
		rateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_requests_total",
				Help:      "Requests rejected by the API rate limiter",
			},
			[]string{"path"},
		),
		maintenanceRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "maintenance_runs_total",
				Help:      "Maintenance job executions",
			},
			[]string{"job", "result"},
		),
		maintenanceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "maintenance_duration_seconds",
				Help:      "Maintenance job duration",
				Buckets:   buckets,
			},
			[]string{"job"},
		),
		maintenanceLastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "maintenance_last_success_timestamp",
				Help:      "Timestamp of the last successful maintenance run (seconds since epoch)",
			},
			[]string{"job"},
		),
	}
}

func (c *metricSet) all() []prometheus.Collector {
	return []prometheus.Collector{
		c.apiLatency,
		c.extractions,
		c.extractionDuration,
		c.cacheLookups,
		c.cacheErrors,
		c.geminiCalls,
		c.geminiLatency,
		c.videoDownloads,
		c.breakerState,
		c.breakerTransitions,
		c.rateLimited,
		c.maintenanceRuns,
		c.maintenanceDuration,
		c.maintenanceLastRun,
	}
}

// observeDuration records a duration in seconds on the supplied histogram observer.
func observeDuration(observer prometheus.Observer, d time.Duration) {
	if observer == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	observer.Observe(d.Seconds())
}
