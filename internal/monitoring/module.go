package monitoring

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "recipekeeper"

// Options configure a monitoring Module.
type Options struct {
	// Namespace prefixes every metric name. Defaults to "recipekeeper".
	Namespace string
	// SkipRuntimeCollectors leaves the Go runtime and process collectors out of the
	// registry so tests only see extraction metrics.
	SkipRuntimeCollectors bool
	// HealthTimeout bounds each health probe. Defaults to DefaultCheckTimeout.
	HealthTimeout time.Duration
}

// Module owns the Prometheus registry for extraction metrics, the counters behind
// the monitoring summary and the health probes.
type Module struct {
	registry *prometheus.Registry
	metrics  *metricSet
	stats    *statStore
	health   *HealthManager
}

// NewModule builds a Module with a private registry.
func NewModule(opts Options) (*Module, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}

	metrics := newMetricSet(namespace)
	toRegister := metrics.all()
	if !opts.SkipRuntimeCollectors {
		toRegister = append(toRegister,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	registry := prometheus.NewRegistry()
	for _, collector := range toRegister {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}

	return &Module{
		registry: registry,
		metrics:  metrics,
		stats:    newStatStore(),
		health:   NewHealthManager(opts.HealthTimeout),
	}, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Module) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Health returns the liveness and readiness probe manager.
func (m *Module) Health() *HealthManager {
	if m == nil {
		return nil
	}
	return m.health
}

// Summary returns the current operator summary for this module.
func (m *Module) Summary() Summary {
	if m == nil || m.stats == nil {
		return Summary{GeneratedAt: time.Now()}
	}
	return m.stats.summary()
}

var current atomic.Pointer[Module]

// SetModule installs module as the target of the package-level Record and Observe helpers.
func SetModule(module *Module) {
	if module != nil {
		current.Store(module)
	}
}

func activeModule() *Module {
	return current.Load()
}
