package checks

import (
	"context"
	"time"

	"github.com/charlesng35/recipekeeper/internal/monitoring"
)

// CachePinger represents the minimal interface required to probe the primary cache store.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// Cache returns a readiness probe for the primary recipe cache store. An unreachable
// store only degrades readiness because lookups fall back to process memory.
func Cache(name string, store CachePinger, enabled bool, timeout time.Duration) monitoring.Check {
	if name == "" {
		name = "cache"
	}
	return monitoring.NewCheck(name, func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if !enabled {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusUp,
				Details:  "cache disabled",
				Duration: time.Since(start),
			}
		}
		if store == nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  "primary store unavailable, using memory fallback",
				Duration: time.Since(start),
			}
		}

		probeCtx, cancel := boundedContext(ctx, timeout)
		defer cancel()

		if err := store.Ping(probeCtx); err != nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  err.Error() + " (using memory fallback)",
				Duration: time.Since(start),
			}
		}

		return monitoring.ProbeResult{
			Status:   monitoring.StatusUp,
			Duration: time.Since(start),
		}
	})
}
