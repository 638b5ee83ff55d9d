package checks

import (
	"context"
	"os/exec"
	"time"

	"github.com/charlesng35/recipekeeper/internal/monitoring"
)

// Binary reports whether an external executable is resolvable on PATH. A missing
// binary only degrades the service since website extraction keeps working.
func Binary(name, path string) monitoring.Check {
	return monitoring.NewCheck(name, func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		resolved, err := exec.LookPath(path)
		if err != nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  err.Error(),
				Duration: time.Since(start),
			}
		}
		return monitoring.ProbeResult{
			Status:   monitoring.StatusUp,
			Details:  resolved,
			Duration: time.Since(start),
		}
	})
}

// Gemini reports whether an API key is configured for the model client.
func Gemini(configured bool) monitoring.Check {
	return monitoring.NewCheck("gemini", func(ctx context.Context) monitoring.ProbeResult {
		if !configured {
			return monitoring.ProbeResult{
				Status:  monitoring.StatusDown,
				Details: "api key not configured",
			}
		}
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	})
}
