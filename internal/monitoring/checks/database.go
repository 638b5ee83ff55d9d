package checks

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/recipekeeper/internal/monitoring"
)

// Database probes the SQL handle that backs extraction history and, with the
// database cache driver, the recipe cache. Details carry the dialect and pool usage.
func Database(db *gorm.DB, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if db == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "history database not opened"}
		}

		sqlDB, err := db.DB()
		if err != nil {
			return monitoring.ResultFromError("database", err, time.Since(start))
		}

		ctx, cancel := boundedContext(ctx, timeout)
		defer cancel()
		if err := sqlDB.PingContext(ctx); err != nil {
			return monitoring.ResultFromError("database", err, time.Since(start))
		}

		stats := sqlDB.Stats()
		return monitoring.ProbeResult{
			Status:   monitoring.StatusUp,
			Details:  fmt.Sprintf("%s: %d open, %d in use", db.Dialector.Name(), stats.OpenConnections, stats.InUse),
			Duration: time.Since(start),
		}
	})
}

// boundedContext applies timeout when positive; otherwise the manager's deadline stands.
func boundedContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
