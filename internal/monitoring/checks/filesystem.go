package checks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charlesng35/recipekeeper/internal/monitoring"
)

// TempDir verifies the video scratch directory exists and accepts writes.
func TempDir(dir string) monitoring.Check {
	return monitoring.NewCheck("temp_dir", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		info, err := os.Stat(dir)
		if err != nil {
			return monitoring.ResultFromError("temp_dir", err, time.Since(start))
		}
		if !info.IsDir() {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDown,
				Details:  fmt.Sprintf("%s is not a directory", dir),
				Duration: time.Since(start),
			}
		}

		probe, err := os.CreateTemp(dir, ".probe-*")
		if err != nil {
			return monitoring.ResultFromError("temp_dir", err, time.Since(start))
		}
		name := probe.Name()
		_ = probe.Close()
		_ = os.Remove(filepath.Clean(name))

		return monitoring.ProbeResult{
			Status:   monitoring.StatusUp,
			Details:  dir,
			Duration: time.Since(start),
		}
	})
}
