package checks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charlesng35/recipekeeper/internal/monitoring"
)

// Maintenance reports on the cleanup jobs that keep the scratch directory, the
// recipe cache and the extraction history bounded. windows maps a job name to how
// long it may go without running; jobs missing from windows are only checked for
// failures. Problems degrade the component since extraction is unaffected until
// disk or table growth catches up.
func Maintenance(windows map[string]time.Duration) monitoring.Check {
	return monitoring.NewCheck("maintenance", func(ctx context.Context) monitoring.ProbeResult {
		return evaluateMaintenance(monitoring.Snapshot().Maintenance.Jobs, windows, time.Now())
	})
}

func evaluateMaintenance(jobs []monitoring.MaintenanceJobSummary, windows map[string]time.Duration, now time.Time) monitoring.ProbeResult {
	if len(jobs) == 0 {
		return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "no cleanup has run yet"}
	}

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Job < jobs[j].Job })

	status := monitoring.StatusUp
	var problems []string
	for _, job := range jobs {
		if job.ConsecutiveFailures > 0 {
			status = monitoring.StatusDegraded
			problems = append(problems, fmt.Sprintf("%s: %d consecutive failures (%s)", job.Job, job.ConsecutiveFailures, job.LastError))
			continue
		}
		window, ok := windows[job.Job]
		if !ok || window <= 0 || job.LastRunAt.IsZero() {
			continue
		}
		if overdue := now.Sub(job.LastRunAt); overdue > window {
			status = monitoring.StatusDegraded
			problems = append(problems, fmt.Sprintf("%s: last ran %s ago, expected within %s",
				job.Job, overdue.Round(time.Second), window))
		}
	}

	return monitoring.ProbeResult{Status: status, Details: strings.Join(problems, "; ")}
}
