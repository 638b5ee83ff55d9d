package monitoring

import "time"

// Summary surfaces aggregated monitoring data for operators.
type Summary struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Extractions ExtractionSummary  `json:"extractions"`
	Platforms   []PlatformSummary  `json:"platforms"`
	Cache       CacheSummary       `json:"cache"`
	Gemini      GeminiSummary      `json:"gemini"`
	Breakers    []BreakerSummary   `json:"breakers"`
	Maintenance MaintenanceSummary `json:"maintenance"`
}

type ExtractionSummary struct {
	Success   uint64 `json:"success"`
	Failure   uint64 `json:"failure"`
	FromCache uint64 `json:"from_cache"`
}

type PlatformSummary struct {
	Platform              string        `json:"platform"`
	Success               uint64        `json:"success"`
	Failure               uint64        `json:"failure"`
	FromCache             uint64        `json:"from_cache"`
	LastSource            string        `json:"last_source,omitempty"`
	LastResult            string        `json:"last_result"`
	LastDuration          time.Duration `json:"last_duration"`
	LastCompletedAt       time.Time     `json:"last_completed_at"`
	AverageLatencySeconds float64       `json:"average_latency_seconds"`
}

type CacheSummary struct {
	PrimaryHits uint64 `json:"primary_hits"`
	MemoryHits  uint64 `json:"memory_hits"`
	Misses      uint64 `json:"misses"`
	Errors      uint64 `json:"errors"`
}

type GeminiSummary struct {
	Success       uint64 `json:"success"`
	Failure       uint64 `json:"failure"`
	QuotaExceeded uint64 `json:"quota_exceeded"`
	LastError     string `json:"last_error,omitempty"`
}

type BreakerSummary struct {
	Name          string    `json:"name"`
	State         string    `json:"state"`
	LastChangedAt time.Time `json:"last_changed_at"`
	Trips         uint64    `json:"trips"`
}

type MaintenanceSummary struct {
	Jobs []MaintenanceJobSummary `json:"jobs"`
}

type MaintenanceJobSummary struct {
	Job                 string        `json:"job"`
	LastStatus          string        `json:"last_status"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastDuration        time.Duration `json:"last_duration"`
	LastError           string        `json:"last_error,omitempty"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	ConsecutiveSuccess  uint64        `json:"consecutive_success"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	TotalRuns           uint64        `json:"total_runs"`
}

// Snapshot returns the summary of the module installed with SetModule.
func Snapshot() Summary {
	return activeModule().Summary()
}
