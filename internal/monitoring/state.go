package monitoring

import (
	"sync"
	"sync/atomic"
	"time"
)

type statStore struct {
	extractionSuccess atomic.Uint64
	extractionFailure atomic.Uint64
	extractionCached  atomic.Uint64

	cachePrimaryHits atomic.Uint64
	cacheMemoryHits  atomic.Uint64
	cacheMisses      atomic.Uint64
	cacheErrors      atomic.Uint64

	geminiSuccess   atomic.Uint64
	geminiFailure   atomic.Uint64
	geminiQuota     atomic.Uint64
	geminiLastError atomic.Value // string

	platforms   sync.Map // string -> *platformStats
	breakers    sync.Map // string -> *breakerStats
	maintenance sync.Map // string -> *maintenanceStats
}

func newStatStore() *statStore {
	store := &statStore{}
	store.geminiLastError.Store("")
	return store
}

func (s *statStore) summary() Summary {
	lastGeminiError, _ := s.geminiLastError.Load().(string)

	return Summary{
		GeneratedAt: time.Now(),
		Extractions: ExtractionSummary{
			Success:   s.extractionSuccess.Load(),
			Failure:   s.extractionFailure.Load(),
			FromCache: s.extractionCached.Load(),
		},
		Platforms: s.clonePlatforms(),
		Cache: CacheSummary{
			PrimaryHits: s.cachePrimaryHits.Load(),
			MemoryHits:  s.cacheMemoryHits.Load(),
			Misses:      s.cacheMisses.Load(),
			Errors:      s.cacheErrors.Load(),
		},
		Gemini: GeminiSummary{
			Success:       s.geminiSuccess.Load(),
			Failure:       s.geminiFailure.Load(),
			QuotaExceeded: s.geminiQuota.Load(),
			LastError:     lastGeminiError,
		},
		Breakers: s.cloneBreakers(),
		Maintenance: MaintenanceSummary{
			Jobs: s.cloneMaintenance(),
		},
	}
}

func (s *statStore) recordExtraction(result string, fromCache bool) {
	if result == "success" {
		s.extractionSuccess.Add(1)
	} else {
		s.extractionFailure.Add(1)
	}
	if fromCache {
		s.extractionCached.Add(1)
	}
}

func (s *statStore) recordCacheLookup(tier string) {
	switch tier {
	case CacheTierPrimary:
		s.cachePrimaryHits.Add(1)
	case CacheTierMemory:
		s.cacheMemoryHits.Add(1)
	default:
		s.cacheMisses.Add(1)
	}
}

func (s *statStore) recordGemini(result, message string) {
	switch result {
	case "success":
		s.geminiSuccess.Add(1)
		return
	case "quota_exceeded":
		s.geminiQuota.Add(1)
	}
	s.geminiFailure.Add(1)
	if message != "" {
		s.geminiLastError.Store(message)
	}
}

func (s *statStore) recordBreaker(name, state string) {
	value, _ := s.breakers.LoadOrStore(name, &breakerStats{})
	value.(*breakerStats).record(state)
}

func (s *statStore) platformEntry(platform string) *platformStats {
	value, ok := s.platforms.Load(platform)
	if ok {
		return value.(*platformStats)
	}
	actual, _ := s.platforms.LoadOrStore(platform, &platformStats{})
	return actual.(*platformStats)
}

func (s *statStore) maintenanceEntry(job string) *maintenanceStats {
	value, ok := s.maintenance.Load(job)
	if ok {
		return value.(*maintenanceStats)
	}
	actual, _ := s.maintenance.LoadOrStore(job, &maintenanceStats{})
	return actual.(*maintenanceStats)
}

func (s *statStore) clonePlatforms() []PlatformSummary {
	summaries := []PlatformSummary{}
	s.platforms.Range(func(key, value any) bool {
		summaries = append(summaries, value.(*platformStats).snapshot(key.(string)))
		return true
	})
	return summaries
}

func (s *statStore) cloneBreakers() []BreakerSummary {
	summaries := []BreakerSummary{}
	s.breakers.Range(func(key, value any) bool {
		summaries = append(summaries, value.(*breakerStats).snapshot(key.(string)))
		return true
	})
	return summaries
}

func (s *statStore) cloneMaintenance() []MaintenanceJobSummary {
	summaries := []MaintenanceJobSummary{}
	s.maintenance.Range(func(key, value any) bool {
		summaries = append(summaries, value.(*maintenanceStats).snapshot(key.(string)))
		return true
	})
	return summaries
}

type platformStats struct {
	success        atomic.Uint64
	failure        atomic.Uint64
	cached         atomic.Uint64
	lastSource     atomic.Value // string
	lastResult     atomic.Value // string
	lastDuration   atomic.Int64
	lastCompleted  atomic.Int64
	totalLatencyNs atomic.Uint64
	total          atomic.Uint64
}

func (p *platformStats) record(result, source string, fromCache bool, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	if result == "success" {
		p.success.Add(1)
	} else {
		p.failure.Add(1)
	}
	if fromCache {
		p.cached.Add(1)
	}
	p.lastSource.Store(source)
	p.lastResult.Store(result)
	p.lastDuration.Store(int64(duration))
	p.lastCompleted.Store(time.Now().UnixNano())
	p.total.Add(1)
	p.totalLatencyNs.Add(uint64(duration))
}

func (p *platformStats) snapshot(platform string) PlatformSummary {
	source, _ := p.lastSource.Load().(string)
	result, _ := p.lastResult.Load().(string)
	total := p.total.Load()

	var avg float64
	if total > 0 {
		avg = float64(p.totalLatencyNs.Load()) / float64(total) / float64(time.Second)
	}

	return PlatformSummary{
		Platform:              platform,
		Success:               p.success.Load(),
		Failure:               p.failure.Load(),
		FromCache:             p.cached.Load(),
		LastSource:            source,
		LastResult:            result,
		LastDuration:          time.Duration(p.lastDuration.Load()),
		LastCompletedAt:       time.Unix(0, p.lastCompleted.Load()),
		AverageLatencySeconds: avg,
	}
}

type breakerStats struct {
	mu        sync.Mutex
	state     string
	changedAt time.Time
	trips     uint64
}

func (b *breakerStats) record(state string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if state == b.state {
		return
	}
	if state == "open" {
		b.trips++
	}
	b.state = state
	b.changedAt = time.Now()
}

func (b *breakerStats) snapshot(name string) BreakerSummary {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerSummary{
		Name:          name,
		State:         b.state,
		LastChangedAt: b.changedAt,
		Trips:         b.trips,
	}
}

type maintenanceStats struct {
	lastStatus           atomic.Value // string
	lastError            atomic.Value // string
	lastRun              atomic.Int64 // unix nano
	lastDuration         atomic.Int64 // nanoseconds
	consecutiveFailures  atomic.Uint64
	totalRuns            atomic.Uint64
	lastSuccessfulRun    atomic.Int64
	consecutiveSuccesses atomic.Uint64
}

func (m *maintenanceStats) snapshot(job string) MaintenanceJobSummary {
	status, _ := m.lastStatus.Load().(string)
	errMsg, _ := m.lastError.Load().(string)

	return MaintenanceJobSummary{
		Job:                 job,
		LastStatus:          status,
		LastRunAt:           time.Unix(0, m.lastRun.Load()),
		LastDuration:        time.Duration(m.lastDuration.Load()),
		LastError:           errMsg,
		ConsecutiveFailures: m.consecutiveFailures.Load(),
		ConsecutiveSuccess:  m.consecutiveSuccesses.Load(),
		LastSuccessAt:       time.Unix(0, m.lastSuccessfulRun.Load()),
		TotalRuns:           m.totalRuns.Load(),
	}
}

func (m *maintenanceStats) record(result, message string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	now := time.Now()
	m.lastStatus.Store(result)
	m.lastError.Store(message)
	m.lastRun.Store(now.UnixNano())
	m.lastDuration.Store(int64(duration))
	m.totalRuns.Add(1)

	switch result {
	case "success":
		m.consecutiveFailures.Store(0)
		m.consecutiveSuccesses.Add(1)
		m.lastSuccessfulRun.Store(now.UnixNano())
	default:
		m.consecutiveFailures.Add(1)
		m.consecutiveSuccesses.Store(0)
	}
}
