package maintenance

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/recipekeeper/internal/monitoring"
	"github.com/charlesng35/recipekeeper/pkg/logger"
)

const (
	defaultHistoryRetentionDays = 30
	defaultTempMaxAge           = time.Hour
	defaultTempSweepSpec        = "@every 15m"
	defaultCachePurgeSpec       = "@every 10m"
	defaultHistorySpec          = "@daily"
)

// Job identifiers reported to monitoring.
const (
	JobTempSweep     = "temp_sweep"
	JobMemoryCache   = "memory_cache_purge"
	JobDatabaseCache = "database_cache_purge"
	JobHistory       = "history_retention"
)

// MemoryPurger drops expired in-process cache entries.
type MemoryPurger interface {
	PurgeExpired() int
}

// ExpiredPurger drops expired rows from a durable cache.
type ExpiredPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// HistoryPruner enforces extraction history retention.
type HistoryPruner interface {
	CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error)
}

// Cleaner coordinates background maintenance: sweeping stale downloads from the
// scratch directory, purging expired cache entries and pruning extraction history.
type Cleaner struct {
	fs         afero.Fs
	tempDir    string
	tempMaxAge time.Duration
	memory     MemoryPurger
	durable    ExpiredPurger
	history    HistoryPruner
	retention  int
	cron       *cron.Cron
	now        func() time.Time
	log        *zap.Logger

	tempSchedule    string
	cacheSchedule   string
	historySchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for age comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithFS swaps the filesystem used by the temp sweep.
func WithFS(fs afero.Fs) Option {
	return func(cleaner *Cleaner) {
		if fs != nil {
			cleaner.fs = fs
		}
	}
}

// WithTempMaxAge sets how old a scratch file must be before it is swept.
func WithTempMaxAge(age time.Duration) Option {
	return func(cleaner *Cleaner) {
		if age > 0 {
			cleaner.tempMaxAge = age
		}
	}
}

// WithMemoryCache enables purging of the in-process cache tier.
func WithMemoryCache(store MemoryPurger) Option {
	return func(cleaner *Cleaner) {
		cleaner.memory = store
	}
}

// WithDatabaseCache enables purging of expired database cache rows.
func WithDatabaseCache(store ExpiredPurger) Option {
	return func(cleaner *Cleaner) {
		cleaner.durable = store
	}
}

// WithHistory enables extraction history retention.
func WithHistory(history HistoryPruner, retentionDays int) Option {
	return func(cleaner *Cleaner) {
		cleaner.history = history
		if retentionDays > 0 {
			cleaner.retention = retentionDays
		}
	}
}

// WithTempSweepSchedule overrides the cron expression for the temp sweep.
func WithTempSweepSchedule(expr string) Option {
	return func(cleaner *Cleaner) {
		if expr != "" {
			cleaner.tempSchedule = expr
		}
	}
}

// WithCachePurgeSchedule overrides the cron expression for cache purges.
func WithCachePurgeSchedule(expr string) Option {
	return func(cleaner *Cleaner) {
		if expr != "" {
			cleaner.cacheSchedule = expr
		}
	}
}

// WithHistorySchedule overrides the cron expression for history retention.
func WithHistorySchedule(expr string) Option {
	return func(cleaner *Cleaner) {
		if expr != "" {
			cleaner.historySchedule = expr
		}
	}
}

// NewCleaner constructs a Cleaner for the given scratch directory. An empty tempDir
// or a missing dependency skips the corresponding job.
func NewCleaner(tempDir string, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		fs:              afero.NewOsFs(),
		tempDir:         strings.TrimSpace(tempDir),
		tempMaxAge:      defaultTempMaxAge,
		retention:       defaultHistoryRetentionDays,
		now:             time.Now,
		tempSchedule:    defaultTempSweepSpec,
		cacheSchedule:   defaultCachePurgeSpec,
		historySchedule: defaultHistorySpec,
		log:             logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

type job struct {
	name     string
	schedule string
	run      func(ctx context.Context) (int64, error)
}

func (c *Cleaner) jobs() []job {
	var jobs []job
	if c.tempDir != "" {
		jobs = append(jobs, job{JobTempSweep, c.tempSchedule, func(context.Context) (int64, error) {
			removed, err := SweepTempDir(c.fs, c.tempDir, c.tempMaxAge, c.now())
			return int64(removed), err
		}})
	}
	if c.memory != nil {
		jobs = append(jobs, job{JobMemoryCache, c.cacheSchedule, func(context.Context) (int64, error) {
			return int64(c.memory.PurgeExpired()), nil
		}})
	}
	if c.durable != nil {
		jobs = append(jobs, job{JobDatabaseCache, c.cacheSchedule, c.durable.PurgeExpired})
	}
	if c.history != nil && c.retention > 0 {
		jobs = append(jobs, job{JobHistory, c.historySchedule, func(ctx context.Context) (int64, error) {
			return c.history.CleanupOlderThan(ctx, c.retention)
		}})
	}
	return jobs
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one job is enabled.
func (c *Cleaner) Start() error {
	jobs := c.jobs()
	if len(jobs) == 0 {
		return nil
	}

	for _, j := range jobs {
		j := j
		if _, err := c.cron.AddFunc(j.schedule, func() {
			if err := c.execute(context.Background(), j); err != nil {
				c.log.Warn("maintenance job failed", zap.String("job", j.name), zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("maintenance: schedule %s: %w", j.name, err)
		}
	}

	c.cron.Start()
	return nil
}

// StalenessWindows returns, per enabled job, how long it may go without running
// before it counts as stalled: twice the gap between its next two scheduled runs.
// Jobs whose schedule does not parse are left out.
func (c *Cleaner) StalenessWindows() map[string]time.Duration {
	windows := make(map[string]time.Duration)
	for _, j := range c.jobs() {
		if interval, err := ScheduleInterval(j.schedule, c.now()); err == nil {
			windows[j.name] = 2 * interval
		}
	}
	return windows
}

// ScheduleInterval parses a cron expression or descriptor ("@daily", "@every 15m")
// and returns the gap between its next two activations after from.
func ScheduleInterval(expr string, from time.Time) (time.Duration, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return 0, fmt.Errorf("maintenance: parse schedule %q: %w", expr, err)
	}
	first := schedule.Next(from)
	return schedule.Next(first).Sub(first), nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured jobs sequentially. Used at startup, in tests and
// during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	for _, j := range c.jobs() {
		errs = multierr.Append(errs, c.execute(ctx, j))
	}
	return errs
}

func (c *Cleaner) execute(ctx context.Context, j job) error {
	start := time.Now()
	removed, err := j.run(ctx)
	duration := time.Since(start)

	if err != nil {
		monitoring.RecordMaintenanceRun(j.name, "failure", err.Error(), duration)
		return fmt.Errorf("maintenance: %s: %w", j.name, err)
	}

	monitoring.RecordMaintenanceRun(j.name, "success", "", duration)
	if removed > 0 {
		c.log.Info("maintenance job completed",
			zap.String("job", j.name),
			zap.Int64("removed", removed),
			zap.Duration("duration", duration),
		)
	}
	return nil
}

// SweepTempDir removes regular files in dir last modified before now-maxAge and
// returns how many were deleted. A missing directory is not an error.
func SweepTempDir(fs afero.Fs, dir string, maxAge time.Duration, now time.Time) (int, error) {
	if fs == nil {
		return 0, errors.New("sweep temp dir: fs is required")
	}
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("sweep temp dir: %w", err)
	}

	cutoff := now.Add(-maxAge)
	var (
		removed int
		errs    error
	)
	for _, entry := range entries {
		if !entry.Mode().IsRegular() || !entry.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = multierr.Append(errs, err)
			continue
		}
		removed++
	}
	return removed, errs
}
