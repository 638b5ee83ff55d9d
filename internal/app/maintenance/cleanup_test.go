package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/recipekeeper/internal/cache"
	testutil "github.com/charlesng35/recipekeeper/internal/database/testutil"
	"github.com/charlesng35/recipekeeper/internal/models"
	"github.com/charlesng35/recipekeeper/internal/services"
)

func TestSweepTempDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	now := time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)

	require.NoError(t, fs.MkdirAll("/scratch/nested", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/scratch/video_1.mp4", []byte("old"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/scratch/video_2.mp4", []byte("new"), 0o644))
	require.NoError(t, fs.Chtimes("/scratch/video_1.mp4", now.Add(-2*time.Hour), now.Add(-2*time.Hour)))
	require.NoError(t, fs.Chtimes("/scratch/video_2.mp4", now.Add(-time.Minute), now.Add(-time.Minute)))

	removed, err := SweepTempDir(fs, "/scratch", time.Hour, now)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	exists, err := afero.Exists(fs, "/scratch/video_1.mp4")
	require.NoError(t, err)
	require.False(t, exists)

	exists, err = afero.Exists(fs, "/scratch/video_2.mp4")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = afero.DirExists(fs, "/scratch/nested")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestSweepTempDirMissingDirectory(t *testing.T) {
	removed, err := SweepTempDir(afero.NewMemMapFs(), "/does-not-exist", time.Hour, time.Now())
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := fixedClock{current: time.Now()}

	history, err := services.NewHistoryService(db)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.ExtractionRecord{
		BaseModel: models.BaseModel{CreatedAt: clock.Now().AddDate(0, 0, -40)},
		URL:       "https://example.com/old",
		Platform:  "website",
	}).Error)
	require.NoError(t, db.Create(&models.ExtractionRecord{
		URL:      "https://example.com/new",
		Platform: "website",
	}).Error)

	durable := cache.NewDatabaseStore(db)
	ctx := context.Background()
	require.NoError(t, durable.Set(ctx, "recipe:expired", []byte("x"), time.Millisecond))
	require.NoError(t, durable.Set(ctx, "recipe:live", []byte("y"), time.Hour))
	time.Sleep(5 * time.Millisecond)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/scratch/video_1.mp4", []byte("old"), 0o644))
	require.NoError(t, fs.Chtimes("/scratch/video_1.mp4", clock.Now().Add(-3*time.Hour), clock.Now().Add(-3*time.Hour)))

	memory := &stubMemory{purged: 2}

	c := NewCleaner("/scratch",
		WithFS(fs),
		WithNow(clock.Now),
		WithMemoryCache(memory),
		WithDatabaseCache(durable),
		WithHistory(history, 30),
		WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))),
	)

	require.NoError(t, c.RunOnce(ctx))
	require.Equal(t, 1, memory.calls)

	var records int64
	require.NoError(t, db.Model(&models.ExtractionRecord{}).Count(&records).Error)
	require.Equal(t, int64(1), records)

	live, err := durable.Len(ctx, cache.RecipePrefix)
	require.NoError(t, err)
	require.Equal(t, int64(1), live)
	var rows int64
	require.NoError(t, db.Model(&models.CacheEntry{}).Count(&rows).Error)
	require.Equal(t, int64(1), rows)

	exists, err := afero.Exists(fs, "/scratch/video_1.mp4")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestCleanerRunOnceAggregatesErrors(t *testing.T) {
	c := NewCleaner("",
		WithDatabaseCache(failingPurger{}),
		WithHistory(failingHistory{}, 7),
	)

	err := c.RunOnce(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), JobDatabaseCache)
	require.Contains(t, err.Error(), JobHistory)
}

func TestCleanerStartWithoutJobs(t *testing.T) {
	c := NewCleaner("")
	require.NoError(t, c.Start())
	<-c.Stop().Done()
}

func TestCleanerStartRejectsBadSchedule(t *testing.T) {
	c := NewCleaner(t.TempDir(), WithTempSweepSchedule("not a schedule"))
	require.Error(t, c.Start())
}

func TestCleanerStalenessWindowsFollowSchedules(t *testing.T) {
	now := time.Date(2024, 5, 20, 9, 30, 0, 0, time.UTC)
	c := NewCleaner("/scratch",
		WithNow(func() time.Time { return now }),
		WithMemoryCache(&stubMemory{}),
		WithHistory(failingHistory{}, 30),
		WithCachePurgeSchedule("*/5 * * * *"),
	)

	windows := c.StalenessWindows()
	require.Equal(t, map[string]time.Duration{
		JobTempSweep:   30 * time.Minute,
		JobMemoryCache: 10 * time.Minute,
		JobHistory:     48 * time.Hour,
	}, windows)
}

func TestCleanerStalenessWindowsSkipBadSchedule(t *testing.T) {
	c := NewCleaner("/scratch", WithTempSweepSchedule("not a schedule"))
	require.Empty(t, c.StalenessWindows())

	_, err := ScheduleInterval("not a schedule", time.Now())
	require.Error(t, err)
}

type stubMemory struct {
	purged int
	calls  int
}

func (s *stubMemory) PurgeExpired() int {
	s.calls++
	return s.purged
}

type failingPurger struct{}

func (failingPurger) PurgeExpired(context.Context) (int64, error) {
	return 0, errors.New("purge failed")
}

type failingHistory struct{}

func (failingHistory) CleanupOlderThan(context.Context, int) (int64, error) {
	return 0, errors.New("cleanup failed")
}

type fixedClock struct {
	current time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.current
}
