package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	testutil "github.com/charlesng35/recipekeeper/internal/database/testutil"
	"github.com/charlesng35/recipekeeper/internal/models"
)

func TestHistoryServiceRecordAndList(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewHistoryService(db)
	require.NoError(t, err)

	ctx := context.Background()
	recipe := &models.Recipe{
		Title:       "Pancakes",
		Ingredients: []string{"flour", "milk"},
		Steps:       []string{"mix", "fry"},
		Platform:    "website",
	}
	require.NoError(t, svc.Record(ctx, HistoryEntry{
		URL:      "https://example.com/pancakes",
		Platform: "website",
		CacheKey: "0123456789abcdef",
		Success:  true,
		Source:   "schema_org",
		Duration: 1500 * time.Millisecond,
		Recipe:   recipe,
	}))
	require.NoError(t, svc.Record(ctx, HistoryEntry{
		URL:       "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Platform:  "youtube",
		ErrorCode: "NO_RECIPE_FOUND",
	}))

	records, total, err := svc.List(ctx, HistoryListOptions{})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, records, 2)

	success := true
	records, total, err = svc.List(ctx, HistoryListOptions{Filters: HistoryFilters{Success: &success}})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "schema_org", records[0].Source)
	require.Equal(t, int64(1500), records[0].DurationMS)
	require.NotEmpty(t, records[0].ID)

	var stored models.Recipe
	require.NoError(t, json.Unmarshal(records[0].Recipe, &stored))
	require.Equal(t, "Pancakes", stored.Title)

	records, _, err = svc.List(ctx, HistoryListOptions{Filters: HistoryFilters{Platform: "youtube"}})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "NO_RECIPE_FOUND", records[0].ErrorCode)
	require.JSONEq(t, "null", string(records[0].Recipe))
}

func TestHistoryServiceRequiresURL(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewHistoryService(db)
	require.NoError(t, err)

	require.Error(t, svc.Record(context.Background(), HistoryEntry{}))

	_, err = NewHistoryService(nil)
	require.Error(t, err)
}

func TestHistoryServiceCleanupOlderThan(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewHistoryService(db)
	require.NoError(t, err)

	old := models.ExtractionRecord{
		BaseModel: models.BaseModel{CreatedAt: time.Now().AddDate(0, 0, -10)},
		URL:       "https://example.com/old",
		Platform:  "website",
	}
	fresh := models.ExtractionRecord{URL: "https://example.com/new", Platform: "website"}
	require.NoError(t, db.Create(&old).Error)
	require.NoError(t, db.Create(&fresh).Error)

	rows, err := svc.CleanupOlderThan(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, int64(1), rows)

	_, err = svc.CleanupOlderThan(context.Background(), 0)
	require.Error(t, err)
}

func TestNormalizePage(t *testing.T) {
	page, size := NormalizePage(0, 0)
	require.Equal(t, 1, page)
	require.Equal(t, defaultHistoryPageSize, size)

	page, size = NormalizePage(3, 1000)
	require.Equal(t, 3, page)
	require.Equal(t, maxHistoryPageSize, size)
}
