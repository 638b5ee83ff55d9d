package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/recipekeeper/internal/database/testutil"
	"github.com/charlesng35/recipekeeper/internal/services"
)

func TestExtractionsHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	history, err := services.NewHistoryService(db)
	require.NoError(t, err)

	ctx := context.Background()
	for _, entry := range []services.HistoryEntry{
		{URL: "https://example.com/a", Platform: "website", Success: true, Source: "schema_org", Duration: time.Second},
		{URL: "https://youtu.be/dQw4w9WgXcQ", Platform: "youtube", Success: false, ErrorCode: "NO_RECIPE_FOUND"},
		{URL: "https://example.com/b", Platform: "website", Success: true, Source: "heuristic"},
	} {
		require.NoError(t, history.Record(ctx, entry))
	}

	r := gin.New()
	r.GET("/api/extractions", NewExtractionsHandler(history).List)

	rec, body := doJSON(t, r, http.MethodGet, "/api/extractions?limit=2&page=1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body["data"].([]any), 2)
	meta := body["meta"].(map[string]any)
	require.EqualValues(t, 3, meta["total"])
	require.EqualValues(t, 2, meta["per_page"])
	require.EqualValues(t, 2, meta["total_pages"])

	_, body = doJSON(t, r, http.MethodGet, "/api/extractions?platform=youtube")
	require.Len(t, body["data"].([]any), 1)

	_, body = doJSON(t, r, http.MethodGet, "/api/extractions?success=true")
	require.Len(t, body["data"].([]any), 2)
}

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/health", Health("1.0.0"))

	rec, body := doJSON(t, r, http.MethodGet, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "1.0.0", body["version"])
}
