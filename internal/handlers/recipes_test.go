package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/recipekeeper/internal/models"
	"github.com/charlesng35/recipekeeper/internal/platform"
	"github.com/charlesng35/recipekeeper/internal/services"
	appErrors "github.com/charlesng35/recipekeeper/pkg/errors"
)

type fakeRunner struct {
	result *services.ExtractionResult
	err    error
	calls  []services.ExtractionRequest
}

func (f *fakeRunner) Extract(_ context.Context, req services.ExtractionRequest) (*services.ExtractionResult, error) {
	f.calls = append(f.calls, req)
	return f.result, f.err
}

func newRecipeRouter(runner ExtractionRunner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/extract-recipe", NewRecipeHandler(runner).Extract)
	return r
}

func postExtract(t *testing.T, r http.Handler, body string) (*httptest.ResponseRecorder, ExtractRecipeResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/extract-recipe", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var resp ExtractRecipeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestExtractRecipeSuccess(t *testing.T) {
	cachedAt := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	runner := &fakeRunner{result: &services.ExtractionResult{
		Recipe: &models.Recipe{
			Title:       "Pasta",
			Ingredients: []string{"pasta", "salt"},
			Steps:       []string{"Boil water.", "Cook pasta."},
			SourceURL:   "https://youtu.be/dQw4w9WgXcQ",
			Platform:    "youtube",
			Language:    "en",
		},
		Platform:  platform.YouTube,
		Source:    models.SourceCache,
		FromCache: true,
		CachedAt:  &cachedAt,
	}}
	r := newRecipeRouter(runner)

	rec, resp := postExtract(t, r, `{"url":"https://youtu.be/dQw4w9WgXcQ"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)
	require.Equal(t, "youtube", resp.Platform)
	require.Equal(t, "Pasta", resp.Recipe.Title)
	require.True(t, resp.FromCache)
	require.NotNil(t, resp.CachedAt)
	require.True(t, cachedAt.Equal(*resp.CachedAt))
	require.Empty(t, resp.ErrorCode)

	require.Len(t, runner.calls, 1)
	require.True(t, runner.calls[0].UseCache)
}

func TestExtractRecipeHonoursUseCacheFalse(t *testing.T) {
	runner := &fakeRunner{result: &services.ExtractionResult{Recipe: &models.Recipe{Title: "Soup"}, Platform: platform.Website}}
	r := newRecipeRouter(runner)

	rec, resp := postExtract(t, r, `{"url":"https://example.com/soup","use_cache":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, resp.FromCache)
	require.Nil(t, resp.CachedAt)
	require.False(t, runner.calls[0].UseCache)
}

func TestExtractRecipeErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unsupported", appErrors.ErrUnsupportedPlatform, http.StatusBadRequest, "UNSUPPORTED_PLATFORM"},
		{"download", appErrors.ErrDownloadFailed.WithInternal(errors.New("403")), http.StatusBadGateway, "DOWNLOAD_FAILED"},
		{"fetch", appErrors.ErrFetchFailed, http.StatusBadGateway, "FETCH_FAILED"},
		{"no recipe", appErrors.ErrNoRecipeFound, http.StatusUnprocessableEntity, "NO_RECIPE_FOUND"},
		{"quota", appErrors.ErrQuotaExceeded, http.StatusTooManyRequests, "QUOTA_EXCEEDED"},
		{"ai down", appErrors.ErrAIUnavailable, http.StatusServiceUnavailable, "AI_UNAVAILABLE"},
		{"timeout", context.DeadlineExceeded, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRecipeRouter(&fakeRunner{err: tc.err})
			rec, resp := postExtract(t, r, `{"url":"https://example.com/recipe"}`)
			require.Equal(t, tc.status, rec.Code)
			require.False(t, resp.Success)
			require.Equal(t, tc.code, resp.ErrorCode)
			require.NotEmpty(t, resp.Error)
			require.Nil(t, resp.Recipe)
			require.Contains(t, rec.Body.String(), `"from_cache":false`)
		})
	}
}

func TestExtractRecipeQuotaMessageMentionsCode(t *testing.T) {
	r := newRecipeRouter(&fakeRunner{err: appErrors.ErrQuotaExceeded})
	_, resp := postExtract(t, r, `{"url":"https://example.com/recipe"}`)
	require.True(t, strings.HasPrefix(resp.Error, "QUOTA_EXCEEDED"))
}

func TestExtractRecipeRejectsBadBodies(t *testing.T) {
	runner := &fakeRunner{}
	r := newRecipeRouter(runner)

	rec, resp := postExtract(t, r, `{"url":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "BAD_REQUEST", resp.ErrorCode)

	rec, resp = postExtract(t, r, `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "url is required", resp.Error)

	rec, resp = postExtract(t, r, `{"url":"ftp://example.com/recipe"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "UNSUPPORTED_PLATFORM", resp.ErrorCode)

	require.Empty(t, runner.calls)
}

func TestExtractRecipeFailureReportsDetectedPlatform(t *testing.T) {
	runner := &fakeRunner{err: &services.ExtractionError{
		Platform: platform.TikTok,
		Err:      appErrors.ErrDownloadFailed.WithInternal(errors.New("HTTP Error 403: Forbidden")),
	}}
	r := newRecipeRouter(runner)

	rec, resp := postExtract(t, r, `{"url":"https://www.tiktok.com/@chef/video/7234567890123456789"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.False(t, resp.Success)
	require.Equal(t, "tiktok", resp.Platform)
	require.Equal(t, "DOWNLOAD_FAILED", resp.ErrorCode)

	runner.err = &services.ExtractionError{Platform: platform.Website, Err: errors.New("boom")}
	rec, resp = postExtract(t, r, `{"url":"https://example.com/recipe"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "website", resp.Platform)
	require.Equal(t, "INTERNAL_SERVER_ERROR", resp.ErrorCode)
}

func TestExtractRecipeAcceptsSchemeLessLinks(t *testing.T) {
	runner := &fakeRunner{result: &services.ExtractionResult{Recipe: &models.Recipe{Title: "Ramen"}, Platform: platform.YouTube}}
	r := newRecipeRouter(runner)

	rec, resp := postExtract(t, r, `{"url":"youtube.com/shorts/dQw4w9WgXcQ"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)
	require.Len(t, runner.calls, 1)
	require.Equal(t, "https://youtube.com/shorts/dQw4w9WgXcQ", runner.calls[0].URL)

	rec, resp = postExtract(t, r, `{"url":"not a url"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "UNSUPPORTED_PLATFORM", resp.ErrorCode)
	require.Empty(t, resp.Platform)
	require.Len(t, runner.calls, 1)
}
