package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/recipekeeper/internal/extractor"
	"github.com/charlesng35/recipekeeper/internal/models"
	"github.com/charlesng35/recipekeeper/internal/platform"
	apperrors "github.com/charlesng35/recipekeeper/pkg/errors"
)

type fakeAI struct {
	recipe *models.Recipe
	err    error
	calls  int
	title  string
	text   string
	source platform.Platform
}

func (f *fakeAI) ExtractFromText(_ context.Context, text, title, sourceURL string, source platform.Platform, _ string) (*models.Recipe, error) {
	f.calls++
	f.text = text
	f.title = title
	f.source = source
	if f.err != nil {
		return nil, f.err
	}
	recipe := *f.recipe
	recipe.SourceURL = sourceURL
	return &recipe, nil
}

func testFetcher() *Fetcher {
	return NewFetcher(FetchConfig{Timeout: 2 * time.Second, InitialBackoff: time.Millisecond}, nil)
}

func servePage(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestScraperUsesStructuredDataFirst(t *testing.T) {
	srv := servePage(t, schemaPage)
	ai := &fakeAI{}

	recipe, source, err := New(testFetcher(), ai).Extract(context.Background(), srv.URL+"/pie")
	require.NoError(t, err)
	require.Equal(t, models.SourceSchemaOrg, source)
	require.Equal(t, "Chef Ann", recipe.Author)
	require.Equal(t, srv.URL+"/pie", recipe.SourceURL)
	require.Zero(t, ai.calls)
}

func TestScraperLayerOrder(t *testing.T) {
	cases := map[string]string{
		models.SourceWordPress: wprmPage,
		models.SourceMicrodata: microdataPage,
		models.SourceHeuristic: heuristicPage,
	}
	for want, page := range cases {
		t.Run(want, func(t *testing.T) {
			srv := servePage(t, page)
			_, source, err := New(testFetcher(), &fakeAI{}).Extract(context.Background(), srv.URL)
			require.NoError(t, err)
			require.Equal(t, want, source)
		})
	}
}

func TestScraperFillsAuthorFromHost(t *testing.T) {
	srv := servePage(t, heuristicPage)

	recipe, _, err := New(testFetcher(), nil).Extract(context.Background(), srv.URL+"/soup")
	require.NoError(t, err)
	require.Equal(t, AuthorFromURL(srv.URL+"/soup"), recipe.Author)
	require.NotEmpty(t, recipe.Author)
}

func TestScraperFallsBackToModel(t *testing.T) {
	srv := servePage(t, `<html><head><title>Grandma's Stew</title><script>var tracking = 1;</script></head>
<body><p>Brown the beef, add onions and simmer for two hours.</p></body></html>`)
	ai := &fakeAI{recipe: &models.Recipe{
		Title:       "Grandma's Stew",
		Ingredients: []string{"beef", "onions"},
		Steps:       []string{"Brown the beef.", "Simmer."},
		Platform:    "website",
		Language:    "en",
		Author:      "Grandma",
	}}

	recipe, source, err := New(testFetcher(), ai).Extract(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, models.SourceAI, source)
	require.Equal(t, 1, ai.calls)
	require.Equal(t, "Grandma's Stew", ai.title)
	require.Equal(t, platform.Website, ai.source)
	require.Contains(t, ai.text, "Brown the beef")
	require.NotContains(t, ai.text, "tracking")
	require.Equal(t, "Grandma", recipe.Author)
}

func TestScraperModelFindsNothing(t *testing.T) {
	srv := servePage(t, `<html><body><p>Just a blog post about gardening.</p></body></html>`)
	ai := &fakeAI{err: fmt.Errorf("%w: model reported not a recipe", extractor.ErrNoRecipe)}

	_, _, err := New(testFetcher(), ai).Extract(context.Background(), srv.URL)
	require.ErrorIs(t, err, apperrors.ErrNoRecipeFound)
}

func TestScraperWithoutModelReportsNoRecipe(t *testing.T) {
	srv := servePage(t, `<html><body><p>Nothing to see.</p></body></html>`)

	_, _, err := New(testFetcher(), nil).Extract(context.Background(), srv.URL)
	require.ErrorIs(t, err, apperrors.ErrNoRecipeFound)
}

func TestScraperPropagatesQuotaErrors(t *testing.T) {
	srv := servePage(t, `<html><body><p>Some recipe-ish text.</p></body></html>`)
	ai := &fakeAI{err: apperrors.ErrQuotaExceeded.WithInternal(errors.New("429 RESOURCE_EXHAUSTED"))}

	_, _, err := New(testFetcher(), ai).Extract(context.Background(), srv.URL)
	require.ErrorIs(t, err, apperrors.ErrQuotaExceeded)
}

func TestScraperFetchFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.NotFound(w, nil)
	}))
	defer srv.Close()

	_, _, err := New(testFetcher(), &fakeAI{}).Extract(context.Background(), srv.URL)
	require.ErrorIs(t, err, apperrors.ErrFetchFailed)

	var status *StatusError
	require.ErrorAs(t, err, &status)
	require.Equal(t, http.StatusNotFound, status.Code)
	require.Equal(t, int32(1), hits.Load())
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var (
		hits      atomic.Int32
		userAgent atomic.Value
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		userAgent.Store(r.Header.Get("User-Agent"))
		_, _ = fmt.Fprint(w, "<html>ok</html>")
	}))
	defer srv.Close()

	page, err := testFetcher().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "<html>ok</html>", page.HTML)
	require.Equal(t, int32(2), hits.Load())
	require.Equal(t, BrowserUserAgent, userAgent.Load())
}

func TestFetchGivesUpAfterMaxRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewFetcher(FetchConfig{MaxRetries: 2, InitialBackoff: time.Millisecond}, nil).Fetch(context.Background(), srv.URL)
	var status *StatusError
	require.ErrorAs(t, err, &status)
	require.Equal(t, http.StatusTooManyRequests, status.Code)
	require.Equal(t, int32(2), hits.Load())
}

func TestFetchCapsBody(t *testing.T) {
	srv := servePage(t, "<html><body>0123456789abcdef</body></html>")

	page, err := NewFetcher(FetchConfig{MaxBodyBytes: 12}, nil).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "<html><body>", page.HTML)
}

func TestFetchDecodesDeclaredCharsets(t *testing.T) {
	// "Crème brûlée" in ISO-8859-1.
	latin1Title := []byte{'C', 'r', 0xe8, 'm', 'e', ' ', 'b', 'r', 0xfb, 'l', 0xe9, 'e'}

	cases := []struct {
		name        string
		contentType string
		head        string
	}{
		{"header", "text/html; charset=iso-8859-1", ""},
		{"meta", "text/html", `<meta charset="windows-1252">`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tc.contentType)
				body := append([]byte("<html><head>"+tc.head+"</head><body><h1>"), latin1Title...)
				_, _ = w.Write(append(body, []byte("</h1></body></html>")...))
			}))
			defer srv.Close()

			page, err := testFetcher().Fetch(context.Background(), srv.URL)
			require.NoError(t, err)
			require.Contains(t, page.HTML, "<h1>Crème brûlée</h1>")
		})
	}
}

func TestFetchFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, "moved")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	page, err := testFetcher().Fetch(context.Background(), srv.URL+"/old")
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/new", page.FinalURL)
}

func TestAuthorFromURL(t *testing.T) {
	require.Equal(t, "natashaskitchen", AuthorFromURL("https://www.natashaskitchen.com/meatballs"))
	require.Equal(t, "jaroflemons", AuthorFromURL("https://jaroflemons.com/recipe"))
	require.Equal(t, "localhost", AuthorFromURL("http://localhost:8080/x"))
}
