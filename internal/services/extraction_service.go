package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/charlesng35/recipekeeper/internal/cache"
	"github.com/charlesng35/recipekeeper/internal/extractor"
	"github.com/charlesng35/recipekeeper/internal/models"
	"github.com/charlesng35/recipekeeper/internal/monitoring"
	"github.com/charlesng35/recipekeeper/internal/platform"
	"github.com/charlesng35/recipekeeper/internal/video"
	apperrors "github.com/charlesng35/recipekeeper/pkg/errors"
	"github.com/charlesng35/recipekeeper/pkg/logger"
)

const (
	minDescriptionRunes = 50
	minCommentRunes     = 100
)

// VideoSource fetches metadata and media for video platforms.
type VideoSource interface {
	Metadata(ctx context.Context, url string) (*video.Metadata, error)
	Download(ctx context.Context, url string, source platform.Platform) (string, error)
	Cleanup(path string)
}

// RecipeExtractor turns text or video into a recipe using the language model.
type RecipeExtractor interface {
	ExtractFromText(ctx context.Context, text, title, sourceURL string, source platform.Platform, thumbnail string) (*models.Recipe, error)
	ExtractFromVideo(ctx context.Context, path, sourceURL string, source platform.Platform, thumbnail string) (*models.Recipe, error)
}

// WebsiteScraper extracts recipes from web pages and names the layer that succeeded.
type WebsiteScraper interface {
	Extract(ctx context.Context, url string) (*models.Recipe, string, error)
}

// RecipeStore is the cache surface used by extraction.
type RecipeStore interface {
	Enabled() bool
	Get(ctx context.Context, key string) (*cache.Entry, bool)
	Set(ctx context.Context, key string, recipe models.Recipe, canonicalURL, platform string) (*cache.Entry, error)
}

// HistoryRecorder persists extraction outcomes.
type HistoryRecorder interface {
	Record(ctx context.Context, entry HistoryEntry) error
}

// ExtractionRequest is a single extraction ask.
type ExtractionRequest struct {
	URL      string
	UseCache bool
}

// ExtractionResult describes a successful extraction.
type ExtractionResult struct {
	Recipe    *models.Recipe
	Platform  platform.Platform
	Source    string
	CacheKey  string
	FromCache bool
	CachedAt  *time.Time
}

// ExtractionError is returned by Extract once the platform is known, so callers can
// report it alongside the failure.
type ExtractionError struct {
	Platform platform.Platform
	Err      error
}

func (e *ExtractionError) Error() string { return e.Err.Error() }

func (e *ExtractionError) Unwrap() error { return e.Err }

// FailedPlatform returns the platform detected before err occurred, or
// platform.Unsupported when detection itself failed.
func FailedPlatform(err error) platform.Platform {
	var extractionErr *ExtractionError
	if errors.As(err, &extractionErr) {
		return extractionErr.Platform
	}
	return platform.Unsupported
}

// ExtractionOption customises an ExtractionService.
type ExtractionOption func(*ExtractionService)

// WithHistory records every extraction outcome through h.
func WithHistory(h HistoryRecorder) ExtractionOption {
	return func(s *ExtractionService) {
		s.history = h
	}
}

// WithExtractionClock overrides the clock used for durations.
func WithExtractionClock(now func() time.Time) ExtractionOption {
	return func(s *ExtractionService) {
		if now != nil {
			s.now = now
		}
	}
}

// ExtractionService runs the cache lookup and the per-platform extraction pipeline.
type ExtractionService struct {
	video     VideoSource
	extractor RecipeExtractor
	scraper   WebsiteScraper
	cache     RecipeStore
	history   HistoryRecorder
	log       *zap.Logger
	now       func() time.Time
}

// NewExtractionService wires the pipeline. store may be nil to disable caching.
func NewExtractionService(videos VideoSource, recipes RecipeExtractor, scraper WebsiteScraper, store RecipeStore, opts ...ExtractionOption) (*ExtractionService, error) {
	if videos == nil {
		return nil, errors.New("extraction service: video source is required")
	}
	if recipes == nil {
		return nil, errors.New("extraction service: recipe extractor is required")
	}
	if scraper == nil {
		return nil, errors.New("extraction service: website scraper is required")
	}

	svc := &ExtractionService{
		video:     videos,
		extractor: recipes,
		scraper:   scraper,
		cache:     store,
		log:       logger.WithModule("extraction"),
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Extract returns the recipe behind req.URL, serving it from cache when allowed.
// Unsupported URLs are rejected before any network or model call.
func (s *ExtractionService) Extract(ctx context.Context, req ExtractionRequest) (*ExtractionResult, error) {
	ctx = ensureContext(ctx)
	start := s.now()
	rawURL := strings.TrimSpace(req.URL)

	source := platform.Detect(rawURL)
	if source == platform.Unsupported {
		monitoring.RecordExtraction("unsupported", strings.ToLower(apperrors.ErrUnsupportedPlatform.Code), "failure", false, 0)
		return nil, apperrors.ErrUnsupportedPlatform
	}

	canonical, key := platform.NormalizeAndHash(rawURL, source)
	log := s.log.With(zap.String("url", rawURL), zap.String("platform", source.String()), zap.String("cache_key", key))

	if s.cachingEnabled() && req.UseCache {
		if entry, ok := s.cache.Get(ctx, key); ok {
			recipe := entry.Recipe
			cachedAt := entry.CachedAt
			result := &ExtractionResult{
				Recipe:    &recipe,
				Platform:  source,
				Source:    models.SourceCache,
				CacheKey:  key,
				FromCache: true,
				CachedAt:  &cachedAt,
			}
			s.finish(ctx, rawURL, result, nil, start)
			return result, nil
		}
	}

	var (
		recipe *models.Recipe
		layer  string
		err    error
	)
	if source.IsVideo() {
		recipe, layer, err = s.extractVideo(ctx, log, rawURL, source)
	} else {
		recipe, layer, err = s.scraper.Extract(ctx, rawURL)
	}
	if err != nil {
		failed := &ExtractionResult{Platform: source, CacheKey: key}
		s.finish(ctx, rawURL, failed, err, start)
		return nil, &ExtractionError{Platform: source, Err: err}
	}
	recipe.Normalize()

	result := &ExtractionResult{
		Recipe:   recipe,
		Platform: source,
		Source:   layer,
		CacheKey: key,
	}

	if s.cachingEnabled() {
		if _, err := s.cache.Set(ctx, key, *recipe, canonical, source.String()); err != nil {
			log.Warn("failed to cache recipe", zap.Error(err))
		}
	}

	s.finish(ctx, rawURL, result, nil, start)
	log.Info("recipe extracted", zap.String("source", layer), zap.Duration("duration", s.now().Sub(start)))
	return result, nil
}

func (s *ExtractionService) cachingEnabled() bool {
	return s.cache != nil && s.cache.Enabled()
}

// extractVideo tries the description, top comments, a linked recipe website and
// finally the video itself.
func (s *ExtractionService) extractVideo(ctx context.Context, log *zap.Logger, rawURL string, source platform.Platform) (*models.Recipe, string, error) {
	meta, err := s.video.Metadata(ctx, rawURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", ctxErr
		}
		log.Warn("video metadata unavailable, continuing without it", zap.Error(err))
		meta = &video.Metadata{}
	}

	description := strings.TrimSpace(meta.Description)
	if utf8.RuneCountInString(description) > minDescriptionRunes {
		recipe, err := s.extractor.ExtractFromText(ctx, description, meta.Title, rawURL, source, meta.Thumbnail)
		if done, err := layerOutcome(err); done {
			return recipe, models.SourceDescription, err
		}
		log.Debug("no recipe in description")
	}

	for i, comment := range meta.Comments {
		text := strings.TrimSpace(comment.Text)
		if !comment.AuthorIsUploader && utf8.RuneCountInString(text) <= minCommentRunes {
			continue
		}
		recipe, err := s.extractor.ExtractFromText(ctx, text, meta.Title, rawURL, source, meta.Thumbnail)
		if done, err := layerOutcome(err); done {
			return recipe, models.SourceComment, err
		}
		log.Debug("no recipe in comment", zap.Int("index", i))
	}

	if link := platform.ExtractWebsiteLink(description); link != "" {
		recipe, _, err := s.scraper.Extract(ctx, link)
		switch {
		case err == nil:
			recipe.Platform = source.String()
			if recipe.ThumbnailURL == "" {
				recipe.ThumbnailURL = meta.Thumbnail
			}
			return recipe, models.SourceLinkedWebsite, nil
		case errors.Is(err, apperrors.ErrNoRecipeFound), errors.Is(err, apperrors.ErrFetchFailed):
			log.Debug("linked website yielded no recipe", zap.String("link", link), zap.Error(err))
		default:
			return nil, "", err
		}
	}

	path, err := s.video.Download(ctx, rawURL, source)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", ctxErr
		}
		return nil, "", apperrors.ErrDownloadFailed.WithInternal(err)
	}
	defer s.video.Cleanup(path)

	recipe, err := s.extractor.ExtractFromVideo(ctx, path, rawURL, source, meta.Thumbnail)
	if done, err := layerOutcome(err); done {
		return recipe, models.SourceVideo, err
	}
	return nil, "", apperrors.ErrNoRecipeFound
}

// layerOutcome reports whether a model layer ended the pipeline, either with a
// recipe or with an error that must not fall through to the next layer.
func layerOutcome(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, extractor.ErrNoRecipe) {
		return false, nil
	}
	return true, err
}

func (s *ExtractionService) finish(ctx context.Context, rawURL string, result *ExtractionResult, err error, start time.Time) {
	duration := s.now().Sub(start)

	outcome, source, code := "success", result.Source, ""
	if err != nil {
		code = apperrors.FromError(err).Code
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			code = "CANCELED"
		}
		outcome, source = "failure", strings.ToLower(code)
	}
	monitoring.RecordExtraction(result.Platform.String(), source, outcome, result.FromCache, duration)

	if s.history == nil {
		return
	}
	entry := HistoryEntry{
		URL:       rawURL,
		Platform:  result.Platform.String(),
		CacheKey:  result.CacheKey,
		Success:   err == nil,
		ErrorCode: code,
		Source:    result.Source,
		FromCache: result.FromCache,
		Duration:  duration,
		Recipe:    result.Recipe,
	}
	if recErr := s.history.Record(context.WithoutCancel(ctx), entry); recErr != nil {
		s.log.Warn("failed to record extraction history", zap.String("url", rawURL), zap.Error(recErr))
	}
}
