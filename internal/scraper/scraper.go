// Package scraper extracts recipes from ordinary web pages, trying structured
// data first and falling back to heuristics and finally the language model.
package scraper

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/charlesng35/recipekeeper/internal/extractor"
	"github.com/charlesng35/recipekeeper/internal/models"
	"github.com/charlesng35/recipekeeper/internal/platform"
	apperrors "github.com/charlesng35/recipekeeper/pkg/errors"
	"github.com/charlesng35/recipekeeper/pkg/logger"
)

// PageFetcher downloads a web page.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

// TextExtractor asks the language model for a recipe found in free text.
type TextExtractor interface {
	ExtractFromText(ctx context.Context, text, title, sourceURL string, source platform.Platform, thumbnail string) (*models.Recipe, error)
}

// Scraper runs the website extraction chain.
type Scraper struct {
	fetcher PageFetcher
	ai      TextExtractor
	log     *zap.Logger
}

// New creates a Scraper. ai may be nil, in which case the model fallback is skipped.
func New(fetcher PageFetcher, ai TextExtractor) *Scraper {
	return &Scraper{
		fetcher: fetcher,
		ai:      ai,
		log:     logger.WithModule("scraper"),
	}
}

// Extract fetches rawURL and returns the first recipe any layer produces along
// with the name of that layer.
func (s *Scraper) Extract(ctx context.Context, rawURL string) (*models.Recipe, string, error) {
	page, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", ctxErr
		}
		return nil, "", apperrors.ErrFetchFailed.WithInternal(err)
	}

	sourceURL := page.FinalURL
	if sourceURL == "" {
		sourceURL = rawURL
	}

	recipe, source, err := s.extractFromPage(ctx, page.HTML, sourceURL)
	if err != nil {
		return nil, "", err
	}
	if recipe.Author == "" {
		recipe.Author = AuthorFromURL(sourceURL)
	}
	s.log.Info("website recipe extracted",
		zap.String("url", sourceURL),
		zap.String("source", source),
		zap.Int("ingredients", len(recipe.Ingredients)),
		zap.Int("steps", len(recipe.Steps)),
	)
	return recipe, source, nil
}

func (s *Scraper) extractFromPage(ctx context.Context, rawHTML, sourceURL string) (*models.Recipe, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, "", apperrors.ErrFetchFailed.WithInternal(err)
	}

	if recipe := ExtractSchemaOrg(doc, sourceURL); recipe != nil {
		return recipe, models.SourceSchemaOrg, nil
	}
	if recipe, plugin := ExtractWordPress(doc, sourceURL); recipe != nil {
		s.log.Debug("wordpress plugin matched", zap.String("plugin", plugin), zap.String("url", sourceURL))
		return recipe, models.SourceWordPress, nil
	}
	if recipe := ExtractMicrodata(doc, sourceURL); recipe != nil {
		return recipe, models.SourceMicrodata, nil
	}
	if recipe := ExtractHeuristic(doc, sourceURL); recipe != nil {
		return recipe, models.SourceHeuristic, nil
	}

	if s.ai == nil {
		return nil, "", apperrors.ErrNoRecipeFound
	}
	recipe, err := s.fromModel(ctx, rawHTML, sourceURL)
	if err != nil {
		return nil, "", err
	}
	return recipe, models.SourceAI, nil
}

func (s *Scraper) fromModel(ctx context.Context, rawHTML, sourceURL string) (*models.Recipe, error) {
	title, text, err := PageText(rawHTML)
	if err != nil || text == "" {
		return nil, apperrors.ErrNoRecipeFound
	}

	recipe, err := s.ai.ExtractFromText(ctx, text, title, sourceURL, platform.Website, "")
	switch {
	case err == nil:
		return recipe, nil
	case errors.Is(err, extractor.ErrNoRecipe):
		s.log.Debug("model found no recipe on page", zap.String("url", sourceURL), zap.Error(err))
		return nil, apperrors.ErrNoRecipeFound
	default:
		return nil, err
	}
}

// AuthorFromURL names a site after the first label of its host, so
// "https://www.natashaskitchen.com/x" becomes "natashaskitchen".
func AuthorFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := parsed.Host
	if host == "" {
		host = parsed.Path
	}
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	label, _, _ := strings.Cut(host, ".")
	label, _, _ = strings.Cut(label, ":")
	return label
}
