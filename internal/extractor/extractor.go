// Package extractor turns free text and cooking videos into recipes with Gemini.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/charlesng35/recipekeeper/internal/breaker"
	"github.com/charlesng35/recipekeeper/internal/models"
	"github.com/charlesng35/recipekeeper/internal/monitoring"
	"github.com/charlesng35/recipekeeper/internal/platform"
	apperrors "github.com/charlesng35/recipekeeper/pkg/errors"
	"github.com/charlesng35/recipekeeper/pkg/logger"
)

const (
	defaultRequestsPerMinute = 15
	defaultCallTimeout       = 2 * time.Minute

	operationText  = "text"
	operationVideo = "video"
)

// Config tunes request pacing and protection around the model.
type Config struct {
	RequestsPerMinute int
	Timeout           time.Duration
	Breaker           breaker.Settings
}

// Extractor paces, guards and parses calls to a Model.
type Extractor struct {
	model   Model
	limiter *rate.Limiter
	breaker *breaker.Breaker
	timeout time.Duration
	log     *zap.Logger
}

// New wraps model with a rate limiter and circuit breaker.
func New(model Model, cfg Config) (*Extractor, error) {
	if model == nil {
		return nil, errors.New("extractor: model is required")
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = defaultRequestsPerMinute
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	settings := cfg.Breaker
	if settings.Name == "" {
		settings.Name = "gemini"
	}
	settings.IsSuccessful = countsAsHealthy

	return &Extractor{
		model:   model,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm),
		breaker: breaker.New(settings),
		timeout: timeout,
		log:     logger.WithModule("extractor"),
	}, nil
}

// Breaker exposes the circuit guarding the model.
func (e *Extractor) Breaker() *breaker.Breaker {
	return e.breaker
}

// ExtractFromText extracts a recipe from a description, comment or page text.
func (e *Extractor) ExtractFromText(ctx context.Context, text, title, sourceURL string, source platform.Platform, thumbnail string) (*models.Recipe, error) {
	prompt := TextPrompt(title, text)
	return e.extract(ctx, operationText, sourceURL, source, thumbnail, func(ctx context.Context) (string, error) {
		return e.model.GenerateText(ctx, prompt)
	})
}

// ExtractFromVideo uploads a downloaded video and extracts a recipe from it.
func (e *Extractor) ExtractFromVideo(ctx context.Context, path, sourceURL string, source platform.Platform, thumbnail string) (*models.Recipe, error) {
	return e.extract(ctx, operationVideo, sourceURL, source, thumbnail, func(ctx context.Context) (string, error) {
		return e.model.GenerateFromVideo(ctx, path, VideoPrompt())
	})
}

// extract returns ErrNoRecipe for anything that is not a quota problem, an open
// circuit or a cancelled request.
func (e *Extractor) extract(ctx context.Context, operation, sourceURL string, source platform.Platform, thumbnail string, call func(context.Context) (string, error)) (*models.Recipe, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("extractor: wait for rate limiter: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	raw, err := breaker.Execute(e.breaker, func() (string, error) {
		return call(callCtx)
	})
	duration := time.Since(start)

	if err != nil {
		return nil, e.classify(ctx, operation, err, duration)
	}

	recipe, err := ParseResponse(raw, sourceURL, source, thumbnail)
	if err != nil {
		monitoring.RecordGeminiCall(operation, "no_recipe", err.Error(), duration)
		e.log.Debug("model found no recipe", zap.String("operation", operation), zap.Error(err))
		return nil, err
	}

	monitoring.RecordGeminiCall(operation, "success", "", duration)
	return recipe, nil
}

func (e *Extractor) classify(ctx context.Context, operation string, err error, duration time.Duration) error {
	switch {
	case errors.Is(err, breaker.ErrOpen):
		monitoring.RecordGeminiCall(operation, "failure", "circuit open", duration)
		return apperrors.ErrAIUnavailable.WithInternal(err)
	case IsQuotaError(err):
		monitoring.RecordGeminiCall(operation, "quota_exceeded", err.Error(), duration)
		e.log.Warn("gemini quota exceeded", zap.String("operation", operation), zap.Error(err))
		return apperrors.ErrQuotaExceeded.WithInternal(err)
	case ctx.Err() != nil:
		monitoring.RecordGeminiCall(operation, "failure", ctx.Err().Error(), duration)
		return ctx.Err()
	case errors.Is(err, ErrVideoProcessingFailed):
		monitoring.RecordGeminiCall(operation, "no_recipe", err.Error(), duration)
		return fmt.Errorf("%w: %w", ErrNoRecipe, err)
	default:
		monitoring.RecordGeminiCall(operation, "failure", err.Error(), duration)
		e.log.Warn("gemini call failed", zap.String("operation", operation), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrNoRecipe, err)
	}
}

// countsAsHealthy lists the errors that do not count toward opening the breaker.
func countsAsHealthy(err error) bool {
	return err == nil ||
		IsQuotaError(err) ||
		errors.Is(err, ErrVideoProcessingFailed) ||
		errors.Is(err, context.Canceled)
}
