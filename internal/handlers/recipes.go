package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/recipekeeper/internal/models"
	"github.com/charlesng35/recipekeeper/internal/platform"
	"github.com/charlesng35/recipekeeper/internal/services"
	appErrors "github.com/charlesng35/recipekeeper/pkg/errors"
	"github.com/charlesng35/recipekeeper/pkg/logger"
	"github.com/charlesng35/recipekeeper/pkg/response"
	appValidator "github.com/charlesng35/recipekeeper/pkg/validator"
)

// ExtractionRunner runs a recipe extraction.
type ExtractionRunner interface {
	Extract(ctx context.Context, req services.ExtractionRequest) (*services.ExtractionResult, error)
}

// RecipeHandler serves the extraction endpoint.
type RecipeHandler struct {
	svc ExtractionRunner
	log *zap.Logger
}

// NewRecipeHandler constructs a RecipeHandler.
func NewRecipeHandler(svc ExtractionRunner) *RecipeHandler {
	return &RecipeHandler{svc: svc, log: logger.WithModule("http")}
}

type extractRecipeRequest struct {
	URL      string `json:"url" validate:"required,max=2048"`
	UseCache *bool  `json:"use_cache"`
}

// ExtractRecipeResponse is the payload of POST /api/extract-recipe. It keeps the
// same shape for successes and failures.
type ExtractRecipeResponse struct {
	Success   bool           `json:"success"`
	Platform  string         `json:"platform,omitempty"`
	Recipe    *models.Recipe `json:"recipe,omitempty"`
	Source    string         `json:"source,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorCode string         `json:"error_code,omitempty"`
	FromCache bool           `json:"from_cache"`
	CachedAt  *time.Time     `json:"cached_at,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// POST /api/extract-recipe
func (h *RecipeHandler) Extract(c *gin.Context) {
	var req extractRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, appErrors.NewBadRequest("invalid JSON payload"))
		return
	}
	if err := appValidator.ValidateStruct(&req); err != nil {
		h.fail(c, appErrors.NewBadRequest(formatValidationError(err)))
		return
	}
	rawURL := platform.EnsureScheme(req.URL)
	if !appValidator.IsHTTPURL(rawURL) {
		h.fail(c, appErrors.ErrUnsupportedPlatform)
		return
	}

	useCache := true
	if req.UseCache != nil {
		useCache = *req.UseCache
	}

	result, err := h.svc.Extract(requestContext(c), services.ExtractionRequest{URL: rawURL, UseCache: useCache})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, ExtractRecipeResponse{
		Success:   true,
		Platform:  result.Platform.String(),
		Recipe:    result.Recipe,
		Source:    result.Source,
		FromCache: result.FromCache,
		CachedAt:  result.CachedAt,
		RequestID: c.GetString(response.RequestIDKey),
	})
}

func (h *RecipeHandler) fail(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		appErr = appErrors.ErrServiceUnavailable.WithMessage("Extraction timed out, please retry").WithInternal(err)
	}
	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	fields := []zap.Field{
		zap.String("code", appErr.Code),
		zap.Int("status", status),
		zap.String("request_id", c.GetString(response.RequestIDKey)),
	}
	if appErr.Internal != nil {
		fields = append(fields, zap.Error(appErr.Internal))
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("recipe extraction failed", fields...)
	} else {
		h.log.Info("recipe extraction rejected", fields...)
	}

	c.JSON(status, ExtractRecipeResponse{
		Success:   false,
		Platform:  services.FailedPlatform(err).String(),
		Error:     appErr.Message,
		ErrorCode: appErr.Code,
		RequestID: c.GetString(response.RequestIDKey),
	})
}
