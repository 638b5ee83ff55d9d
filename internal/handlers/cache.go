package handlers

import (
	"context"
	stdErrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/recipekeeper/internal/cache"
	"github.com/charlesng35/recipekeeper/internal/platform"
	"github.com/charlesng35/recipekeeper/pkg/errors"
	"github.com/charlesng35/recipekeeper/pkg/response"
)

// CacheAdmin is the cache surface exposed to operators.
type CacheAdmin interface {
	Stats(ctx context.Context) cache.Stats
	Delete(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context) (int64, error)
}

type CacheHandler struct {
	cache CacheAdmin
}

func NewCacheHandler(admin CacheAdmin) *CacheHandler {
	return &CacheHandler{cache: admin}
}

// GET /api/cache/stats
func (h *CacheHandler) Stats(c *gin.Context) {
	response.Success(c, http.StatusOK, h.cache.Stats(requestContext(c)))
}

// DELETE /api/cache/:key
func (h *CacheHandler) Delete(c *gin.Context) {
	key := strings.ToLower(strings.TrimSpace(c.Param("key")))
	if !platform.IsCacheKey(key) {
		response.Error(c, errors.NewBadRequest("cache key must be 16 hexadecimal characters"))
		return
	}

	deleted, err := h.cache.Delete(requestContext(c), key)
	if err != nil {
		response.Error(c, primaryUnavailable(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"key": key, "deleted": deleted})
}

// DELETE /api/cache
func (h *CacheHandler) Clear(c *gin.Context) {
	cleared, err := h.cache.Clear(requestContext(c))
	if err != nil {
		response.Error(c, primaryUnavailable(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"cleared": cleared})
}

func primaryUnavailable(err error) *errors.AppError {
	appErr := errors.ErrServiceUnavailable.WithInternal(err)
	if stdErrors.Is(err, cache.ErrPrimaryUnavailable) {
		appErr = appErr.WithMessage("Cache store unavailable; entries were only removed from memory, retry shortly")
	}
	return appErr
}
