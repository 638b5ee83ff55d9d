package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/recipekeeper/internal/models"
	"github.com/charlesng35/recipekeeper/internal/services"
	"github.com/charlesng35/recipekeeper/pkg/errors"
	"github.com/charlesng35/recipekeeper/pkg/response"
)

// HistoryLister pages through recorded extractions.
type HistoryLister interface {
	List(ctx context.Context, opts services.HistoryListOptions) ([]models.ExtractionRecord, int64, error)
}

type ExtractionsHandler struct {
	history HistoryLister
}

func NewExtractionsHandler(history HistoryLister) *ExtractionsHandler {
	return &ExtractionsHandler{history: history}
}

// GET /api/extractions
func (h *ExtractionsHandler) List(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	limit := parseIntQuery(c, "limit", parseIntQuery(c, "per_page", 0))
	page, limit = services.NormalizePage(page, limit)

	var filters services.HistoryFilters
	filters.Platform = strings.ToLower(strings.TrimSpace(c.Query("platform")))
	if raw := strings.TrimSpace(c.Query("success")); raw != "" {
		if ok, err := strconv.ParseBool(raw); err == nil {
			filters.Success = &ok
		}
	}

	records, total, err := h.history.List(requestContext(c), services.HistoryListOptions{
		Page:     page,
		PageSize: limit,
		Filters:  filters,
	})
	if err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, records, response.NewMeta(page, limit, total))
}
