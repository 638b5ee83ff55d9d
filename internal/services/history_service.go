package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/recipekeeper/internal/models"
)

const (
	defaultHistoryPageSize = 20
	maxHistoryPageSize     = 100
)

// HistoryEntry captures a single extraction outcome to persist.
type HistoryEntry struct {
	URL       string
	Platform  string
	CacheKey  string
	Success   bool
	ErrorCode string
	Source    string
	FromCache bool
	Duration  time.Duration
	Recipe    *models.Recipe
}

// HistoryFilters narrows history queries.
type HistoryFilters struct {
	Platform string
	Success  *bool
}

// HistoryListOptions controls pagination and filtering for history queries.
type HistoryListOptions struct {
	Page     int
	PageSize int
	Filters  HistoryFilters
}

// HistoryService persists and retrieves extraction records.
type HistoryService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewHistoryService constructs a HistoryService using the provided database handle.
func NewHistoryService(db *gorm.DB) (*HistoryService, error) {
	if db == nil {
		return nil, errors.New("history service: db is required")
	}
	return &HistoryService{db: db, now: time.Now}, nil
}

// Record stores an extraction outcome, snapshotting the recipe as JSON.
func (s *HistoryService) Record(ctx context.Context, entry HistoryEntry) error {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(entry.URL) == "" {
		return errors.New("history service: url is required")
	}

	record := models.ExtractionRecord{
		URL:        strings.TrimSpace(entry.URL),
		Platform:   strings.TrimSpace(entry.Platform),
		CacheKey:   strings.TrimSpace(entry.CacheKey),
		Success:    entry.Success,
		ErrorCode:  strings.TrimSpace(entry.ErrorCode),
		Source:     strings.TrimSpace(entry.Source),
		FromCache:  entry.FromCache,
		DurationMS: entry.Duration.Milliseconds(),
		Recipe:     datatypes.JSON("null"),
	}

	if entry.Recipe != nil {
		encoded, err := json.Marshal(entry.Recipe)
		if err != nil {
			return fmt.Errorf("history service: marshal recipe: %w", err)
		}
		record.Recipe = datatypes.JSON(encoded)
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("history service: create record: %w", err)
	}
	return nil
}

// List returns paginated extraction records ordered by creation time descending.
func (s *HistoryService) List(ctx context.Context, opts HistoryListOptions) ([]models.ExtractionRecord, int64, error) {
	ctx = ensureContext(ctx)

	page, perPage := NormalizePage(opts.Page, opts.PageSize)

	var (
		results []models.ExtractionRecord
		total   int64
	)

	query := s.db.WithContext(ctx).Model(&models.ExtractionRecord{})
	query = applyHistoryFilters(query, opts.Filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("history service: count records: %w", err)
	}

	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&results).Error; err != nil {
		return nil, 0, fmt.Errorf("history service: list records: %w", err)
	}

	return results, total, nil
}

// CleanupOlderThan removes records older than the supplied retention window (in days).
func (s *HistoryService) CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	ctx = ensureContext(ctx)

	if retentionDays <= 0 {
		return 0, errors.New("history service: retentionDays must be positive")
	}

	cutoff := s.now().AddDate(0, 0, -retentionDays)

	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.ExtractionRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("history service: cleanup records: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// NormalizePage clamps pagination input to the supported range.
func NormalizePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultHistoryPageSize
	}
	if pageSize > maxHistoryPageSize {
		pageSize = maxHistoryPageSize
	}
	return page, pageSize
}

func applyHistoryFilters(query *gorm.DB, filters HistoryFilters) *gorm.DB {
	if filters.Platform != "" {
		query = query.Where("platform = ?", filters.Platform)
	}
	if filters.Success != nil {
		query = query.Where("success = ?", *filters.Success)
	}
	return query
}
