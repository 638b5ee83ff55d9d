package cache

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/recipekeeper/internal/models"
)

// DatabaseStore implements Store on the application database.
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDatabaseStore constructs a database-backed Store.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	if db == nil {
		return nil
	}
	return &DatabaseStore{db: db, now: time.Now}
}

// IncrementWithTTL atomically increments a counter for the supplied key.
func (s *DatabaseStore) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if s == nil {
		return 0, 0, ErrStoreUnavailable
	}
	if window <= 0 {
		window = time.Minute
	}

	now := s.now()
	var (
		count  int64
		expiry time.Time
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.CacheEntry
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&entry, keyEquals(key)).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			count, expiry = 1, now.Add(window)
			return tx.Create(&models.CacheEntry{
				Key:       key,
				Value:     []byte("1"),
				ExpiresAt: expiry,
			}).Error
		}
		if err != nil {
			return err
		}

		if entry.Expired(now) {
			count, expiry = 1, now.Add(window)
		} else {
			current, _ := strconv.ParseInt(string(entry.Value), 10, 64)
			count, expiry = current+1, entry.ExpiresAt
		}
		entry.Value = []byte(strconv.FormatInt(count, 10))
		entry.ExpiresAt = expiry
		return tx.Save(&entry).Error
	})
	if err != nil {
		return 0, 0, err
	}

	return count, expiry.Sub(now), nil
}

// Set upserts the value for a given key with expiry.
func (s *DatabaseStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s == nil {
		return ErrStoreUnavailable
	}

	entry := models.CacheEntry{Key: key, Value: value}
	if ttl > 0 {
		entry.ExpiresAt = s.now().Add(ttl)
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
		}).Create(&entry).Error
}

// Get retrieves a value by key, respecting expiry.
func (s *DatabaseStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil {
		return nil, false, ErrStoreUnavailable
	}

	var entry models.CacheEntry
	err := s.db.WithContext(ctx).Take(&entry, keyEquals(key)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if entry.Expired(s.now()) {
		_, _ = s.Delete(ctx, key)
		return nil, false, nil
	}

	return entry.Value, true, nil
}

// Delete removes keys from the store.
func (s *DatabaseStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	if s == nil {
		return 0, ErrStoreUnavailable
	}
	if len(keys) == 0 {
		return 0, nil
	}

	result := s.db.WithContext(ctx).Where(keyEquals(keys)).Delete(&models.CacheEntry{})
	return result.RowsAffected, result.Error
}

// Clear removes every row whose key starts with prefix.
func (s *DatabaseStore) Clear(ctx context.Context, prefix string) (int64, error) {
	if s == nil {
		return 0, ErrStoreUnavailable
	}
	result := s.db.WithContext(ctx).
		Where(keyLike(prefix)).
		Delete(&models.CacheEntry{})
	return result.RowsAffected, result.Error
}

// Len counts unexpired rows whose key starts with prefix.
func (s *DatabaseStore) Len(ctx context.Context, prefix string) (int64, error) {
	if s == nil {
		return 0, ErrStoreUnavailable
	}
	var total int64
	err := s.db.WithContext(ctx).Model(&models.CacheEntry{}).
		Where(keyLike(prefix)).
		Where("expires_at IS NULL OR expires_at > ? OR expires_at = ?", s.now(), time.Time{}).
		Count(&total).Error
	return total, err
}

// Ping verifies the database connection.
func (s *DatabaseStore) Ping(ctx context.Context) error {
	if s == nil {
		return ErrStoreUnavailable
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// PurgeExpired deletes rows whose expiry has passed.
func (s *DatabaseStore) PurgeExpired(ctx context.Context) (int64, error) {
	if s == nil {
		return 0, ErrStoreUnavailable
	}
	result := s.db.WithContext(ctx).
		Where("expires_at > ? AND expires_at <= ?", time.Time{}, s.now()).
		Delete(&models.CacheEntry{})
	return result.RowsAffected, result.Error
}

// keyEquals matches one key or a slice of keys; the column is quoted because
// "key" is reserved in MySQL.
func keyEquals(value any) clause.Expression {
	if keys, ok := value.([]string); ok {
		values := make([]any, len(keys))
		for i, key := range keys {
			values[i] = key
		}
		return clause.IN{Column: clause.Column{Name: "key"}, Values: values}
	}
	return clause.Eq{Column: clause.Column{Name: "key"}, Value: value}
}

// keyLike matches keys starting with prefix. Prefixes are the package constants,
// which contain no wildcard characters.
func keyLike(prefix string) clause.Expression {
	return clause.Like{Column: clause.Column{Name: "key"}, Value: strings.TrimRight(prefix, "%") + "%"}
}
