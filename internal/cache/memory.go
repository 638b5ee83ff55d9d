package cache

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultMaxItems bounds the memory store when no limit is configured.
const DefaultMaxItems = 1000

type memoryEntry struct {
	value     []byte
	createdAt time.Time
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore is an in-process Store with per-key TTLs and a size bound. When full,
// expired entries are evicted first and then the oldest ones.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]memoryEntry
	maxItems int
	now      func() time.Time
}

// NewMemoryStore builds a memory store holding at most maxItems keys.
func NewMemoryStore(maxItems int) *MemoryStore {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &MemoryStore{
		entries:  make(map[string]memoryEntry),
		maxItems: maxItems,
		now:      time.Now,
	}
}

// MaxItems returns the configured bound.
func (s *MemoryStore) MaxItems() int {
	return s.maxItems
}

// IncrementWithTTL increments a counter, starting a new window when the previous one expired.
func (s *MemoryStore) IncrementWithTTL(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.entries[key]
	if !ok || entry.expired(now) {
		s.makeRoomLocked(now, key)
		s.entries[key] = memoryEntry{
			value:     []byte("1"),
			createdAt: now,
			expiresAt: now.Add(window),
		}
		return 1, window, nil
	}

	count, _ := strconv.ParseInt(string(entry.value), 10, 64)
	count++
	entry.value = []byte(strconv.FormatInt(count, 10))
	s.entries[key] = entry
	return count, entry.expiresAt.Sub(now), nil
}

// Set stores a copy of value. A non-positive ttl keeps the entry until evicted.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.makeRoomLocked(now, key)

	entry := memoryEntry{
		value:     append([]byte(nil), value...),
		createdAt: now,
	}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	s.entries[key] = entry
	return nil
}

// Get returns a copy of the stored value, dropping it when expired.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if entry.expired(s.now()) {
		delete(s.entries, key)
		return nil, false, nil
	}
	return append([]byte(nil), entry.value...), true, nil
}

// Delete removes keys and reports how many live entries existed.
func (s *MemoryStore) Delete(_ context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var removed int64
	for _, key := range keys {
		if entry, ok := s.entries[key]; ok {
			if !entry.expired(now) {
				removed++
			}
			delete(s.entries, key)
		}
	}
	return removed, nil
}

// Clear removes every key with the prefix and returns how many were still live.
func (s *MemoryStore) Clear(_ context.Context, prefix string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var removed int64
	for key, entry := range s.entries {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if !entry.expired(now) {
			removed++
		}
		delete(s.entries, key)
	}
	return removed, nil
}

// Len counts live keys with the prefix.
func (s *MemoryStore) Len(_ context.Context, prefix string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var total int64
	for key, entry := range s.entries {
		if strings.HasPrefix(key, prefix) && !entry.expired(now) {
			total++
		}
	}
	return total, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// PurgeExpired drops expired entries and returns how many were removed.
func (s *MemoryStore) PurgeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.purgeExpiredLocked(s.now())
}

func (s *MemoryStore) purgeExpiredLocked(now time.Time) int {
	removed := 0
	for key, entry := range s.entries {
		if entry.expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// makeRoomLocked guarantees space for key. Overwrites never evict.
func (s *MemoryStore) makeRoomLocked(now time.Time, key string) {
	if _, exists := s.entries[key]; exists {
		return
	}
	if len(s.entries) < s.maxItems {
		return
	}

	s.purgeExpiredLocked(now)
	for len(s.entries) >= s.maxItems {
		var (
			oldestKey string
			oldestAt  time.Time
			found     bool
		)
		for k, entry := range s.entries {
			if !found || entry.createdAt.Before(oldestAt) {
				oldestKey, oldestAt, found = k, entry.createdAt, true
			}
		}
		if !found {
			return
		}
		delete(s.entries, oldestKey)
	}
}
