package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"carona/internal/domain"
)

// LockStore is an in-memory redis.LockStoreInterface. TTLs are ignored.
type LockStore struct {
	mu     sync.Mutex
	locks  map[string]string
	serial int

	// Error injection
	AcquireError error
}

// NewLockStore creates an empty lock store.
func NewLockStore() *LockStore {
	return &LockStore{locks: make(map[string]string)}
}

func (m *LockStore) AcquireRequestLock(ctx context.Context, requestID string, ttl time.Duration) (string, error) {
	if m.AcquireError != nil {
		return "", m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.locks[requestID]; held {
		return "", nil
	}
	m.serial++
	token := fmt.Sprintf("token-%d", m.serial)
	m.locks[requestID] = token
	return token, nil
}

func (m *LockStore) ReleaseRequestLock(ctx context.Context, requestID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[requestID] == token {
		delete(m.locks, requestID)
	}
	return nil
}

// Held reports whether the request lock is currently held.
func (m *LockStore) Held(requestID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, held := m.locks[requestID]
	return held
}

// RatingCache is an in-memory redis.RatingCacheInterface.
type RatingCache struct {
	mu        sync.Mutex
	summaries map[string]domain.RatingSummary

	// Error injection
	GetError error
}

// NewRatingCache creates an empty rating cache.
func NewRatingCache() *RatingCache {
	return &RatingCache{summaries: make(map[string]domain.RatingSummary)}
}

func (m *RatingCache) GetRatingSummary(ctx context.Context, personID string, role domain.Role) (*domain.RatingSummary, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	summary, ok := m.summaries[cacheKey(personID, role)]
	if !ok {
		return nil, nil
	}
	return &summary, nil
}

func (m *RatingCache) SetRatingSummary(ctx context.Context, summary *domain.RatingSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[cacheKey(summary.PersonID, summary.Role)] = *summary
	return nil
}

func (m *RatingCache) InvalidateRatingSummary(ctx context.Context, personID string, role domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.summaries, cacheKey(personID, role))
	return nil
}

// Cached reports whether a summary is cached for the person and role.
func (m *RatingCache) Cached(personID string, role domain.Role) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.summaries[cacheKey(personID, role)]
	return ok
}

func cacheKey(personID string, role domain.Role) string {
	return string(role) + ":" + personID
}
