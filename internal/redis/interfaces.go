package redis

import (
	"context"
	"time"

	"carona/internal/domain"
)

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireRequestLock(ctx context.Context, requestID string, ttl time.Duration) (string, error)
	ReleaseRequestLock(ctx context.Context, requestID, token string) error
}

// RatingCacheInterface defines the interface for rating aggregate caching.
type RatingCacheInterface interface {
	GetRatingSummary(ctx context.Context, personID string, role domain.Role) (*domain.RatingSummary, error)
	SetRatingSummary(ctx context.Context, summary *domain.RatingSummary) error
	InvalidateRatingSummary(ctx context.Context, personID string, role domain.Role) error
}

// Ensure concrete types implement interfaces.
var (
	_ LockStoreInterface   = (*LockStore)(nil)
	_ RatingCacheInterface = (*CacheStore)(nil)
)
