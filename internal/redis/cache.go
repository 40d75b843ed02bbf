package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"carona/internal/domain"
)

// DefaultRatingCacheTTL bounds how stale a cached rating average can be.
const DefaultRatingCacheTTL = 60 * time.Second

const ratingCachePrefix = "cache:rating:"

// CachedRatingSummary represents a cached rating aggregate.
type CachedRatingSummary struct {
	PersonID string   `json:"person_id"`
	Role     string   `json:"role"`
	Average  *float64 `json:"average"`
	Count    int      `json:"count"`
}

// CacheStore handles read-through caching of rating aggregates in Redis.
type CacheStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCacheStore creates a new CacheStore. A non-positive ttl uses DefaultRatingCacheTTL.
func NewCacheStore(client *redis.Client, ttl time.Duration) *CacheStore {
	if ttl <= 0 {
		ttl = DefaultRatingCacheTTL
	}
	return &CacheStore{client: client, ttl: ttl}
}

// GetRatingSummary retrieves a rating summary from cache. A miss returns nil, nil.
func (s *CacheStore) GetRatingSummary(ctx context.Context, personID string, role domain.Role) (*domain.RatingSummary, error) {
	data, err := s.client.Get(ctx, ratingKey(personID, role)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var cached CachedRatingSummary
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}

	return &domain.RatingSummary{
		PersonID: cached.PersonID,
		Role:     domain.Role(cached.Role),
		Average:  cached.Average,
		Count:    cached.Count,
	}, nil
}

// SetRatingSummary stores a rating summary in cache.
func (s *CacheStore) SetRatingSummary(ctx context.Context, summary *domain.RatingSummary) error {
	data, err := json.Marshal(CachedRatingSummary{
		PersonID: summary.PersonID,
		Role:     string(summary.Role),
		Average:  summary.Average,
		Count:    summary.Count,
	})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, ratingKey(summary.PersonID, summary.Role), data, s.ttl).Err()
}

// InvalidateRatingSummary removes a rating summary from cache.
func (s *CacheStore) InvalidateRatingSummary(ctx context.Context, personID string, role domain.Role) error {
	return s.client.Del(ctx, ratingKey(personID, role)).Err()
}

func ratingKey(personID string, role domain.Role) string {
	return ratingCachePrefix + string(role) + ":" + personID
}
