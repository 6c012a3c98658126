package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/yourorg/bookswap/internal/domain"
	"github.com/yourorg/bookswap/internal/infrastructure/redis"
)

const listingCacheKey = "books:available"

// ListingCache is a short-TTL Redis view cache for the public
// available-books listing. All methods tolerate a nil cache or a failing
// Redis; callers fall back to the database.
type ListingCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewListingCache creates a listing cache. A nil redis client disables it.
func NewListingCache(redisClient *redis.Client, ttl time.Duration, logger *slog.Logger) *ListingCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ListingCache{redis: redisClient, ttl: ttl, logger: logger}
}

// Get returns the cached listing, or ok=false on miss or any cache failure
func (c *ListingCache) Get(ctx context.Context) ([]*domain.BookView, bool) {
	if c == nil || c.redis == nil {
		return nil, false
	}

	raw, err := c.redis.Get(ctx, listingCacheKey)
	if err != nil {
		if err != redis.ErrCacheMiss {
			c.logger.Debug("listing cache read failed", slog.String("error", err.Error()))
		}
		return nil, false
	}

	var books []*domain.BookView
	if err := json.Unmarshal([]byte(raw), &books); err != nil {
		c.logger.Debug("listing cache payload invalid", slog.String("error", err.Error()))
		return nil, false
	}
	return books, true
}

// Set stores the listing with the configured TTL
func (c *ListingCache) Set(ctx context.Context, books []*domain.BookView) {
	if c == nil || c.redis == nil {
		return
	}

	data, err := json.Marshal(books)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, listingCacheKey, string(data), c.ttl); err != nil {
		c.logger.Debug("listing cache write failed", slog.String("error", err.Error()))
	}
}

// Invalidate drops the cached listing after any availability write
func (c *ListingCache) Invalidate(ctx context.Context) {
	if c == nil || c.redis == nil {
		return
	}
	if err := c.redis.Delete(ctx, listingCacheKey); err != nil {
		c.logger.Debug("listing cache invalidation failed", slog.String("error", err.Error()))
	}
}
