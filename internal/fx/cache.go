package fx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// RateSource is the upstream a cache wraps.
type RateSource interface {
	Rate(ctx context.Context, code string, asOf time.Time) (decimal.Decimal, error)
}

// CachedSource memoizes rates per currency and day in Redis. Rate lookups
// happen on every draft edit, so the hot path avoids the rate store.
type CachedSource struct {
	upstream RateSource
	client   *redis.Client
	ttl      time.Duration
}

// NewCachedSource wraps an upstream rate source with a Redis cache.
func NewCachedSource(upstream RateSource, client *redis.Client, ttl time.Duration) *CachedSource {
	return &CachedSource{upstream: upstream, client: client, ttl: ttl}
}

func cacheKey(code string, asOf time.Time) string {
	return fmt.Sprintf("fx:rate:%s:%s", code, asOf.Format("2006-01-02"))
}

// Rate serves from cache when possible, falling back to the upstream. Cache
// failures degrade to upstream lookups rather than failing the request.
func (c *CachedSource) Rate(ctx context.Context, code string, asOf time.Time) (decimal.Decimal, error) {
	if c.client == nil {
		return c.upstream.Rate(ctx, code, asOf)
	}

	key := cacheKey(code, asOf)
	raw, err := c.client.Get(ctx, key).Result()
	if err == nil {
		if rate, perr := decimal.NewFromString(raw); perr == nil {
			return rate, nil
		}
	} else if err != redis.Nil {
		return c.upstream.Rate(ctx, code, asOf)
	}

	rate, err := c.upstream.Rate(ctx, code, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	_ = c.client.Set(ctx, key, rate.String(), c.ttl).Err()
	return rate, nil
}
