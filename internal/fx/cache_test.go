package fx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	rate  decimal.Decimal
	calls int
}

func (s *countingSource) Rate(ctx context.Context, code string, asOf time.Time) (decimal.Decimal, error) {
	s.calls++
	return s.rate, nil
}

func TestCachedSourceMemoizesPerDay(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	upstream := &countingSource{rate: decimal.RequireFromString("2.654321")}
	source := NewCachedSource(upstream, client, 10*time.Minute)
	ctx := context.Background()
	asOf := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	rate, err := source.Rate(ctx, "EUR", asOf)
	require.NoError(t, err)
	require.True(t, rate.Equal(upstream.rate))
	require.Equal(t, 1, upstream.calls)

	rate, err = source.Rate(ctx, "EUR", asOf.Add(3*time.Hour))
	require.NoError(t, err)
	require.True(t, rate.Equal(upstream.rate))
	require.Equal(t, 1, upstream.calls)

	_, err = source.Rate(ctx, "EUR", asOf.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Equal(t, 2, upstream.calls)

	_, err = source.Rate(ctx, "GBP", asOf)
	require.NoError(t, err)
	require.Equal(t, 3, upstream.calls)
}

func TestCachedSourceDegradesWithoutRedis(t *testing.T) {
	upstream := &countingSource{rate: decimal.RequireFromString("1.5")}
	source := NewCachedSource(upstream, nil, time.Minute)

	rate, err := source.Rate(context.Background(), "EUR", time.Now())
	require.NoError(t, err)
	require.True(t, rate.Equal(upstream.rate))
	require.Equal(t, 1, upstream.calls)
}
