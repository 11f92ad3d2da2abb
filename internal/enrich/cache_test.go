package enrich

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// fakeLookup counts calls and returns a canned answer per GTIN.
type fakeLookup struct {
	calls   int
	results map[string]Result
}

func (f *fakeLookup) Lookup(_ context.Context, gtin string) (Result, error) {
	f.calls++
	if r, ok := f.results[gtin]; ok {
		return r, nil
	}
	return Result{}, ErrNotFound
}

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestCacheMemoizesPositiveLookup(t *testing.T) {
	inner := &fakeLookup{results: map[string]Result{
		"4006381333931": {Name: "Gauze Pads", Brand: "Hartmann", EnrichedFields: []string{"brand"}},
	}}
	cache := NewCache(testRedis(t), inner, time.Hour)
	ctx := context.Background()

	first, err := cache.Lookup(ctx, "4006381333931")
	require.NoError(t, err)
	require.Equal(t, "Hartmann", first.Brand)

	second, err := cache.Lookup(ctx, "4006381333931")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, inner.calls)
}

func TestCacheMemoizesNegativeLookup(t *testing.T) {
	inner := &fakeLookup{}
	cache := NewCache(testRedis(t), inner, time.Hour)
	ctx := context.Background()

	_, err := cache.Lookup(ctx, "04210000526001")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = cache.Lookup(ctx, "04210000526001")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 1, inner.calls)
}

func TestCacheMemoizesWrappedNotFound(t *testing.T) {
	calls := 0
	inner := lookupFunc(func(context.Context, string) (Result, error) {
		calls++
		return Result{}, fmt.Errorf("enrichment source: %w", ErrNotFound)
	})
	cache := NewCache(testRedis(t), inner, time.Hour)
	ctx := context.Background()

	_, err := cache.Lookup(ctx, "4006381333931")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = cache.Lookup(ctx, "4006381333931")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 1, calls)
}

func TestCacheWithoutRedisPassesThrough(t *testing.T) {
	inner := &fakeLookup{results: map[string]Result{"4006381333931": {Name: "Gauze"}}}
	cache := NewCache(nil, inner, 0)
	ctx := context.Background()

	for range 3 {
		result, err := cache.Lookup(ctx, "4006381333931")
		require.NoError(t, err)
		require.Equal(t, "Gauze", result.Name)
	}
	require.Equal(t, 3, inner.calls)
}
