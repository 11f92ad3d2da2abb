package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache memoizes lookup results in Redis so repeated imports of the
// same supplier file do not hammer the external source. A nil Redis
// client is valid and passes every call through to the inner lookup.
type Cache struct {
	client *redis.Client
	inner  LookupPort
	ttl    time.Duration
}

// NewCache wraps a lookup with a Redis-backed cache.
func NewCache(client *redis.Client, inner LookupPort, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{client: client, inner: inner, ttl: ttl}
}

type cachedResult struct {
	Found  bool   `json:"found"`
	Result Result `json:"result"`
}

// Lookup returns the cached result for the GTIN, falling back to the
// inner lookup on a miss. Negative answers are cached too, so a GTIN
// the source does not know stays cheap across re-imports.
func (c *Cache) Lookup(ctx context.Context, gtin string) (Result, error) {
	if c.client == nil {
		return c.inner.Lookup(ctx, gtin)
	}

	key := "enrich:gtin:" + gtin
	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var entry cachedResult
		if err := json.Unmarshal(raw, &entry); err == nil {
			if !entry.Found {
				return Result{}, ErrNotFound
			}
			return entry.Result, nil
		}
	}

	result, err := c.inner.Lookup(ctx, gtin)
	switch {
	case err == nil:
		c.store(ctx, key, cachedResult{Found: true, Result: result})
		return result, nil
	case errors.Is(err, ErrNotFound):
		c.store(ctx, key, cachedResult{Found: false})
		return Result{}, ErrNotFound
	default:
		return Result{}, err
	}
}

func (c *Cache) store(ctx context.Context, key string, entry cachedResult) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	// Cache write failures are not worth failing a lookup over.
	_ = c.client.Set(ctx, key, raw, c.ttl).Err()
}
