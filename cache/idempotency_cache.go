package cache

import (
	"context"
	"encoding/json"
	"time"
)

// IdempotencyCache is the fast tier in front of the durable idempotency
// store (§4.E): a completed record answers a repeated confirm without a
// database round trip. It wraps the same Cache interface the availability
// tiers use rather than inventing a new storage shape. It is populated on a
// durable-store hit for a completed record (cache-first, fall back to
// durable, populate cache on hit) and right after a confirm completes.
type IdempotencyCache struct {
	backing Cache
	ttl     time.Duration
}

func NewIdempotencyCache(backing Cache, ttl time.Duration) *IdempotencyCache {
	return &IdempotencyCache{backing: backing, ttl: ttl}
}

type idempotencyCacheEntry struct {
	Status   string         `json:"status"`
	Response map[string]any `json:"response,omitempty"`
}

// Get returns the cached status and response for (tenant, key), ok=false
// on a miss or a corrupt entry (treated the same as a miss: fall through
// to the durable store).
func (c *IdempotencyCache) Get(ctx context.Context, tenant, key string) (status string, response map[string]any, ok bool) {
	raw, hit, err := c.backing.Get(ctx, idempotencyCacheKey(tenant, key))
	if err != nil || !hit {
		return "", nil, false
	}
	var e idempotencyCacheEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return "", nil, false
	}
	return e.Status, e.Response, true
}

func (c *IdempotencyCache) Set(ctx context.Context, tenant, key, status string, response map[string]any) {
	body, err := json.Marshal(idempotencyCacheEntry{Status: status, Response: response})
	if err != nil {
		return
	}
	_ = c.backing.Set(ctx, idempotencyCacheKey(tenant, key), body, c.ttl)
}

func idempotencyCacheKey(tenant, key string) string {
	return "idem:" + tenant + ":" + key
}
