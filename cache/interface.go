package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value tier, the shape the teacher's
// RedisCacheRepository narrows down to a single booking-status key —
// generalized here so the same interface backs both the in-process LRU
// tier and the Redis tier of the two-tier availability cache (§4.K).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// TaggedCache additionally supports invalidating every key that was Set
// under a given tag, for the availability cache's "a reserve/release on
// resource R invalidates every cached availability page touching R"
// requirement.
type TaggedCache interface {
	Cache
	SetTagged(ctx context.Context, key string, tags []string, value []byte, ttl time.Duration) error
	InvalidateTag(ctx context.Context, tag string) error
}
