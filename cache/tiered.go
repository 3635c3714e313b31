package cache

import (
	"context"
	"log"
	"time"
)

// Tiered reads L1 (in-process LRU) before falling through to L2 (Redis),
// back-filling L1 on an L2 hit. Writes and deletes go to both tiers; tag
// invalidation reaches L2 only (see InvalidateTag). This composition is new relative to the teacher, which only
// ever had one cache tier — see DESIGN.md.
type Tiered struct {
	L1 Cache
	L2 TaggedCache
}

func NewTiered(l1 Cache, l2 TaggedCache) *Tiered {
	return &Tiered{L1: l1, L2: l2}
}

func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok, err := t.L1.Get(ctx, key); err == nil && ok {
		return v, true, nil
	}
	v, ok, err := t.L2.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if ok {
		if err := t.L1.Set(ctx, key, v, 30*time.Second); err != nil {
			log.Printf("cache: failed to backfill L1 for %s: %v", key, err)
		}
	}
	return v, ok, nil
}

func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := t.L1.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return t.L2.Set(ctx, key, value, ttl)
}

func (t *Tiered) SetTagged(ctx context.Context, key string, tags []string, value []byte, ttl time.Duration) error {
	if err := t.L1.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return t.L2.SetTagged(ctx, key, tags, value, ttl)
}

func (t *Tiered) Delete(ctx context.Context, key string) error {
	if err := t.L1.Delete(ctx, key); err != nil {
		return err
	}
	return t.L2.Delete(ctx, key)
}

// InvalidateTag drops every L2 key under tag. L1 is not tag-indexed, so a
// stale L1 entry can survive until its own short TTL expires.
func (t *Tiered) InvalidateTag(ctx context.Context, tag string) error {
	return t.L2.InvalidateTag(ctx, tag)
}

func (t *Tiered) Ping(ctx context.Context) error {
	return t.L2.Ping(ctx)
}
