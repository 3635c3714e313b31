package lru

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// LRU is the L1 in-process tier of the two-tier availability cache (§4.K),
// sized by cache.lru_size. There is no teacher precedent for an in-process
// tier — the teacher goes straight to Redis — so this is grounded on
// hashicorp/golang-lru's own documented usage rather than an adapted
// teacher file (see DESIGN.md).
type LRU struct {
	cache *lru.Cache[string, entry]
}

func New(size int) (*LRU, error) {
	c, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &LRU{cache: c}, nil
}

func (l *LRU) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := l.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(e.expiresAt) {
		l.cache.Remove(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (l *LRU) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	l.cache.Add(key, entry{value: value, expiresAt: time.Now().Add(ttl)})
	return nil
}

func (l *LRU) Delete(_ context.Context, key string) error {
	l.cache.Remove(key)
	return nil
}

func (l *LRU) Ping(_ context.Context) error { return nil }
