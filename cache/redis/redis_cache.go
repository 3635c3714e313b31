package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the L2 tier of the two-tier availability cache, grounded
// directly on the teacher's RedisCacheRepository connection setup but
// generalized from a single booking_status key to an arbitrary byte-valued
// cache with tag-set invalidation for §4.K.
type Redis struct {
	client *redis.Client
}

func New(addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Redis{client: client}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, err
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// tagKey is the Redis set holding every cache key currently tagged with tag.
func tagKey(tag string) string {
	return fmt.Sprintf("tag:%s", tag)
}

// SetTagged stores value under key with ttl and records key in each tag's
// member set, so InvalidateTag can fan out a deletion across every page the
// tag covers (e.g. all availability pages touching one resource).
func (r *Redis) SetTagged(ctx context.Context, key string, tags []string, value []byte, ttl time.Duration) error {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, value, ttl)
	for _, tag := range tags {
		pipe.SAdd(ctx, tagKey(tag), key)
		pipe.Expire(ctx, tagKey(tag), ttl+time.Minute)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Redis) InvalidateTag(ctx context.Context, tag string) error {
	members, err := r.client.SMembers(ctx, tagKey(tag)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return err
	}
	if len(members) == 0 {
		return nil
	}
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, members...)
	pipe.Del(ctx, tagKey(tag))
	_, err = pipe.Exec(ctx)
	return err
}
