package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// tombstone is not valid JSON, so it can never collide with a cached value.
const tombstone = "\x00deleted"

// JSONCache is a cache-aside store for read models. Misses, tombstones and
// decode failures all report found=false; the database stays the source of
// truth.
type JSONCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewJSONCache(rdb *redis.Client, ttl time.Duration) *JSONCache {
	if ttl <= 0 {
		ttl = TTLReadCache
	}
	return &JSONCache{rdb: rdb, ttl: ttl}
}

func (c *JSONCache) Get(ctx context.Context, key string, out any) (bool, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if string(b) == tombstone {
		return false, nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		_ = c.rdb.Del(ctx, key).Err()
		return false, nil
	}
	return true, nil
}

func (c *JSONCache) Set(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, c.ttl).Err()
}

// Add is SETNX: it stores v only when key holds neither a value nor a
// tombstone.
func (c *JSONCache) Add(ctx context.Context, key string, v any) (bool, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	return c.rdb.SetNX(ctx, key, b, c.ttl).Result()
}

func (c *JSONCache) Tombstone(ctx context.Context, ttl time.Duration, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if ttl <= 0 {
		ttl = TTLTombstone
	}
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, k := range keys {
			p.Set(ctx, k, tombstone, ttl)
		}
		return nil
	})
	return err
}
