package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis backs the result cache with a shared Redis instance so cached
// engine responses survive restarts and are visible across replicas.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb, prefix: "slipforge:result:"}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if r == nil || r.rdb == nil {
		return nil, false, nil
	}
	val, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if r == nil || r.rdb == nil || ttl <= 0 {
		return nil
	}
	return r.rdb.Set(ctx, r.prefix+key, val, ttl).Err()
}
