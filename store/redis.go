package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zeu5/mdp-planner/types"
)

const redisPrefix = "mdp-planner:values:"

// RedisCache keeps value tables in redis, expiring after ttl (0 keeps them)
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Cache = &RedisCache{}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
	}
}

// DialRedis connects to the redis server at addr and checks it responds
func DialRedis(ctx context.Context, addr string, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	return NewRedisCache(client, ttl), nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (types.ValueTable, bool, error) {
	bs, err := c.client.Get(ctx, redisPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	values := make(types.ValueTable)
	if err := json.Unmarshal(bs, &values); err != nil {
		return nil, false, fmt.Errorf("cached values %s: %w", key, err)
	}
	return values, true, nil
}

func (c *RedisCache) Put(ctx context.Context, key string, values types.ValueTable) error {
	bs, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, redisPrefix+key, bs, c.ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
