package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/infra/metrics"
)

// RedisCache реализует domain.Cache через Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedis создаёт кэш.
func NewRedis(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Set задаёт значение с TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.client.Set(ctx, key, value, ttl).Err()
	metrics.ObserveNetworkRequest("redis", "set", key, start, err)
	return err
}

// Get возвращает значение; на промахе отдаёт nil без ошибки.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	value, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		metrics.ObserveNetworkRequest("redis", "get", key, start, nil)
		return nil, nil
	}
	metrics.ObserveNetworkRequest("redis", "get", key, start, err)
	if err != nil {
		return nil, err
	}
	return value, nil
}
