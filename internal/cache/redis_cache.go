package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"botica/backend/internal/domain"
)

type RedisAdvisoryCache struct {
	client *redis.Client
}

func NewRedisAdvisoryCache(addr string, password string, db int) *RedisAdvisoryCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisAdvisoryCache{client: client}
}

func (c *RedisAdvisoryCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisAdvisoryCache) Close() error {
	return c.client.Close()
}

func (c *RedisAdvisoryCache) Get(ctx context.Context, key string) (*domain.StockAdvisory, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var advisory domain.StockAdvisory
	if err := json.Unmarshal([]byte(val), &advisory); err != nil {
		return nil, false, err
	}
	return &advisory, true, nil
}

func (c *RedisAdvisoryCache) Set(ctx context.Context, key string, value *domain.StockAdvisory, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}
