// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"schedule-designgen/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient holds the connection backing the artifact cache.
type RedisClient struct {
	Client *redis.Client
}

// NewRedis sizes write timeouts for artifact payloads, which carry whole raster and document files.
func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is empty")
	}
	return &RedisClient{Client: redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		PoolSize:     8,
	})}, nil
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}
