// Package cache provides support for access to the redis cache.
package cache

import (
	"context"
	"fmt"
	"github.com/redis/go-redis/v9"
)

// Config is the required properties to use the cache.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Open knows how to open a redis client based on the configuration. The connection is verified with a PING
func Open(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}
