package persistence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bloodbank-ledger/internal/config"
	"github.com/redis/go-redis/v9"
)

// RedisClient wraps the go-redis client with health checking
type RedisClient struct {
	*redis.Client
	logger *slog.Logger
}

// NewRedisClient connects to Redis. It returns nil, nil when no URL is configured.
func NewRedisClient(ctx context.Context, logger *slog.Logger, cfg *config.RedisConfig) (*RedisClient, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	logger.Info("Connected to Redis", "addr", opts.Addr)

	return &RedisClient{Client: client, logger: logger}, nil
}

func (c *RedisClient) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

func (c *RedisClient) Close() error {
	if err := c.Client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}
	c.logger.Info("Closed Redis connection")
	return nil
}
