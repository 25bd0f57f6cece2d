package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neria/manager/internal/config"
	"github.com/redis/go-redis/v9"
)

var ErrRedisDisabled = errors.New("redis: no address configured")

// RedisClient backs the shared rate counters, the audit mirror and the
// idempotency store. One client is shared by all of them.
type RedisClient struct {
	Client *redis.Client
}

// NewRedisClient dials redis.addr and verifies it with a bounded ping.
func NewRedisClient(cfg config.RedisConfig) (*RedisClient, error) {
	if cfg.Addr == "" {
		return nil, ErrRedisDisabled
	}
	client := &RedisClient{Client: redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.PingContext(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// PingContext satisfies the health check.
func (r *RedisClient) PingContext(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

func (r *RedisClient) Close() error {
	return r.Client.Close()
}
