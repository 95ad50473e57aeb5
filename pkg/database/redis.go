package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/yourusername/quiz-api/internal/config"
)

// RedisOptions переводит конфигурацию в redis.UniversalOptions.
// Режим определяется клиентом: MasterName означает sentinel, несколько адресов означают cluster.
func RedisOptions(cfg config.RedisConfig) (*redis.UniversalOptions, error) {
	addresses := cfg.Addrs
	if len(addresses) == 0 {
		if cfg.Addr == "" {
			return nil, fmt.Errorf("redis configuration error: Addrs or Addr must be provided")
		}
		addresses = []string{cfg.Addr}
	}

	opts := &redis.UniversalOptions{
		Addrs:    addresses,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.MaxRetries != 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.MinRetryBackoff != 0 {
		opts.MinRetryBackoff = time.Duration(cfg.MinRetryBackoff) * time.Millisecond
	}
	if cfg.MaxRetryBackoff != 0 {
		opts.MaxRetryBackoff = time.Duration(cfg.MaxRetryBackoff) * time.Millisecond
	}

	switch cfg.Mode {
	case "", "single":
		opts.Addrs = addresses[:1]
	case "sentinel":
		if cfg.MasterName == "" {
			return nil, fmt.Errorf("redis sentinel mode requires MasterName")
		}
		opts.MasterName = cfg.MasterName
	case "cluster":
	default:
		return nil, fmt.Errorf("unsupported redis mode: %s", cfg.Mode)
	}
	return opts, nil
}

// NewUniversalRedisClient создает клиент Redis и проверяет подключение
func NewUniversalRedisClient(ctx context.Context, cfg config.RedisConfig) (redis.UniversalClient, error) {
	opts, err := RedisOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewUniversalClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis (mode: %s, addrs: %v): %w", cfg.Mode, opts.Addrs, err)
	}
	return client, nil
}
