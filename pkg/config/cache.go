package config

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anonto42/bookhive/backend/pkg/logger"
)

// InitRedis connects the shared redis client. Returns nil when no
// REDIS_ADDR is configured; callers degrade to in-process caching.
func InitRedis(cfg *Config, log *logger.Logger) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		log.Warn("REDIS_ADDR not set, recommendation cache will run in-process")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	log.Info("Connected to Redis", "addr", cfg.RedisAddr)
	return client, nil
}
