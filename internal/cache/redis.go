package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stwalsh4118/gotham-eye/internal/config"
	"github.com/stwalsh4118/gotham-eye/internal/logger"
)

// Redis caches query responses in a shared Redis instance so multiple
// API replicas reuse each other's work. Backend errors degrade to cache
// misses; they never fail the request.
type Redis struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedis creates a Redis-backed cache from configuration.
func NewRedis(cfg config.CacheConfig, log *logger.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return &Redis{
		client: client,
		log:    log,
	}
}

// Get returns the value for key if present.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.log.Warn("Redis get failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
		return nil, false
	}
	return value, true
}

// Set stores value under key for ttl.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.log.Warn("Redis set failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

// Name identifies the backend.
func (r *Redis) Name() string {
	return "redis"
}

// Ping verifies connectivity at startup.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the client's connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
