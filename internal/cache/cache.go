package cache

import (
	"context"
	"time"

	"github.com/stwalsh4118/gotham-eye/internal/config"
	"github.com/stwalsh4118/gotham-eye/internal/logger"
)

// Cache is a byte-oriented TTL cache for expensive query responses.
// Implementations must be safe for concurrent use. Get and Set are
// best-effort: a backend failure behaves like a miss.
type Cache interface {
	// Get returns the cached value for key if present and not expired.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// Name identifies the backend in logs and metrics labels.
	Name() string
}

// New selects the backend from configuration: Redis when an address is
// set, otherwise the in-process memory cache.
func New(cfg config.CacheConfig, log *logger.Logger) Cache {
	if cfg.RedisAddr != "" {
		return NewRedis(cfg, log)
	}
	return NewMemory()
}
