package cache

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// Config selects the exact-cache backend for translated generation
// responses.
type Config struct {
	Backend string // "memory" or "redis"
	TTL     time.Duration
	Prefix  string
}

// NewExactCache builds the configured backend. redisClient may be nil for
// the memory backend; the TTL doubles as the memory cache's cleanup
// interval.
func NewExactCache(cfg Config, redisClient *redis.Client) ExactCache {
	if cfg.Backend == "redis" && redisClient != nil {
		return NewRedisExactCache(redisClient, RedisConfig{
			Prefix: cfg.Prefix,
		})
	}
	return NewMemoryExactCache(cfg.TTL)
}
