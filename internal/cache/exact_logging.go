package cache

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"llmbridge/internal/metrics"
	"llmbridge/pkg/logging/logging"
)

// LoggingExactCache wraps an ExactCache with logging + metrics.
type LoggingExactCache struct {
	inner ExactCache
}

// NewLoggingExactCache returns a cache that logs and records metrics.
func NewLoggingExactCache(inner ExactCache) ExactCache {
	return &LoggingExactCache{inner: inner}
}

func (c *LoggingExactCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	value, ok, err := c.inner.Get(ctx, key)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	logger := logging.L(ctx)

	result := "miss"
	if err != nil {
		result = "error"
	} else if ok {
		result = "hit"
		metrics.ExactHitsTotal.Inc()
	}

	fields := []zap.Field{
		zap.String("cache_tier", "exact"),
		zap.String("hash_key", key),
		zap.String("cache_result", result), // hit | miss | error
		zap.Float64("latency_ms", latencyMs),
	}

	if parts, ok := parseExactKey(key); ok {
		fields = append(fields,
			zap.String("model_id", parts.modelID),
			zap.String("version_id", parts.versionID),
			zap.String("hash", parts.hash),
		)
	}

	if err != nil {
		logger.Error("exact_cache_get", append(fields, zap.Error(err))...)
	} else {
		logger.Info("exact_cache_get", fields...)
	}

	return value, ok, err
}

func (c *LoggingExactCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.inner.Set(ctx, key, value, ttl)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	logger := logging.L(ctx)

	fields := []zap.Field{
		zap.String("cache_tier", "exact"),
		zap.String("hash_key", key),
		zap.Float64("latency_ms", latencyMs),
	}

	if parts, ok := parseExactKey(key); ok {
		fields = append(fields,
			zap.String("model_id", parts.modelID),
			zap.String("version_id", parts.versionID),
			zap.String("hash", parts.hash),
		)
	}

	if err != nil {
		logger.Error("exact_cache_set", append(fields, zap.Error(err))...)
	} else {
		logger.Info("exact_cache_set", fields...)
	}

	return err
}

type exactKeyParts struct {
	modelID   string
	versionID string
	hash      string
}

// Expecting: exact:<MODEL_ID>:<VERSION_ID>:<HASH>
func parseExactKey(key string) (exactKeyParts, bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 4 || parts[0] != "exact" {
		return exactKeyParts{}, false
	}
	return exactKeyParts{
		modelID:   parts[1],
		versionID: parts[2],
		hash:      parts[3],
	}, true
}
