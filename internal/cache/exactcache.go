package cache

import (
	"context"
	"fmt"
	"time"
)

// ExactCacheKey identifies one cached generation response.
// Hash is sha256 of the normalized request (contents+model+generationConfig).
type ExactCacheKey struct {
	ModelID   string
	VersionID string
	Hash      string
}

// String converts the structured key into the final string used in Redis/map.
func (k ExactCacheKey) String() string {
	// exact:<MODEL_ID>:<VERSION_ID>:<HASH_HEX>
	return fmt.Sprintf("exact:%s:%s:%s", k.ModelID, k.VersionID, k.Hash)
}

// ExactCache is the interface used by the generate handler.
// Implemented by memory cache (dev) and Redis cache (prod).
type ExactCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
