package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// revokedSessionPrefix is the key prefix for revoked session entries
	revokedSessionPrefix = "session:revoked:"
)

// RevocationCache keeps revoked session IDs in Redis so the auth middleware
// can reject them without a database read. Entries expire with the session
// they shadow; the database row remains the source of truth.
type RevocationCache struct{}

// NewRevocationCache creates a RevocationCache backed by the global client
func NewRevocationCache() *RevocationCache {
	return &RevocationCache{}
}

// RevokeSession records a revoked session with a TTL covering its remaining
// lifetime
func (c *RevocationCache) RevokeSession(ctx context.Context, sessionID string, ttl time.Duration) error {
	if RedisClient == nil {
		return fmt.Errorf("redis client not initialized")
	}
	return RedisClient.Set(ctx, revokedSessionPrefix+sessionID, "1", ttl).Err()
}

// IsSessionRevoked reports whether the session is known-revoked. Cache
// errors read as not-revoked so the database check still decides.
func (c *RevocationCache) IsSessionRevoked(ctx context.Context, sessionID string) bool {
	if RedisClient == nil {
		return false
	}
	_, err := RedisClient.Get(ctx, revokedSessionPrefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return false
	}
	return err == nil
}
