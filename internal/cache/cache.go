// Package cache provides the two cache layers used by the pipeline: an
// in-memory session cache and a Redis-backed persistent cache. Both are
// injected into the components that need them, never accessed as
// ambient state.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Store is a TTL key-value store. A read past expiry is a miss and
// evicts the entry.
type Store interface {
	// Get returns the cached value and whether it was present.
	Get(ctx context.Context, key string) (string, bool)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Remove deletes key.
	Remove(ctx context.Context, key string) error
}

// Fingerprint derives a stable cache key from a prompt identity and
// its arguments.
func Fingerprint(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(h[:])
}
