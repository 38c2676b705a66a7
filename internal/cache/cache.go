// Package cache provides a capability interface for response caching
// with an in-memory implementation that is always available and a Redis
// implementation selected by configuration at startup. Entries carry a
// time-to-live fixed at construction; a miss is always safely fillable
// by rerunning the network path.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Cache is a concurrent-safe byte cache. Get reports a miss with a
// false second return rather than an error.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Key derives a deterministic cache key from a prefix and the salient
// request parameters.
func Key(prefix string, parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return prefix + ":" + hex.EncodeToString(sum[:])[:16]
}
