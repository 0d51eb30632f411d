package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache is a content-addressed, TTL-bound store for engine responses.
// Keys are request fingerprints; a hit within the TTL short-circuits
// dispatch entirely.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// Fingerprint derives the cache key for an outbound request: a sha256 over
// the endpoint and the canonical payload bytes. Collisions are accepted
// without detection.
func Fingerprint(endpoint string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(endpoint))
	h.Write([]byte{0})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
