// Package cache provides the key-value store behind the geocode and
// collection cache tiers. Each key is written only by the operation that
// computed its value, so stores need atomic get/set and nothing more.
package cache

import (
	"context"
	"time"
)

// Store is a byte-oriented key-value store with per-key expiry.
type Store interface {
	// Get returns the value and true, or false when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// CheckReadiness reports whether the store can serve traffic.
	CheckReadiness(ctx context.Context) error
}
