// Package cache provides a small byte cache with pluggable backends. No
// backend runs background goroutines; expired entries are removed by an
// explicit Sweep driven by the scheduler.
package cache

import (
	"context"
	"time"
)

type Cache interface {
	// Get returns the value for key, or ok=false on a miss or expiry.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value for ttl. A ttl of zero never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Sweep drops expired entries and returns how many were removed.
	Sweep(ctx context.Context) (int, error)
}
