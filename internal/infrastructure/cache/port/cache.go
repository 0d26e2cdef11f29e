package port

import (
	"context"
	"time"
)

// Cache is the key-value contract behind the message read-through
// cache. Values are opaque strings; the store decorator owns the
// serialization. Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the cached value, or ErrMiss when the key is absent.
	// Non-miss errors indicate transport or server faults.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key. A non-positive ttl persists the entry
	// until eviction.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Del removes keys and reports how many existed. Mutations call it
	// to drop stale message entries after a compare-and-swap.
	Del(ctx context.Context, keys ...string) (int64, error)

	// Ping verifies backend connectivity.
	Ping(ctx context.Context) error

	Close() error
}

// ErrMiss distinguishes an absent key from a transport failure so the
// cached store can fall through to Postgres without logging noise.
var ErrMiss = errMiss{}

type errMiss struct{}

func (e errMiss) Error() string { return "cache: miss" }
