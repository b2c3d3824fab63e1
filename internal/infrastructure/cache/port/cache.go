package port

import (
	"context"
	"time"
)

// Cache is the key-value contract used for read-through lookups.
// Implementations must be safe for concurrent use.
//
// Values are strings; callers own serialization.
type Cache interface {
	// Get returns ErrMiss when key is absent. Any other error is a transport
	// or server failure.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key. A zero or negative TTL means no expiration.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Del removes keys and returns how many existed.
	Del(ctx context.Context, keys ...string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// ErrMiss signals a cache miss so callers can tell it apart from transport errors.
var ErrMiss = errMiss{}

type errMiss struct{}

func (e errMiss) Error() string { return "cache: miss" }
