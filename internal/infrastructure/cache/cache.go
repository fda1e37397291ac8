package cache

import (
	"context"
	"time"
)

// Store is the key-value interface the services depend on. Production uses
// the Redis implementation; tests and single-node dev use the memory store.
type Store interface {
	// Set stores a key-value pair with expiration
	Set(ctx context.Context, key, value string, expiration time.Duration) error

	// Get retrieves a value by key; the bool reports presence
	Get(ctx context.Context, key string) (string, bool, error)

	// SetNX stores the pair only if the key does not exist, reporting
	// whether it was set. Used as a lightweight distributed lock.
	SetNX(ctx context.Context, key, value string, expiration time.Duration) (bool, error)

	// Delete removes a key
	Delete(ctx context.Context, key string) error
}
