// Package cache defines the port for the query snapshot store: a byte store
// keyed by canonical query key (e.g. "tasks?page=2") that outlives a single
// fetch and, with a shared backend, a single process.
package cache

import (
	"context"
	"time"
)

// Cache stores encoded snapshots. A miss is ok=false with a nil error.
// Implementations must not retain or hand out the caller's slices: a value
// passed to Set or returned from Get may be modified afterwards.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
