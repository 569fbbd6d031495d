// Package ristretto implements the snapshot store port using dgraph-io/ristretto
// as a bounded in-process L1 cache.
package ristretto

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// ErrRejected is returned when ristretto's admission policy drops a write.
var ErrRejected = errors.New("ristretto: write rejected")

const (
	minCostBytes = 64 << 10
	// A five-row task page encodes to roughly 2 KiB.
	typicalSnapshotBytes = 2 << 10
)

// Cache keeps encoded query snapshots in process. Values are copied on the
// way in and out because ristretto stores the caller's slice as is.
type Cache struct {
	c *ristretto.Cache[string, []byte]
}

// New creates a store bounded to maxCostBytes of keys plus snapshots.
func New(maxCostBytes int64) (*Cache, error) {
	maxCostBytes = max(maxCostBytes, minCostBytes)
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 10 * maxCostBytes / typicalSnapshotBytes,
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c}, nil
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, found := c.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return slices.Clone(val), true, nil
}

// Set stores a snapshot for ttl. The write is applied before Set returns
// so the next Get observes it.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	cost := int64(len(key) + len(value))
	if !c.c.SetWithTTL(key, slices.Clone(value), cost, ttl) {
		return ErrRejected
	}
	c.c.Wait()
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	c.c.Wait()
	return nil
}

// Close stops ristretto's background goroutines.
func (c *Cache) Close() {
	c.c.Close()
}
