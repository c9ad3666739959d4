// Package cache provides the shared key-value caches used across manager
// pipelines. Implementations are safe for concurrent use; a Get never
// observes a partially written entry and concurrent Sets are last-writer-wins.
package cache

import (
	"context"
	"time"
)

// Store caches values of type V by string key. A ttl of zero keeps the
// entry until the process (or backing server) discards it. Backend errors
// degrade to misses; a cache is never a reason to fail a lookup.
type Store[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	Set(ctx context.Context, key string, value V, ttl time.Duration)
}
