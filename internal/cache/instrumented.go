package cache

import (
	"context"
	"time"

	"github.com/bobmcallan/holdwise/internal/metrics"
)

// Instrumented counts hits and misses of an underlying Store.
type Instrumented[V any] struct {
	Store[V]
	name    string
	metrics *metrics.Metrics
}

// NewInstrumented wraps store so each Get is recorded under name.
func NewInstrumented[V any](store Store[V], name string, m *metrics.Metrics) *Instrumented[V] {
	return &Instrumented[V]{Store: store, name: name, metrics: m}
}

// Get delegates to the wrapped store and records the outcome.
func (i *Instrumented[V]) Get(ctx context.Context, key string) (V, bool) {
	v, ok := i.Store.Get(ctx, key)
	i.metrics.CacheLookup(i.name, ok)
	return v, ok
}

// Set delegates to the wrapped store.
func (i *Instrumented[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) {
	i.Store.Set(ctx, key, value, ttl)
}
