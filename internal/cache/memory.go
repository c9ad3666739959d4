package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry[V any] struct {
	value   V
	expires time.Time // zero means no expiry
}

// MemoryStore is an in-process Store guarded by a RWMutex. Entries are
// replaced whole, so readers see either the old or the new value.
type MemoryStore[V any] struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry[V]
	now     func() time.Time
}

// NewMemoryStore creates an empty in-process cache.
func NewMemoryStore[V any]() *MemoryStore[V] {
	return &MemoryStore[V]{
		entries: make(map[string]memoryEntry[V]),
		now:     time.Now,
	}
}

// WithClock replaces the time source; used by tests to drive expiry.
func (m *MemoryStore[V]) WithClock(now func() time.Time) *MemoryStore[V] {
	m.now = now
	return m
}

// Get returns the value for key if present and not expired.
func (m *MemoryStore[V]) Get(_ context.Context, key string) (V, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		m.mu.Lock()
		// re-check: another writer may have refreshed the entry
		if cur, ok := m.entries[key]; ok && cur.expires.Equal(e.expires) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Set stores value under key.
func (m *MemoryStore[V]) Set(_ context.Context, key string, value V, ttl time.Duration) {
	e := memoryEntry[V]{value: value}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
}

// Len returns the number of stored entries, expired or not.
func (m *MemoryStore[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
