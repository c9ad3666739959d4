package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryStore_GetSet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore[string]()

	_, ok := store.Get(ctx, "037833100")
	assert.False(t, ok)

	store.Set(ctx, "037833100", "AAPL", 0)
	v, ok := store.Get(ctx, "037833100")
	assert.True(t, ok)
	assert.Equal(t, "AAPL", v)

	// last writer wins
	store.Set(ctx, "037833100", "AAPL2", 0)
	v, _ = store.Get(ctx, "037833100")
	assert.Equal(t, "AAPL2", v)
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStore[int]().WithClock(func() time.Time { return now })

	store.Set(ctx, "k", 42, time.Hour)

	now = now.Add(59 * time.Minute)
	v, ok := store.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	now = now.Add(time.Minute)
	_, ok = store.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore[[]int]()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%10)
				store.Set(ctx, key, []int{w, i}, time.Minute)
				if v, ok := store.Get(ctx, key); ok {
					assert.Len(t, v, 2)
				}
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, 10, store.Len())
}
