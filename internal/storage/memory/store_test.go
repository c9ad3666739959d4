package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/holdwise/internal/interfaces"
	"github.com/bobmcallan/holdwise/internal/storage/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) interfaces.SnapshotStore {
		return NewStore()
	})
}

func TestStore_ReturnsCopies(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	snap := storetest.Snapshot("snap-1", time.Now())
	require.NoError(t, store.SaveSnapshot(ctx, snap))

	snap.Rows[0].Ticker = "MUTATED"
	got, err := store.GetSnapshot(ctx, "snap-1")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got.Rows[0].Ticker)

	got.Rows[0].Ticker = "AGAIN"
	again, err := store.GetSnapshot(ctx, "snap-1")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", again.Rows[0].Ticker)
}
