package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/holdwise/internal/common"
	"github.com/bobmcallan/holdwise/internal/storage/memory"
	"github.com/bobmcallan/holdwise/internal/storage/sqlite"
)

func TestNewSnapshotStore(t *testing.T) {
	ctx := context.Background()
	logger := common.NewSilentLogger()

	t.Run("memory", func(t *testing.T) {
		store, err := NewSnapshotStore(ctx, common.StorageConfig{Backend: BackendMemory}, logger)
		require.NoError(t, err)
		assert.IsType(t, &memory.Store{}, store)
	})

	t.Run("empty backend defaults to sqlite", func(t *testing.T) {
		cfg := common.StorageConfig{SQLitePath: filepath.Join(t.TempDir(), "h.db")}
		store, err := NewSnapshotStore(ctx, cfg, logger)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &sqlite.Store{}, store)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := NewSnapshotStore(ctx, common.StorageConfig{Backend: "badger"}, logger)
		assert.ErrorContains(t, err, "unknown storage backend")
	})
}
