// Package storage selects the snapshot store backend.
package storage

import (
	"context"
	"fmt"

	"github.com/bobmcallan/holdwise/internal/common"
	"github.com/bobmcallan/holdwise/internal/interfaces"
	"github.com/bobmcallan/holdwise/internal/storage/memory"
	"github.com/bobmcallan/holdwise/internal/storage/sqlite"
	"github.com/bobmcallan/holdwise/internal/storage/surrealdb"
)

// Backend type constants.
const (
	BackendSQLite    = "sqlite"
	BackendSurrealDB = "surrealdb"
	BackendMemory    = "memory"
)

// NewSnapshotStore creates the store named by config.Backend.
// An empty backend means sqlite.
func NewSnapshotStore(ctx context.Context, config common.StorageConfig, logger *common.Logger) (interfaces.SnapshotStore, error) {
	backend := config.Backend
	if backend == "" {
		backend = BackendSQLite
	}

	switch backend {
	case BackendSQLite:
		return sqlite.NewStore(ctx, config.SQLitePath, logger)

	case BackendSurrealDB:
		return surrealdb.NewStoreFromConfig(ctx, config.SurrealDB, logger)

	case BackendMemory:
		return memory.NewStore(), nil

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: sqlite, surrealdb, memory)", backend)
	}
}
