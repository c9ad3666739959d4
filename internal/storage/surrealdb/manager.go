// Package surrealdb persists snapshots in SurrealDB.
package surrealdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"

	"github.com/bobmcallan/holdwise/internal/common"
)

// tables are defined up front; SurrealDB v3 errors on querying undefined tables.
var tables = []string{snapshotTable, holdingTable}

// Connect opens a SurrealDB connection, signs in and selects the
// configured namespace and database.
func Connect(ctx context.Context, cfg common.SurrealDBConfig) (*surrealdb.DB, error) {
	db, err := surrealdb.New(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": cfg.Username,
		"pass": cfg.Password,
	}); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}
	return db, nil
}

// NewStoreFromConfig connects and returns a ready SnapshotStore.
func NewStoreFromConfig(ctx context.Context, cfg common.SurrealDBConfig, logger *common.Logger) (*SnapshotStore, error) {
	db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store, err := NewSnapshotStore(ctx, db, logger)
	if err != nil {
		db.Close(ctx)
		return nil, err
	}

	logger.Info().
		Str("address", cfg.Address).
		Str("namespace", cfg.Namespace).
		Str("database", cfg.Database).
		Msg("SurrealDB snapshot store initialized")
	return store, nil
}

func defineTables(ctx context.Context, db *surrealdb.DB) error {
	for _, table := range tables {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}
	return nil
}

// isNotFoundError reports whether err is SurrealDB's missing-record error.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist")
}

// isExistsError reports whether err is a duplicate record error from CREATE.
func isExistsError(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists")
}
