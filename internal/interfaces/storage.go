package interfaces

import (
	"context"

	"github.com/bobmcallan/holdwise/internal/models"
)

// SnapshotStore persists immutable run snapshots.
type SnapshotStore interface {
	// SaveSnapshot stores a new snapshot; an existing id returns models.ErrSnapshotExists
	SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error

	// GetSnapshot loads a snapshot with all rows; unknown ids return models.ErrSnapshotNotFound
	GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error)

	// ListSnapshots returns summaries, newest first. limit <= 0 returns all
	ListSnapshots(ctx context.Context, limit int) ([]*models.SnapshotSummary, error)

	// DeleteSnapshot removes a snapshot and its rows
	DeleteSnapshot(ctx context.Context, id string) error

	// TickerHistory returns every stored row for a ticker, newest run first
	TickerHistory(ctx context.Context, ticker string, limit int) ([]*models.TickerHistoryEntry, error)

	// Close releases the underlying connection
	Close() error
}
