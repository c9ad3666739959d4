package surrealdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/holdwise/internal/common"
	"github.com/bobmcallan/holdwise/internal/interfaces"
	"github.com/bobmcallan/holdwise/internal/models"
)

const (
	snapshotTable = "snapshot"
	holdingTable  = "snapshot_holding"
)

// snapshotRecord is the header row. Counts are stored so listing does not
// scan holdings.
type snapshotRecord struct {
	SnapshotID     string                 `json:"snapshot_id"`
	Label          string                 `json:"label"`
	RunDate        time.Time              `json:"run_date"`
	PeriodDate     time.Time              `json:"period_date"`
	CreatedAt      time.Time              `json:"created_at"`
	TopN           int                    `json:"top_n"`
	ManagerWeights map[string]float64     `json:"manager_weights"`
	Managers       []models.ManagerStatus `json:"managers"`
	ManagerCount   int                    `json:"manager_count"`
	HoldingCount   int                    `json:"holding_count"`
}

// holdingRecord is one snapshot row. Run fields are copied onto every row
// so ticker history is a single query.
type holdingRecord struct {
	SnapshotID string    `json:"snapshot_id"`
	RunDate    time.Time `json:"run_date"`
	PeriodDate time.Time `json:"period_date"`
	CreatedAt  time.Time `json:"created_at"`
	models.SnapshotRow
}

// SnapshotStore implements interfaces.SnapshotStore using SurrealDB.
type SnapshotStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewSnapshotStore defines the snapshot tables and returns the store.
func NewSnapshotStore(ctx context.Context, db *surrealdb.DB, logger *common.Logger) (*SnapshotStore, error) {
	if err := defineTables(ctx, db); err != nil {
		return nil, err
	}
	return &SnapshotStore{db: db, logger: logger}, nil
}

func (s *SnapshotStore) SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	if snapshot == nil || snapshot.ID == "" {
		return fmt.Errorf("snapshot id is required")
	}

	existing, err := s.header(ctx, snapshot.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%s: %w", snapshot.ID, models.ErrSnapshotExists)
	}

	summary := snapshot.Summary()
	header := snapshotRecord{
		SnapshotID:     snapshot.ID,
		Label:          snapshot.Label,
		RunDate:        snapshot.RunDate,
		PeriodDate:     snapshot.PeriodDate,
		CreatedAt:      snapshot.CreatedAt,
		TopN:           snapshot.TopN,
		ManagerWeights: snapshot.ManagerWeights,
		Managers:       snapshot.Managers,
		ManagerCount:   summary.ManagerCount,
		HoldingCount:   summary.HoldingCount,
	}
	rows := make([]holdingRecord, 0, len(snapshot.Rows))
	for _, r := range snapshot.Rows {
		rows = append(rows, holdingRecord{
			SnapshotID:  snapshot.ID,
			RunDate:     snapshot.RunDate,
			PeriodDate:  snapshot.PeriodDate,
			CreatedAt:   snapshot.CreatedAt,
			SnapshotRow: r,
		})
	}

	// rows first so a visible header always has its holdings
	if len(rows) > 0 {
		sql := "INSERT INTO " + holdingTable + " $rows"
		if _, err := surrealdb.Query[any](ctx, s.db, sql, map[string]any{"rows": rows}); err != nil {
			s.deleteRows(ctx, snapshot.ID)
			return fmt.Errorf("failed to insert holdings for %s: %w", snapshot.ID, err)
		}
	}

	sql := "CREATE $rid CONTENT $header"
	vars := map[string]any{
		"rid":    surrealmodels.NewRecordID(snapshotTable, snapshot.ID),
		"header": header,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		if isExistsError(err) {
			return fmt.Errorf("%s: %w", snapshot.ID, models.ErrSnapshotExists)
		}
		s.deleteRows(ctx, snapshot.ID)
		return fmt.Errorf("failed to create snapshot %s: %w", snapshot.ID, err)
	}

	s.logger.Debug().Str("id", snapshot.ID).Int("rows", len(rows)).Msg("Snapshot saved")
	return nil
}

func (s *SnapshotStore) GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error) {
	header, err := s.header(ctx, id)
	if err != nil {
		return nil, err
	}
	if header == nil {
		return nil, models.ErrSnapshotNotFound
	}

	sql := "SELECT * OMIT id FROM " + holdingTable + " WHERE snapshot_id = $id ORDER BY manager ASC, rank ASC"
	results, err := surrealdb.Query[[]holdingRecord](ctx, s.db, sql, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings for %s: %w", id, err)
	}

	snap := &models.Snapshot{
		ID:             header.SnapshotID,
		Label:          header.Label,
		RunDate:        header.RunDate,
		PeriodDate:     header.PeriodDate,
		CreatedAt:      header.CreatedAt,
		TopN:           header.TopN,
		ManagerWeights: header.ManagerWeights,
		Managers:       header.Managers,
	}
	if results != nil && len(*results) > 0 {
		for _, rec := range (*results)[0].Result {
			snap.Rows = append(snap.Rows, rec.SnapshotRow)
		}
	}
	return snap, nil
}

func (s *SnapshotStore) ListSnapshots(ctx context.Context, limit int) ([]*models.SnapshotSummary, error) {
	sql := "SELECT * OMIT id FROM " + snapshotTable + " ORDER BY created_at DESC, snapshot_id DESC"
	vars := map[string]any{}
	if limit > 0 {
		sql += " LIMIT $limit"
		vars["limit"] = limit
	}

	results, err := surrealdb.Query[[]snapshotRecord](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	out := make([]*models.SnapshotSummary, 0)
	if results != nil && len(*results) > 0 {
		for _, r := range (*results)[0].Result {
			out = append(out, &models.SnapshotSummary{
				ID:           r.SnapshotID,
				Label:        r.Label,
				RunDate:      r.RunDate,
				PeriodDate:   r.PeriodDate,
				CreatedAt:    r.CreatedAt,
				ManagerCount: r.ManagerCount,
				HoldingCount: r.HoldingCount,
			})
		}
	}
	return out, nil
}

func (s *SnapshotStore) DeleteSnapshot(ctx context.Context, id string) error {
	header, err := s.header(ctx, id)
	if err != nil {
		return err
	}
	if header == nil {
		return models.ErrSnapshotNotFound
	}

	if _, err := surrealdb.Delete[snapshotRecord](ctx, s.db, surrealmodels.NewRecordID(snapshotTable, id)); err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete snapshot %s: %w", id, err)
	}
	return s.deleteRows(ctx, id)
}

func (s *SnapshotStore) TickerHistory(ctx context.Context, ticker string, limit int) ([]*models.TickerHistoryEntry, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	sql := "SELECT * OMIT id FROM " + holdingTable + " WHERE ticker = $ticker ORDER BY created_at DESC, snapshot_id DESC, manager ASC"
	vars := map[string]any{"ticker": ticker}
	if limit > 0 {
		sql += " LIMIT $limit"
		vars["limit"] = limit
	}

	results, err := surrealdb.Query[[]holdingRecord](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", ticker, err)
	}

	out := make([]*models.TickerHistoryEntry, 0)
	if results != nil && len(*results) > 0 {
		for _, r := range (*results)[0].Result {
			out = append(out, &models.TickerHistoryEntry{
				SnapshotID:     r.SnapshotID,
				RunDate:        r.RunDate,
				PeriodDate:     r.PeriodDate,
				Manager:        r.Manager,
				Rank:           r.Rank,
				PctOfPortfolio: r.PctOfPortfolio,
				CombinedWeight: r.CombinedWeight,
				Value:          r.Value,
				Attributes:     r.Attributes,
			})
		}
	}
	return out, nil
}

// Close closes the SurrealDB connection.
func (s *SnapshotStore) Close() error {
	return s.db.Close(context.Background())
}

func (s *SnapshotStore) header(ctx context.Context, id string) (*snapshotRecord, error) {
	sql := "SELECT * OMIT id FROM $rid"
	vars := map[string]any{"rid": surrealmodels.NewRecordID(snapshotTable, id)}
	results, err := surrealdb.Query[[]snapshotRecord](ctx, s.db, sql, vars)
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get snapshot %s: %w", id, err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

func (s *SnapshotStore) deleteRows(ctx context.Context, id string) error {
	sql := "DELETE " + holdingTable + " WHERE snapshot_id = $id"
	if _, err := surrealdb.Query[any](ctx, s.db, sql, map[string]any{"id": id}); err != nil {
		s.logger.Warn().Err(err).Str("id", id).Msg("Failed to delete snapshot holdings")
		return fmt.Errorf("failed to delete holdings for %s: %w", id, err)
	}
	return nil
}

var _ interfaces.SnapshotStore = (*SnapshotStore)(nil)
