// Package sqlite persists snapshots in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/bobmcallan/holdwise/internal/common"
	"github.com/bobmcallan/holdwise/internal/interfaces"
	"github.com/bobmcallan/holdwise/internal/models"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL DEFAULT '',
		run_date TEXT NOT NULL,
		period_date TEXT NOT NULL,
		created_at TEXT NOT NULL,
		top_n INTEGER NOT NULL DEFAULT 0,
		manager_weights TEXT NOT NULL DEFAULT '{}',
		managers TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS holdings (
		run_id TEXT NOT NULL,
		manager TEXT NOT NULL,
		manager_weight REAL,
		period TEXT NOT NULL,
		filed_at TEXT NOT NULL,
		rank INTEGER NOT NULL,
		name TEXT NOT NULL,
		cusip TEXT NOT NULL,
		ticker TEXT,
		resolution_method TEXT NOT NULL,
		shares REAL NOT NULL,
		value REAL NOT NULL,
		pct REAL NOT NULL,
		combined_weight REAL NOT NULL,
		attributes TEXT NOT NULL DEFAULT '{}'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_holdings_run ON holdings (run_id, manager, rank)`,
	`CREATE INDEX IF NOT EXISTS idx_holdings_ticker ON holdings (ticker)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs (created_at)`,
}

// Store implements interfaces.SnapshotStore on SQLite.
type Store struct {
	db     *sqlx.DB
	logger *common.Logger
}

type runRecord struct {
	ID             string `db:"id"`
	Label          string `db:"label"`
	RunDate        string `db:"run_date"`
	PeriodDate     string `db:"period_date"`
	CreatedAt      string `db:"created_at"`
	TopN           int    `db:"top_n"`
	ManagerWeights string `db:"manager_weights"`
	Managers       string `db:"managers"`
}

type summaryRecord struct {
	ID           string `db:"id"`
	Label        string `db:"label"`
	RunDate      string `db:"run_date"`
	PeriodDate   string `db:"period_date"`
	CreatedAt    string `db:"created_at"`
	ManagerCount int    `db:"manager_count"`
	HoldingCount int    `db:"holding_count"`
}

type holdingRecord struct {
	RunID            string         `db:"run_id"`
	Manager          string         `db:"manager"`
	ManagerWeight    *float64       `db:"manager_weight"`
	Period           string         `db:"period"`
	FiledAt          string         `db:"filed_at"`
	Rank             int            `db:"rank"`
	Name             string         `db:"name"`
	CUSIP            string         `db:"cusip"`
	Ticker           sql.NullString `db:"ticker"`
	ResolutionMethod string         `db:"resolution_method"`
	Shares           float64        `db:"shares"`
	Value            float64        `db:"value"`
	Pct              float64        `db:"pct"`
	CombinedWeight   float64        `db:"combined_weight"`
	Attributes       string         `db:"attributes"`
}

type historyRecord struct {
	RunID          string  `db:"run_id"`
	RunDate        string  `db:"run_date"`
	PeriodDate     string  `db:"period_date"`
	Manager        string  `db:"manager"`
	Rank           int     `db:"rank"`
	Pct            float64 `db:"pct"`
	CombinedWeight float64 `db:"combined_weight"`
	Value          float64 `db:"value"`
	Attributes     string  `db:"attributes"`
}

// NewStore opens (creating if needed) the database at path. ":memory:"
// gives a private in-memory database.
func NewStore(ctx context.Context, path string, logger *common.Logger) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	// one connection keeps writes serialised and :memory: shared
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		logger.Warn().Err(err).Msg("Failed to set WAL mode")
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous = NORMAL"); err != nil {
		logger.Warn().Err(err).Msg("Failed to set synchronous mode")
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	logger.Debug().Str("path", path).Msg("SQLite snapshot store opened")
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	if snapshot == nil || snapshot.ID == "" {
		return fmt.Errorf("snapshot id is required")
	}

	weights, err := json.Marshal(snapshot.ManagerWeights)
	if err != nil {
		return fmt.Errorf("failed to marshal manager weights: %w", err)
	}
	managers, err := json.Marshal(snapshot.Managers)
	if err != nil {
		return fmt.Errorf("failed to marshal manager status: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing int
	if err := tx.GetContext(ctx, &existing, `SELECT COUNT(*) FROM runs WHERE id = ?`, snapshot.ID); err != nil {
		return fmt.Errorf("failed to check snapshot %s: %w", snapshot.ID, err)
	}
	if existing > 0 {
		return fmt.Errorf("%s: %w", snapshot.ID, models.ErrSnapshotExists)
	}

	run := runRecord{
		ID:             snapshot.ID,
		Label:          snapshot.Label,
		RunDate:        formatTime(snapshot.RunDate),
		PeriodDate:     formatTime(snapshot.PeriodDate),
		CreatedAt:      formatTime(snapshot.CreatedAt),
		TopN:           snapshot.TopN,
		ManagerWeights: string(weights),
		Managers:       string(managers),
	}
	if _, err := tx.NamedExecContext(ctx, `INSERT INTO runs
		(id, label, run_date, period_date, created_at, top_n, manager_weights, managers)
		VALUES (:id, :label, :run_date, :period_date, :created_at, :top_n, :manager_weights, :managers)`, run); err != nil {
		return fmt.Errorf("failed to insert snapshot %s: %w", snapshot.ID, err)
	}

	stmt, err := tx.PrepareNamedContext(ctx, `INSERT INTO holdings
		(run_id, manager, manager_weight, period, filed_at, rank, name, cusip, ticker,
		 resolution_method, shares, value, pct, combined_weight, attributes)
		VALUES (:run_id, :manager, :manager_weight, :period, :filed_at, :rank, :name, :cusip, :ticker,
		 :resolution_method, :shares, :value, :pct, :combined_weight, :attributes)`)
	if err != nil {
		return fmt.Errorf("failed to prepare holdings insert: %w", err)
	}
	defer stmt.Close()

	for i := range snapshot.Rows {
		rec, err := toHoldingRecord(snapshot.ID, &snapshot.Rows[i])
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, rec); err != nil {
			return fmt.Errorf("failed to insert holding %s/%s: %w", rec.Manager, rec.CUSIP, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot %s: %w", snapshot.ID, err)
	}

	s.logger.Debug().Str("id", snapshot.ID).Int("rows", len(snapshot.Rows)).Msg("Snapshot saved")
	return nil
}

func (s *Store) GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error) {
	var run runRecord
	if err := s.db.GetContext(ctx, &run, `SELECT * FROM runs WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot %s: %w", id, err)
	}

	snap := &models.Snapshot{
		ID:         run.ID,
		Label:      run.Label,
		RunDate:    parseTime(run.RunDate),
		PeriodDate: parseTime(run.PeriodDate),
		CreatedAt:  parseTime(run.CreatedAt),
		TopN:       run.TopN,
	}
	if err := json.Unmarshal([]byte(run.ManagerWeights), &snap.ManagerWeights); err != nil {
		return nil, fmt.Errorf("failed to decode manager weights for %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(run.Managers), &snap.Managers); err != nil {
		return nil, fmt.Errorf("failed to decode manager status for %s: %w", id, err)
	}

	var holdings []holdingRecord
	if err := s.db.SelectContext(ctx, &holdings,
		`SELECT * FROM holdings WHERE run_id = ? ORDER BY manager, rank`, id); err != nil {
		return nil, fmt.Errorf("failed to load holdings for %s: %w", id, err)
	}
	snap.Rows = make([]models.SnapshotRow, 0, len(holdings))
	for i := range holdings {
		row, err := fromHoldingRecord(&holdings[i])
		if err != nil {
			return nil, err
		}
		snap.Rows = append(snap.Rows, row)
	}
	return snap, nil
}

func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]*models.SnapshotSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	var recs []summaryRecord
	err := s.db.SelectContext(ctx, &recs, `
		SELECT r.id, r.label, r.run_date, r.period_date, r.created_at,
			COUNT(DISTINCT h.manager) AS manager_count,
			COUNT(h.run_id) AS holding_count
		FROM runs r
		LEFT JOIN holdings h ON h.run_id = r.id
		GROUP BY r.id
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	out := make([]*models.SnapshotSummary, 0, len(recs))
	for _, r := range recs {
		out = append(out, &models.SnapshotSummary{
			ID:           r.ID,
			Label:        r.Label,
			RunDate:      parseTime(r.RunDate),
			PeriodDate:   parseTime(r.PeriodDate),
			CreatedAt:    parseTime(r.CreatedAt),
			ManagerCount: r.ManagerCount,
			HoldingCount: r.HoldingCount,
		})
	}
	return out, nil
}

func (s *Store) DeleteSnapshot(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrSnapshotNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM holdings WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete holdings for %s: %w", id, err)
	}
	return tx.Commit()
}

func (s *Store) TickerHistory(ctx context.Context, ticker string, limit int) ([]*models.TickerHistoryEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	var recs []historyRecord
	err := s.db.SelectContext(ctx, &recs, `
		SELECT h.run_id, r.run_date, r.period_date, h.manager, h.rank, h.pct,
			h.combined_weight, h.value, h.attributes
		FROM holdings h
		JOIN runs r ON r.id = h.run_id
		WHERE h.ticker = ?
		ORDER BY r.created_at DESC, r.id DESC, h.manager ASC
		LIMIT ?`, ticker, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", ticker, err)
	}

	out := make([]*models.TickerHistoryEntry, 0, len(recs))
	for _, r := range recs {
		entry := &models.TickerHistoryEntry{
			SnapshotID:     r.RunID,
			RunDate:        parseTime(r.RunDate),
			PeriodDate:     parseTime(r.PeriodDate),
			Manager:        r.Manager,
			Rank:           r.Rank,
			PctOfPortfolio: r.Pct,
			CombinedWeight: r.CombinedWeight,
			Value:          r.Value,
		}
		if err := json.Unmarshal([]byte(r.Attributes), &entry.Attributes); err != nil {
			return nil, fmt.Errorf("failed to decode attributes for %s in %s: %w", ticker, r.RunID, err)
		}
		out = append(out, entry)
	}
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func toHoldingRecord(runID string, r *models.SnapshotRow) (holdingRecord, error) {
	attrs, err := json.Marshal(r.Attributes)
	if err != nil {
		return holdingRecord{}, fmt.Errorf("failed to marshal attributes for %s: %w", r.CUSIP, err)
	}
	return holdingRecord{
		RunID:            runID,
		Manager:          r.Manager,
		ManagerWeight:    r.ManagerWeight,
		Period:           formatTime(r.Period),
		FiledAt:          formatTime(r.FiledAt),
		Rank:             r.Rank,
		Name:             r.Name,
		CUSIP:            r.CUSIP,
		Ticker:           sql.NullString{String: r.Ticker, Valid: r.Ticker != ""},
		ResolutionMethod: string(r.ResolutionMethod),
		Shares:           r.Shares,
		Value:            r.Value,
		Pct:              r.PctOfPortfolio,
		CombinedWeight:   r.CombinedWeight,
		Attributes:       string(attrs),
	}, nil
}

func fromHoldingRecord(h *holdingRecord) (models.SnapshotRow, error) {
	row := models.SnapshotRow{
		Manager:          h.Manager,
		ManagerWeight:    h.ManagerWeight,
		Period:           parseTime(h.Period),
		FiledAt:          parseTime(h.FiledAt),
		Rank:             h.Rank,
		Name:             h.Name,
		CUSIP:            h.CUSIP,
		Ticker:           h.Ticker.String,
		ResolutionMethod: models.ResolutionMethod(h.ResolutionMethod),
		Shares:           h.Shares,
		Value:            h.Value,
		PctOfPortfolio:   h.Pct,
		CombinedWeight:   h.CombinedWeight,
	}
	if err := json.Unmarshal([]byte(h.Attributes), &row.Attributes); err != nil {
		return row, fmt.Errorf("failed to decode attributes for %s: %w", h.CUSIP, err)
	}
	return row, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

var _ interfaces.SnapshotStore = (*Store)(nil)
