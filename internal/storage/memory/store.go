// Package memory provides an in-process snapshot store for tests and
// one-off runs that do not persist.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bobmcallan/holdwise/internal/interfaces"
	"github.com/bobmcallan/holdwise/internal/models"
)

// Store keeps snapshots in a map guarded by a RWMutex.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string]*models.Snapshot
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{snapshots: make(map[string]*models.Snapshot)}
}

func (s *Store) SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snapshot == nil || snapshot.ID == "" {
		return fmt.Errorf("snapshot id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snapshots[snapshot.ID]; ok {
		return fmt.Errorf("%s: %w", snapshot.ID, models.ErrSnapshotExists)
	}
	s.snapshots[snapshot.ID] = clone(snapshot)
	return nil
}

func (s *Store) GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[id]
	if !ok {
		return nil, models.ErrSnapshotNotFound
	}
	return clone(snap), nil
}

func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]*models.SnapshotSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]*models.SnapshotSummary, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		out = append(out, snap.Summary())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) DeleteSnapshot(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snapshots[id]; !ok {
		return models.ErrSnapshotNotFound
	}
	delete(s.snapshots, id)
	return nil
}

func (s *Store) TickerHistory(ctx context.Context, ticker string, limit int) ([]*models.TickerHistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	s.mu.RLock()
	var out []*models.TickerHistoryEntry
	for _, snap := range s.snapshots {
		for _, r := range snap.Rows {
			if r.Ticker != ticker {
				continue
			}
			out = append(out, &models.TickerHistoryEntry{
				SnapshotID:     snap.ID,
				RunDate:        snap.RunDate,
				PeriodDate:     snap.PeriodDate,
				Manager:        r.Manager,
				Rank:           r.Rank,
				PctOfPortfolio: r.PctOfPortfolio,
				CombinedWeight: r.CombinedWeight,
				Value:          r.Value,
				Attributes:     r.Attributes,
			})
		}
	}
	created := make(map[string]int64, len(s.snapshots))
	for id, snap := range s.snapshots {
		created[id] = snap.CreatedAt.UnixNano()
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.SnapshotID != b.SnapshotID {
			if created[a.SnapshotID] != created[b.SnapshotID] {
				return created[a.SnapshotID] > created[b.SnapshotID]
			}
			return a.SnapshotID > b.SnapshotID
		}
		return a.Manager < b.Manager
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Close() error { return nil }

// clone copies the snapshot so callers cannot mutate stored rows.
func clone(snap *models.Snapshot) *models.Snapshot {
	out := *snap
	out.Rows = append([]models.SnapshotRow(nil), snap.Rows...)
	out.Managers = append([]models.ManagerStatus(nil), snap.Managers...)
	if snap.ManagerWeights != nil {
		out.ManagerWeights = make(map[string]float64, len(snap.ManagerWeights))
		for k, v := range snap.ManagerWeights {
			out.ManagerWeights[k] = v
		}
	}
	return &out
}

var _ interfaces.SnapshotStore = (*Store)(nil)
