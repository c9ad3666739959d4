// Package storetest holds the behaviour every snapshot store must share.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/holdwise/internal/interfaces"
	"github.com/bobmcallan/holdwise/internal/models"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) interfaces.SnapshotStore

// Snapshot builds a two-manager snapshot created at the given time.
func Snapshot(id string, created time.Time) *models.Snapshot {
	period := time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)
	filed := time.Date(2025, 11, 14, 0, 0, 0, 0, time.UTC)
	return &models.Snapshot{
		ID:             id,
		Label:          "label " + id,
		RunDate:        created.Truncate(24 * time.Hour),
		PeriodDate:     period,
		CreatedAt:      created,
		TopN:           20,
		ManagerWeights: map[string]float64{"M1": 60, "M2": 40},
		Managers: []models.ManagerStatus{
			{Manager: "M1", Status: models.ManagerSucceeded, Positions: 2},
			{Manager: "M2", Status: models.ManagerSucceeded, Positions: 2},
		},
		Rows: []models.SnapshotRow{
			{Manager: "M1", ManagerWeight: models.Float(60), Period: period, FiledAt: filed, Rank: 1,
				Name: "APPLE INC", CUSIP: "037833100", Ticker: "AAPL", ResolutionMethod: models.ResolvedStatic,
				Shares: 100, Value: 20000, PctOfPortfolio: 66.6666, CombinedWeight: 10.4,
				Attributes: models.Attributes{
					ForwardPE:      models.Float(28.5),
					Sector:         "Information Technology",
					MonthlyReturns: []models.MonthlyReturn{{Label: "Oct 2025", ReturnPct: 4.2, Partial: true}},
				}},
			{Manager: "M1", ManagerWeight: models.Float(60), Period: period, FiledAt: filed, Rank: 2,
				Name: "PRIVATE HOLDINGS LP", CUSIP: "000000000", ResolutionMethod: models.ResolvedUnresolved,
				Shares: 10, Value: 10000, PctOfPortfolio: 33.3333, CombinedWeight: 20},
			{Manager: "M2", ManagerWeight: models.Float(40), Period: period, FiledAt: filed, Rank: 1,
				Name: "ALPHABET INC", CUSIP: "02079K305", Ticker: "GOOGL", ResolutionMethod: models.ResolvedExternal,
				Shares: 50, Value: 9000, PctOfPortfolio: 60, CombinedWeight: 24},
			{Manager: "M2", ManagerWeight: models.Float(40), Period: period, FiledAt: filed, Rank: 2,
				Name: "APPLE INC", CUSIP: "037833100", Ticker: "AAPL", ResolutionMethod: models.ResolvedStatic,
				Shares: 30, Value: 6000, PctOfPortfolio: 40, CombinedWeight: 10.4},
		},
	}
}

// Run exercises a SnapshotStore implementation.
func Run(t *testing.T, newStore Factory) {
	base := time.Date(2025, 11, 20, 10, 0, 0, 0, time.UTC)

	t.Run("save and get round trip", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		want := Snapshot("snap-1", base)
		require.NoError(t, store.SaveSnapshot(ctx, want))

		got, err := store.GetSnapshot(ctx, "snap-1")
		require.NoError(t, err)
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Label, got.Label)
		assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
		assert.True(t, want.PeriodDate.Equal(got.PeriodDate))
		assert.Equal(t, want.TopN, got.TopN)
		assert.Equal(t, want.ManagerWeights, got.ManagerWeights)
		require.Len(t, got.Managers, 2)
		require.Len(t, got.Rows, 4)

		byKey := make(map[string]models.SnapshotRow)
		for _, r := range got.Rows {
			byKey[fmt.Sprintf("%s/%d", r.Manager, r.Rank)] = r
		}
		aapl := byKey["M1/1"]
		assert.Equal(t, "AAPL", aapl.Ticker)
		assert.Equal(t, models.ResolvedStatic, aapl.ResolutionMethod)
		assert.InDelta(t, 66.6666, aapl.PctOfPortfolio, 1e-9)
		assert.InDelta(t, 10.4, aapl.CombinedWeight, 1e-9)
		require.NotNil(t, aapl.ManagerWeight)
		assert.Equal(t, 60.0, *aapl.ManagerWeight)
		require.NotNil(t, aapl.Attributes.ForwardPE)
		assert.Equal(t, 28.5, *aapl.Attributes.ForwardPE)
		assert.Equal(t, "Information Technology", aapl.Attributes.Sector)
		require.Len(t, aapl.Attributes.MonthlyReturns, 1)
		assert.True(t, aapl.Attributes.MonthlyReturns[0].Partial)

		private := byKey["M1/2"]
		assert.Equal(t, "", private.Ticker)
		assert.Equal(t, models.ResolvedUnresolved, private.ResolutionMethod)
		assert.Nil(t, private.Attributes.ForwardPE)
	})

	t.Run("snapshots are immutable", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.SaveSnapshot(ctx, Snapshot("snap-1", base)))

		again := Snapshot("snap-1", base.Add(time.Hour))
		again.Label = "overwritten"
		err := store.SaveSnapshot(ctx, again)
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrSnapshotExists))

		got, err := store.GetSnapshot(ctx, "snap-1")
		require.NoError(t, err)
		assert.Equal(t, "label snap-1", got.Label)
	})

	t.Run("unknown id", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetSnapshot(context.Background(), "missing")
		assert.True(t, errors.Is(err, models.ErrSnapshotNotFound))
		assert.True(t, errors.Is(store.DeleteSnapshot(context.Background(), "missing"), models.ErrSnapshotNotFound))
	})

	t.Run("list newest first", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.SaveSnapshot(ctx, Snapshot("old", base)))
		require.NoError(t, store.SaveSnapshot(ctx, Snapshot("new", base.Add(48*time.Hour))))
		require.NoError(t, store.SaveSnapshot(ctx, Snapshot("mid", base.Add(24*time.Hour))))

		list, err := store.ListSnapshots(ctx, 0)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "new", list[0].ID)
		assert.Equal(t, "mid", list[1].ID)
		assert.Equal(t, "old", list[2].ID)
		assert.Equal(t, 2, list[0].ManagerCount)
		assert.Equal(t, 4, list[0].HoldingCount)

		limited, err := store.ListSnapshots(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, limited, 2)
	})

	t.Run("delete removes rows", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.SaveSnapshot(ctx, Snapshot("snap-1", base)))
		require.NoError(t, store.DeleteSnapshot(ctx, "snap-1"))

		_, err := store.GetSnapshot(ctx, "snap-1")
		assert.True(t, errors.Is(err, models.ErrSnapshotNotFound))
		hist, err := store.TickerHistory(ctx, "AAPL", 0)
		require.NoError(t, err)
		assert.Empty(t, hist)
	})

	t.Run("ticker history", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.SaveSnapshot(ctx, Snapshot("q3", base)))
		require.NoError(t, store.SaveSnapshot(ctx, Snapshot("q4", base.Add(90*24*time.Hour))))

		hist, err := store.TickerHistory(ctx, "aapl", 0)
		require.NoError(t, err)
		require.Len(t, hist, 4)
		assert.Equal(t, "q4", hist[0].SnapshotID)
		assert.Equal(t, "M1", hist[0].Manager)
		assert.Equal(t, "M2", hist[1].Manager)
		assert.Equal(t, "q3", hist[3].SnapshotID)
		assert.InDelta(t, 10.4, hist[0].CombinedWeight, 1e-9)

		limited, err := store.TickerHistory(ctx, "AAPL", 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)

		none, err := store.TickerHistory(ctx, "ZZZZ", 0)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}
