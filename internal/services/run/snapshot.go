package run

import (
	"time"

	"github.com/bobmcallan/holdwise/internal/common"
	"github.com/bobmcallan/holdwise/internal/models"
)

// BuildSnapshot flattens a finished run into snapshot rows. Each row
// carries its position's combined portfolio weight.
func BuildSnapshot(id string, req models.RunRequest, quarterEnd, now time.Time, result *models.RunResult) *models.Snapshot {
	snap := &models.Snapshot{
		ID:             id,
		Label:          req.Label,
		RunDate:        common.DateOnly(now.UTC()),
		PeriodDate:     quarterEnd,
		CreatedAt:      now.UTC(),
		TopN:           req.TopN,
		ManagerWeights: result.Portfolio.ManagerWeights,
		Managers:       result.Managers,
	}

	for _, set := range result.Sets {
		if set.Period.After(snap.PeriodDate) {
			snap.PeriodDate = set.Period
		}
		var weight *float64
		if w, ok := result.Portfolio.ManagerWeights[set.Manager]; ok {
			weight = models.Float(w)
		}
		for _, h := range set.Holdings {
			combined := 0.0
			if pos, ok := result.Portfolio.Positions[models.PositionKey(h.Ticker, h.Name)]; ok {
				combined = pos.CombinedWeight
			}
			snap.Rows = append(snap.Rows, models.SnapshotRow{
				Manager:          set.Manager,
				ManagerWeight:    weight,
				Period:           h.PeriodOfReport,
				FiledAt:          h.FiledAt,
				Rank:             h.Rank,
				Name:             h.Name,
				CUSIP:            h.CUSIP,
				Ticker:           h.Ticker,
				ResolutionMethod: h.Method,
				Shares:           h.Shares,
				Value:            h.Value,
				PctOfPortfolio:   h.PctOfPortfolio,
				CombinedWeight:   combined,
				Attributes:       h.Attributes,
			})
		}
	}
	return snap
}
