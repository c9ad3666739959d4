// Package holdings assembles enriched filing rows into a manager's
// ranked holdings set.
package holdings

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/holdwise/internal/models"
)

// pctPlaces is the precision of a holding's share of its manager's book.
// Values are truncated, never rounded up, so shares never sum above 100.
const pctPlaces = 4

// Build ranks holdings by reported value and computes each holding's
// percentage of the manager's total. Every input row is kept.
func Build(manager string, weight *float64, rows []models.EnrichedHolding) *models.ManagerHoldingsSet {
	set := &models.ManagerHoldingsSet{
		Manager:        manager,
		Weight:         weight,
		TotalPositions: len(rows),
		Holdings:       make([]models.PositionHolding, 0, len(rows)),
	}

	total := decimal.Zero
	for _, r := range rows {
		if r.Value > 0 {
			total = total.Add(decimal.NewFromFloat(r.Value))
		}
		if r.PeriodOfReport.After(set.Period) {
			set.Period = r.PeriodOfReport
		}
		if r.FiledAt.After(set.FiledAt) {
			set.FiledAt = r.FiledAt
		}
	}
	set.TotalValue = total.InexactFloat64()

	for _, r := range rows {
		set.Holdings = append(set.Holdings, models.PositionHolding{
			EnrichedHolding: r,
			PctOfPortfolio:  PctOf(r.Value, total),
		})
	}

	sort.SliceStable(set.Holdings, func(i, j int) bool {
		a, b := set.Holdings[i], set.Holdings[j]
		if a.Value != b.Value {
			return a.Value > b.Value
		}
		return strings.Compare(a.DisplayName(), b.DisplayName()) < 0
	})
	for i := range set.Holdings {
		set.Holdings[i].Rank = i + 1
	}
	return set
}

// PctOf returns value as a percentage of total, truncated to pctPlaces.
// Non-positive values and totals yield zero.
func PctOf(value float64, total decimal.Decimal) float64 {
	if value <= 0 || !total.IsPositive() {
		return 0
	}
	return decimal.NewFromFloat(value).
		Mul(decimal.NewFromInt(100)).
		DivRound(total, pctPlaces+4).
		Truncate(pctPlaces).
		InexactFloat64()
}
