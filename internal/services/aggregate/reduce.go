package aggregate

import (
	"sort"
	"time"

	"github.com/bobmcallan/holdwise/internal/models"
)

// Forward EPS growth is clamped to this range before weighting.
const (
	EPSGrowthFloor = -50.0
	EPSGrowthCap   = 50.0
)

type weighted struct {
	weight float64
	attrs  *models.Attributes
}

func reduce(items []weighted) models.PortfolioTotals {
	t := models.PortfolioTotals{
		ForwardPE:              harmonicPE(items),
		EPSGrowthPct:           weightedMean(items, winsorizedGrowth),
		DividendYieldPct:       weightedMean(items, func(a *models.Attributes) *float64 { return a.DividendYieldPct }),
		QTDReturnPct:           weightedMean(items, func(a *models.Attributes) *float64 { return a.QTDReturnPct }),
		FilingQuarterReturnPct: weightedMean(items, func(a *models.Attributes) *float64 { return a.FilingQuarterReturnPct }),
		PriorQuarterReturnPct:  weightedMean(items, func(a *models.Attributes) *float64 { return a.PriorQuarterReturnPct }),
		MonthlyReturns:         monthlyTotals(items),
		EPSBeatRatePct:         beatRate(items),
	}
	if t.EPSGrowthPct != nil && t.DividendYieldPct != nil {
		t.ExpectedReturnPct = models.Float(*t.EPSGrowthPct + *t.DividendYieldPct)
	}
	return t
}

// harmonicPE is the weighted harmonic mean of forward P/E. Stocks with a
// P/E at or below zero are left out of both sums.
func harmonicPE(items []weighted) *float64 {
	var wsum, inv float64
	for _, it := range items {
		pe := it.attrs.ForwardPE
		if it.weight <= 0 || pe == nil || *pe <= 0 {
			continue
		}
		wsum += it.weight
		inv += it.weight / *pe
	}
	if inv <= 0 {
		return nil
	}
	return models.Float(wsum / inv)
}

// Winsorize clamps v to [EPSGrowthFloor, EPSGrowthCap].
func Winsorize(v float64) float64 {
	switch {
	case v < EPSGrowthFloor:
		return EPSGrowthFloor
	case v > EPSGrowthCap:
		return EPSGrowthCap
	}
	return v
}

func winsorizedGrowth(a *models.Attributes) *float64 {
	if a.ForwardEPSGrowthPct == nil {
		return nil
	}
	return models.Float(Winsorize(*a.ForwardEPSGrowthPct))
}

// weightedMean averages get over items that have a value, renormalising
// the weights over those items only.
func weightedMean(items []weighted, get func(*models.Attributes) *float64) *float64 {
	var wsum, vsum float64
	for _, it := range items {
		if it.weight <= 0 {
			continue
		}
		v := get(it.attrs)
		if v == nil {
			continue
		}
		wsum += it.weight
		vsum += it.weight * *v
	}
	if wsum <= 0 {
		return nil
	}
	return models.Float(vsum / wsum)
}

// monthlyTotals reduces each month label independently, oldest first.
func monthlyTotals(items []weighted) []models.MonthlyReturnTotal {
	type acc struct {
		wsum, vsum float64
		partial    bool
	}
	byLabel := make(map[string]*acc)
	for _, it := range items {
		if it.weight <= 0 {
			continue
		}
		for _, m := range it.attrs.MonthlyReturns {
			a, ok := byLabel[m.Label]
			if !ok {
				a = &acc{}
				byLabel[m.Label] = a
			}
			a.wsum += it.weight
			a.vsum += it.weight * m.ReturnPct
			a.partial = a.partial || m.Partial
		}
	}

	out := make([]models.MonthlyReturnTotal, 0, len(byLabel))
	for label, a := range byLabel {
		out = append(out, models.MonthlyReturnTotal{
			Label:     label,
			ReturnPct: a.vsum / a.wsum,
			Partial:   a.partial,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		ti, ei := time.Parse("Jan 2006", out[i].Label)
		tj, ej := time.Parse("Jan 2006", out[j].Label)
		if ei != nil || ej != nil {
			return out[i].Label < out[j].Label
		}
		return ti.Before(tj)
	})
	return out
}

// beatRate is the share of positions with an EPS result that beat the
// consensus estimate.
func beatRate(items []weighted) *float64 {
	var reported, beats int
	for _, it := range items {
		if it.attrs.EPSBeatPct == nil {
			continue
		}
		reported++
		if *it.attrs.EPSBeatPct > 0 {
			beats++
		}
	}
	if reported == 0 {
		return nil
	}
	return models.Float(float64(beats) / float64(reported) * 100)
}
