// Package aggregate combines manager holdings sets into one weighted
// portfolio and reduces per-stock attributes to portfolio statistics.
package aggregate

import (
	"sort"

	"github.com/bobmcallan/holdwise/internal/models"
)

// ResolveWeights returns the weight used for each manager in sets.
// Explicit entries in weights take precedence over a set's own weight.
// When no manager has a positive weight every manager gets 100/N;
// otherwise managers without a weight contribute nothing.
func ResolveWeights(sets []*models.ManagerHoldingsSet, weights map[string]float64) map[string]float64 {
	explicit := make(map[string]float64)
	var managers []string
	seen := make(map[string]bool)
	anyPositive := false

	for _, set := range sets {
		if set == nil || seen[set.Manager] {
			continue
		}
		seen[set.Manager] = true
		managers = append(managers, set.Manager)

		w, ok := weights[set.Manager]
		if !ok && set.Weight != nil {
			w, ok = *set.Weight, true
		}
		if ok {
			explicit[set.Manager] = w
			if w > 0 {
				anyPositive = true
			}
		}
	}

	out := make(map[string]float64, len(managers))
	for _, m := range managers {
		if anyPositive {
			out[m] = explicit[m]
		} else {
			out[m] = 100.0 / float64(len(managers))
		}
	}
	return out
}

// Aggregate builds the weighted portfolio from the full holdings of every
// set. A stock's combined weight is the sum over its managers of
// manager weight x pct of that manager's book / 100. Positions are keyed
// by ticker, or by normalised name for unticked holdings.
func Aggregate(sets []*models.ManagerHoldingsSet, weights map[string]float64) *models.WeightedPortfolio {
	p := &models.WeightedPortfolio{
		ManagerWeights: ResolveWeights(sets, weights),
		Positions:      make(map[string]*models.Position),
	}

	ordered := make([]*models.ManagerHoldingsSet, 0, len(sets))
	for _, set := range sets {
		if set != nil {
			ordered = append(ordered, set)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Manager < ordered[j].Manager
	})

	for _, set := range ordered {
		mw := p.ManagerWeights[set.Manager]
		for i := range set.Holdings {
			addHolding(p, set.Manager, mw, &set.Holdings[i])
		}
	}

	p.Totals = Totals(p)
	return p
}

func addHolding(p *models.WeightedPortfolio, manager string, managerWeight float64, h *models.PositionHolding) {
	key := models.PositionKey(h.Ticker, h.Name)
	pos, ok := p.Positions[key]
	if !ok {
		pos = &models.Position{
			Key:    key,
			Ticker: h.Ticker,
			Name:   h.Name,
			CUSIP:  h.CUSIP,
		}
		p.Positions[key] = pos
	}
	if pos.Name == "" {
		pos.Name = h.Name
	}
	if pos.CUSIP == "" {
		pos.CUSIP = h.CUSIP
	}

	combined := managerWeight * h.PctOfPortfolio / 100
	pos.CombinedWeight += combined

	// one manager can hold a ticker under several CUSIPs
	merged := false
	for i := range pos.Contributions {
		c := &pos.Contributions[i]
		if c.Manager == manager {
			c.PctOfManager += h.PctOfPortfolio
			c.CombinedWeight += combined
			merged = true
			break
		}
	}
	if !merged {
		pos.Contributions = append(pos.Contributions, models.Contribution{
			Manager:        manager,
			ManagerWeight:  managerWeight,
			PctOfManager:   h.PctOfPortfolio,
			CombinedWeight: combined,
		})
	}

	mergeAttributes(&pos.Attributes, &h.Attributes)
}

// mergeAttributes fills empty fields of dst from src. Attributes are per
// ticker, so the first non-empty value wins.
func mergeAttributes(dst, src *models.Attributes) {
	fill := func(d **float64, s *float64) {
		if *d == nil && s != nil {
			*d = s
		}
	}
	fill(&dst.CurrentPrice, src.CurrentPrice)
	fill(&dst.FilingQuarterEndPrice, src.FilingQuarterEndPrice)
	fill(&dst.FilingQuarterReturnPct, src.FilingQuarterReturnPct)
	fill(&dst.PriorQuarterEndPrice, src.PriorQuarterEndPrice)
	fill(&dst.PriorQuarterReturnPct, src.PriorQuarterReturnPct)
	fill(&dst.QTDStartPrice, src.QTDStartPrice)
	fill(&dst.QTDReturnPct, src.QTDReturnPct)
	fill(&dst.ForwardPE, src.ForwardPE)
	fill(&dst.ForwardEPS, src.ForwardEPS)
	fill(&dst.TrailingEPS, src.TrailingEPS)
	fill(&dst.ForwardEPSGrowthPct, src.ForwardEPSGrowthPct)
	fill(&dst.DividendYieldPct, src.DividendYieldPct)
	fill(&dst.MarketCap, src.MarketCap)
	fill(&dst.ReportedEPS, src.ReportedEPS)
	fill(&dst.EstimateEPS, src.EstimateEPS)
	fill(&dst.EPSBeatPct, src.EPSBeatPct)

	if len(dst.MonthlyReturns) == 0 && len(src.MonthlyReturns) > 0 {
		dst.MonthlyReturns = src.MonthlyReturns
	}
	if dst.Sector == "" {
		dst.Sector = src.Sector
	}
	if dst.Industry == "" {
		dst.Industry = src.Industry
	}
	if dst.Country == "" {
		dst.Country = src.Country
	}
	if dst.ESG == nil {
		dst.ESG = src.ESG
	}
}

// Totals reduces every position of the portfolio, regardless of any
// display truncation, to portfolio statistics weighted by combined weight.
func Totals(p *models.WeightedPortfolio) models.PortfolioTotals {
	items := make([]weighted, 0, len(p.Positions))
	total := 0.0
	for _, key := range sortedKeys(p.Positions) {
		pos := p.Positions[key]
		total += pos.CombinedWeight
		items = append(items, weighted{weight: pos.CombinedWeight, attrs: &pos.Attributes})
	}

	t := reduce(items)
	t.Positions = len(p.Positions)
	t.Managers = len(p.ManagerWeights)
	t.TotalWeight = total
	return t
}

// ManagerTotals reduces one manager's full holdings set, weighting each
// holding by its share of the manager's book.
func ManagerTotals(set *models.ManagerHoldingsSet) models.PortfolioTotals {
	items := make([]weighted, 0, len(set.Holdings))
	total := 0.0
	for i := range set.Holdings {
		h := &set.Holdings[i]
		total += h.PctOfPortfolio
		items = append(items, weighted{weight: h.PctOfPortfolio, attrs: &h.Attributes})
	}

	t := reduce(items)
	t.Positions = len(set.Holdings)
	t.Managers = 1
	t.TotalWeight = total
	return t
}

func sortedKeys(m map[string]*models.Position) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
