package models

import (
	"sort"
	"time"
)

// PositionHolding is an enriched holding placed within its manager's set.
type PositionHolding struct {
	EnrichedHolding
	Rank           int     `json:"rank"`
	PctOfPortfolio float64 `json:"pct_of_portfolio"`
}

// ManagerHoldingsSet is the full holdings of one manager for one period.
type ManagerHoldingsSet struct {
	Manager        string            `json:"manager"`
	Period         time.Time         `json:"period"`
	FiledAt        time.Time         `json:"filed_at"`
	Weight         *float64          `json:"weight,omitempty"` // 0-100, nil when unspecified
	TotalValue     float64           `json:"total_value"`
	TotalPositions int               `json:"total_positions"`
	Holdings       []PositionHolding `json:"holdings"`
}

// Top returns up to n holdings by rank. n <= 0 returns all.
func (s *ManagerHoldingsSet) Top(n int) []PositionHolding {
	if n <= 0 || n >= len(s.Holdings) {
		return s.Holdings
	}
	return s.Holdings[:n]
}

// Contribution is one manager's share of a combined position.
type Contribution struct {
	Manager        string  `json:"manager"`
	ManagerWeight  float64 `json:"manager_weight"`
	PctOfManager   float64 `json:"pct_of_manager"`
	CombinedWeight float64 `json:"combined_weight"`
}

// Position is one deduplicated security in the weighted portfolio.
type Position struct {
	Key            string         `json:"key"`
	Ticker         string         `json:"ticker,omitempty"`
	Name           string         `json:"name"`
	CUSIP          string         `json:"cusip,omitempty"`
	CombinedWeight float64        `json:"combined_weight"`
	Contributions  []Contribution `json:"contributions"`
	Attributes     Attributes     `json:"attributes"`
}

// MonthlyReturnTotal is a weighted monthly return across the portfolio.
type MonthlyReturnTotal struct {
	Label     string  `json:"label"`
	ReturnPct float64 `json:"return_pct"`
	Partial   bool    `json:"partial,omitempty"`
}

// PortfolioTotals are the weighted statistics of the full portfolio.
type PortfolioTotals struct {
	Positions              int                  `json:"positions"`
	Managers               int                  `json:"managers"`
	TotalWeight            float64              `json:"total_weight"`
	ForwardPE              *float64             `json:"forward_pe,omitempty"`
	EPSGrowthPct           *float64             `json:"eps_growth_pct,omitempty"`
	DividendYieldPct       *float64             `json:"dividend_yield_pct,omitempty"`
	ExpectedReturnPct      *float64             `json:"expected_return_pct,omitempty"`
	QTDReturnPct           *float64             `json:"qtd_return_pct,omitempty"`
	FilingQuarterReturnPct *float64             `json:"filing_quarter_return_pct,omitempty"`
	PriorQuarterReturnPct  *float64             `json:"prior_quarter_return_pct,omitempty"`
	MonthlyReturns         []MonthlyReturnTotal `json:"monthly_returns,omitempty"`
	EPSBeatRatePct         *float64             `json:"eps_beat_rate_pct,omitempty"`
}

// WeightedPortfolio combines several managers' holdings into one book.
type WeightedPortfolio struct {
	ManagerWeights map[string]float64   `json:"manager_weights"`
	Positions      map[string]*Position `json:"positions"`
	Totals         PortfolioTotals      `json:"totals"`
}

// Ranked returns every position ordered by combined weight, largest first.
func (p *WeightedPortfolio) Ranked() []*Position {
	out := make([]*Position, 0, len(p.Positions))
	for _, pos := range p.Positions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CombinedWeight != out[j].CombinedWeight {
			return out[i].CombinedWeight > out[j].CombinedWeight
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Top returns the n largest positions. It is a display view only and never
// affects Totals. n <= 0 returns all.
func (p *WeightedPortfolio) Top(n int) []*Position {
	ranked := p.Ranked()
	if n <= 0 || n >= len(ranked) {
		return ranked
	}
	return ranked[:n]
}

// OverlapEntry is a security held by more than one manager.
type OverlapEntry struct {
	Key            string   `json:"key"`
	Ticker         string   `json:"ticker,omitempty"`
	Name           string   `json:"name"`
	Managers       []string `json:"managers"`
	CombinedWeight float64  `json:"combined_weight"`
	Sector         string   `json:"sector,omitempty"`
}

// BreakdownEntry is the combined weight of one sector or country.
type BreakdownEntry struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Count  int     `json:"count"`
}
