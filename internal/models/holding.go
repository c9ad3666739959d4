// Package models defines data structures for holdwise
package models

import "time"

// RawHolding is one position line as parsed from a manager's filing.
// It is never modified after parsing.
type RawHolding struct {
	Manager        string    `json:"manager"`
	CUSIP          string    `json:"cusip"`
	Name           string    `json:"name"`
	Ticker         string    `json:"ticker,omitempty"` // inline ticker when the source carries one
	Shares         float64   `json:"shares"`
	Value          float64   `json:"value"`
	PeriodOfReport time.Time `json:"period_of_report"`
	FiledAt        time.Time `json:"filed_at"`
}

// ResolutionMethod records which stage produced a holding's ticker.
type ResolutionMethod string

const (
	ResolvedInline     ResolutionMethod = "inline"
	ResolvedStatic     ResolutionMethod = "static"
	ResolvedExternal   ResolutionMethod = "external"
	ResolvedName       ResolutionMethod = "name"
	ResolvedUnresolved ResolutionMethod = "unresolved"
)

// ResolvedHolding is a RawHolding with its canonical ticker. An empty
// Ticker always pairs with ResolvedUnresolved; it is written as null.
type ResolvedHolding struct {
	RawHolding
	Ticker  string           `json:"ticker,omitempty"`
	Method  ResolutionMethod `json:"resolution_method"`
	Aliased bool             `json:"aliased,omitempty"`
}

// HasTicker reports whether resolution produced a ticker.
func (h *ResolvedHolding) HasTicker() bool {
	return h.Ticker != ""
}

// DisplayName returns the ticker when known, otherwise the filing name.
func (h *ResolvedHolding) DisplayName() string {
	if h.Ticker != "" {
		return h.Ticker
	}
	return h.Name
}

// EnrichedHolding is a ResolvedHolding plus market attributes.
type EnrichedHolding struct {
	ResolvedHolding
	Attributes Attributes `json:"attributes"`
}

// Attributes holds market-derived values for one ticker. Every field is
// independently optional: a nil pointer or empty string means unavailable.
type Attributes struct {
	CurrentPrice *float64 `json:"current_price,omitempty"`

	FilingQuarterEndPrice  *float64 `json:"filing_quarter_end_price,omitempty"`
	FilingQuarterReturnPct *float64 `json:"filing_quarter_return_pct,omitempty"`
	PriorQuarterEndPrice   *float64 `json:"prior_quarter_end_price,omitempty"`
	PriorQuarterReturnPct  *float64 `json:"prior_quarter_return_pct,omitempty"`

	QTDStartPrice  *float64        `json:"qtd_start_price,omitempty"`
	QTDReturnPct   *float64        `json:"qtd_return_pct,omitempty"`
	MonthlyReturns []MonthlyReturn `json:"monthly_returns,omitempty"`

	ForwardPE           *float64 `json:"forward_pe,omitempty"`
	ForwardEPS          *float64 `json:"forward_eps,omitempty"`
	TrailingEPS         *float64 `json:"trailing_eps,omitempty"`
	ForwardEPSGrowthPct *float64 `json:"forward_eps_growth_pct,omitempty"`
	DividendYieldPct    *float64 `json:"dividend_yield_pct,omitempty"`
	MarketCap           *float64 `json:"market_cap,omitempty"`

	ReportedEPS *float64 `json:"reported_eps,omitempty"`
	EstimateEPS *float64 `json:"estimate_eps,omitempty"`
	EPSBeatPct  *float64 `json:"eps_beat_pct,omitempty"`

	Sector   string `json:"sector,omitempty"`
	Industry string `json:"industry,omitempty"`
	Country  string `json:"country,omitempty"`

	ESG *ESGScores `json:"esg,omitempty"`
}

// MonthlyReturn is the return of one calendar month after the reporting
// quarter. Partial marks a month still in progress.
type MonthlyReturn struct {
	Label     string  `json:"label"` // e.g. "Oct 2025"
	ReturnPct float64 `json:"return_pct"`
	Partial   bool    `json:"partial,omitempty"`
}

// ESGScores holds scores from the secondary provider.
type ESGScores struct {
	Total         *float64 `json:"total,omitempty"`
	Environmental *float64 `json:"environmental,omitempty"`
	Social        *float64 `json:"social,omitempty"`
	Governance    *float64 `json:"governance,omitempty"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
