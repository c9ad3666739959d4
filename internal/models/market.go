package models

import "time"

// EODBar represents a single day's price data
type EODBar struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adjusted_close"`
	Volume   int64     `json:"volume"`
}

// YieldConvention states how a provider expresses dividend yield.
type YieldConvention string

const (
	YieldFraction YieldConvention = "fraction" // 0.0052 means 0.52%
	YieldPercent  YieldConvention = "percent"  // 0.52 means 0.52%
	YieldAuto     YieldConvention = "auto"
)

// Fundamentals contains the fundamental fields used for enrichment.
// Zero-valued pointers mean the provider did not supply the field.
type Fundamentals struct {
	Ticker          string          `json:"ticker"`
	Name            string          `json:"name"`
	Sector          string          `json:"sector"`
	Industry        string          `json:"industry"`
	Country         string          `json:"country"`
	MarketCap       *float64        `json:"market_cap,omitempty"`
	ForwardPE       *float64        `json:"forward_pe,omitempty"`
	TrailingEPS     *float64        `json:"trailing_eps,omitempty"`
	ForwardEPS      *float64        `json:"forward_eps,omitempty"`
	EPSGrowthPct    *float64        `json:"eps_growth_pct,omitempty"` // consensus next-year growth, percent
	DividendYield   *float64        `json:"dividend_yield,omitempty"`
	YieldConvention YieldConvention `json:"yield_convention"`
}

// EarningsEvent is one reported quarter with its consensus estimate.
type EarningsEvent struct {
	ReportDate time.Time `json:"report_date"`
	PeriodEnd  time.Time `json:"period_end"`
	Actual     *float64  `json:"actual,omitempty"`
	Estimate   *float64  `json:"estimate,omitempty"`
}

// CompanyTicker is one row of the regulator's company index.
type CompanyTicker struct {
	CIK    int    `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}
