// Package interfaces defines service contracts for holdwise
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/holdwise/internal/models"
)

// IdentifierMapper resolves one batch of CUSIPs to tickers. A CUSIP absent
// from the returned map was looked up successfully but has no ticker.
type IdentifierMapper interface {
	MapCUSIPs(ctx context.Context, cusips []string) (map[string]string, error)
}

// CompanyIndexClient loads the regulator's company name index.
type CompanyIndexClient interface {
	GetCompanyTickers(ctx context.Context) ([]models.CompanyTicker, error)
}

// MarketDataClient provides prices, fundamentals and earnings.
type MarketDataClient interface {
	// GetEOD returns daily bars between from and to inclusive, oldest first
	GetEOD(ctx context.Context, ticker string, from, to time.Time) ([]models.EODBar, error)

	// GetFundamentals returns valuation and classification fields
	GetFundamentals(ctx context.Context, ticker string) (*models.Fundamentals, error)

	// GetEarnings returns reported quarters with consensus estimates
	GetEarnings(ctx context.Context, ticker string, from, to time.Time) ([]models.EarningsEvent, error)
}

// ESGProvider is the secondary source for ESG scores.
type ESGProvider interface {
	GetESGScores(ctx context.Context, ticker, name string) (*models.ESGScores, error)
}

// FilingSource supplies the parsed holdings of one manager's latest filing
// for a reporting period.
type FilingSource interface {
	FetchHoldings(ctx context.Context, manager models.ManagerInput, quarterEnd time.Time) ([]models.RawHolding, error)
}
