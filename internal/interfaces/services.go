package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/holdwise/internal/models"
)

// IdentifierResolver maps raw holdings to canonical tickers.
type IdentifierResolver interface {
	// ResolveAll resolves a manager's holdings, preserving order and count
	ResolveAll(ctx context.Context, raws []models.RawHolding) []models.ResolvedHolding
}

// Enricher attaches market attributes to resolved holdings.
type Enricher interface {
	// Enrich never fails; unavailable attributes are left nil
	Enrich(ctx context.Context, holding models.ResolvedHolding, quarterEnd time.Time) models.EnrichedHolding

	// EnrichAll enriches a manager's holdings, preserving order and count
	EnrichAll(ctx context.Context, holdings []models.ResolvedHolding, quarterEnd time.Time) []models.EnrichedHolding
}

// ProgressFunc receives run events. It is called from worker goroutines
// and must be safe for concurrent use.
type ProgressFunc func(models.RunEvent)
