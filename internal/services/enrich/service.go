// Package enrich attaches market attributes to resolved holdings. Every
// attribute is fetched and derived independently so a failing source
// leaves only its own fields empty.
package enrich

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bobmcallan/holdwise/internal/cache"
	"github.com/bobmcallan/holdwise/internal/common"
	"github.com/bobmcallan/holdwise/internal/interfaces"
	"github.com/bobmcallan/holdwise/internal/metrics"
	"github.com/bobmcallan/holdwise/internal/models"
	"github.com/bobmcallan/holdwise/internal/refdata"
)

// Source names used in logs and failure metrics.
const (
	SourcePrices       = "prices"
	SourceFundamentals = "fundamentals"
	SourceEarnings     = "earnings"
	SourceESG          = "esg"
)

// degradedTTL caps the lifetime of a cached result that is missing a
// source, so the gap is retried on a later run.
const degradedTTL = 15 * time.Minute

// Service implements Enricher
type Service struct {
	market   interfaces.MarketDataClient
	esg      interfaces.ESGProvider
	cache    cache.Store[models.Attributes]
	ttl      time.Duration
	tables   *refdata.Tables
	calendar *Calendar
	logger   *common.Logger
	metrics  *metrics.Metrics
	now      func() time.Time // injectable clock for testing

	group singleflight.Group
}

var _ interfaces.Enricher = (*Service)(nil)

// Option configures the service
type Option func(*Service)

// WithESGProvider enables the secondary ESG source
func WithESGProvider(p interfaces.ESGProvider) Option {
	return func(s *Service) { s.esg = p }
}

// WithCache sets the shared attribute cache and entry lifetime
func WithCache(store cache.Store[models.Attributes], ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = store
		s.ttl = ttl
	}
}

// WithTables overrides the reference tables used for classification
func WithTables(t *refdata.Tables) Option {
	return func(s *Service) { s.tables = t }
}

// WithCalendar overrides the exchange calendar
func WithCalendar(c *Calendar) Option {
	return func(s *Service) { s.calendar = c }
}

// WithMetrics records enrichment failures
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an enrichment service. market may be nil, in which
// case holdings pass through with classification fallbacks only.
func NewService(market interfaces.MarketDataClient, logger *common.Logger, opts ...Option) *Service {
	s := &Service{
		market: market,
		ttl:    common.FreshnessEnrichment,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = cache.NewMemoryStore[models.Attributes]()
	}
	if s.tables == nil {
		s.tables = refdata.Default()
	}
	if s.calendar == nil {
		s.calendar = NewCalendar("xnys")
	}
	return s
}

func cacheKey(ticker string, quarterEnd time.Time) string {
	return ticker + "|" + quarterEnd.Format(dayLayout)
}

// Enrich never fails. Unticked holdings and unavailable attributes come
// back with empty values; the holding itself is always returned.
func (s *Service) Enrich(ctx context.Context, holding models.ResolvedHolding, quarterEnd time.Time) models.EnrichedHolding {
	out := models.EnrichedHolding{ResolvedHolding: holding}
	if !holding.HasTicker() {
		return out
	}

	key := cacheKey(holding.Ticker, quarterEnd)
	if attrs, ok := s.cache.Get(ctx, key); ok {
		out.Attributes = attrs
		return out
	}

	v, _, _ := s.group.Do(key, func() (interface{}, error) {
		if attrs, ok := s.cache.Get(ctx, key); ok {
			return attrs, nil
		}
		attrs, succeeded, failed := s.fetch(ctx, holding.Ticker, holding.Name, quarterEnd)
		if ctx.Err() != nil || (failed > 0 && succeeded == 0) {
			return attrs, nil
		}
		ttl := s.ttl
		if failed > 0 && (ttl == 0 || ttl > degradedTTL) {
			ttl = degradedTTL
		}
		s.cache.Set(ctx, key, attrs, ttl)
		return attrs, nil
	})
	out.Attributes = v.(models.Attributes)
	return out
}

// EnrichAll enriches holdings in order, preserving count.
func (s *Service) EnrichAll(ctx context.Context, holdings []models.ResolvedHolding, quarterEnd time.Time) []models.EnrichedHolding {
	out := make([]models.EnrichedHolding, len(holdings))
	for i, h := range holdings {
		out[i] = s.Enrich(ctx, h, quarterEnd)
	}
	return out
}

// fetch gathers every source for one ticker and counts the sources that
// succeeded and failed.
func (s *Service) fetch(ctx context.Context, ticker, name string, quarterEnd time.Time) (attrs models.Attributes, succeeded, failed int) {
	today := s.calendar.LocalDate(s.now())

	run := func(source string, fn func() error) {
		if err := s.guard(ctx, fn); err != nil {
			failed++
			s.metrics.EnrichFailed(source)
			s.logger.Warn().Str("ticker", ticker).Str("source", source).Err(err).Msg("Enrichment source failed")
			return
		}
		succeeded++
	}

	if s.market != nil {
		run(SourcePrices, func() error { return s.applyPrices(ctx, ticker, quarterEnd, today, &attrs) })
		run(SourceFundamentals, func() error { return s.applyFundamentals(ctx, ticker, &attrs) })
		run(SourceEarnings, func() error { return s.applyEarnings(ctx, ticker, quarterEnd, today, &attrs) })
	}
	if s.esg != nil {
		run(SourceESG, func() error { return s.applyESG(ctx, ticker, name, &attrs) })
	}
	s.applyClassification(ticker, &attrs)

	return attrs, succeeded, failed
}

// guard stops before a network call once the run is cancelled and turns a
// panicking source into an error for that source only.
func (s *Service) guard(ctx context.Context, fn func() error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func (s *Service) applyPrices(ctx context.Context, ticker string, quarterEnd, today time.Time, attrs *models.Attributes) error {
	from := common.PriorQuarterEnd(common.PriorQuarterEnd(quarterEnd)).AddDate(0, 0, -priceWindowDays-2)
	to := s.calendar.LastSessionOnOrBefore(today)

	bars, err := s.market.GetEOD(ctx, ticker, from, to)
	if err != nil {
		return fmt.Errorf("failed to get EOD bars: %w", err)
	}
	series := newPriceSeries(bars)
	if len(series.bars) == 0 {
		return nil
	}

	if last, ok := series.lastOnOrBefore(today); ok {
		attrs.CurrentPrice = models.Float(last.Close)
	}
	attrs.FilingQuarterEndPrice, attrs.FilingQuarterReturnPct = quarterReturn(series, quarterEnd)
	attrs.PriorQuarterEndPrice, attrs.PriorQuarterReturnPct = quarterReturn(series, common.PriorQuarterEnd(quarterEnd))
	attrs.QTDStartPrice, attrs.QTDReturnPct = qtdReturn(series, quarterEnd, today)
	attrs.MonthlyReturns = monthlyReturns(series, quarterEnd, today)
	return nil
}

func (s *Service) applyFundamentals(ctx context.Context, ticker string, attrs *models.Attributes) error {
	f, err := s.market.GetFundamentals(ctx, ticker)
	if err != nil {
		return fmt.Errorf("failed to get fundamentals: %w", err)
	}
	if f == nil {
		return nil
	}

	attrs.Sector = s.tables.NormalizeSector(f.Sector)
	attrs.Industry = f.Industry
	attrs.Country = s.tables.NormalizeCountry(f.Country)
	attrs.MarketCap = f.MarketCap
	attrs.TrailingEPS = f.TrailingEPS
	attrs.ForwardEPS = f.ForwardEPS
	attrs.ForwardEPSGrowthPct = ForwardEPSGrowth(f)
	attrs.DividendYieldPct = NormalizeDividendYield(f.DividendYield, f.YieldConvention)

	attrs.ForwardPE = f.ForwardPE
	if attrs.ForwardPE == nil && attrs.CurrentPrice != nil && f.ForwardEPS != nil && *f.ForwardEPS > 0 {
		attrs.ForwardPE = models.Float(*attrs.CurrentPrice / *f.ForwardEPS)
	}
	return nil
}

func (s *Service) applyEarnings(ctx context.Context, ticker string, quarterEnd, today time.Time, attrs *models.Attributes) error {
	from := quarterEnd.Add(-earningsLookback)
	to := quarterEnd.Add(earningsLookahead)
	if to.After(today) {
		to = today
	}

	events, err := s.market.GetEarnings(ctx, ticker, from, to)
	if err != nil {
		return fmt.Errorf("failed to get earnings: %w", err)
	}
	e, ok := matchEarnings(events, quarterEnd)
	if !ok {
		return nil
	}
	attrs.ReportedEPS = e.Actual
	attrs.EstimateEPS = e.Estimate
	attrs.EPSBeatPct = EPSBeatPct(e.Actual, e.Estimate)
	return nil
}

func (s *Service) applyESG(ctx context.Context, ticker, name string, attrs *models.Attributes) error {
	scores, err := s.esg.GetESGScores(ctx, ticker, name)
	if err != nil {
		return fmt.Errorf("failed to get ESG scores: %w", err)
	}
	attrs.ESG = scores
	return nil
}

// applyClassification fills sector, industry and country from the static
// fallback table when the provider left them empty.
func (s *Service) applyClassification(ticker string, attrs *models.Attributes) {
	c, ok := s.tables.Classification(ticker)
	if !ok {
		return
	}
	if attrs.Sector == "" {
		attrs.Sector = s.tables.NormalizeSector(c.Sector)
	}
	if attrs.Industry == "" {
		attrs.Industry = c.Industry
	}
	if attrs.Country == "" {
		attrs.Country = s.tables.NormalizeCountry(c.Country)
	}
}
