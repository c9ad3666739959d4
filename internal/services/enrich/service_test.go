package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/holdwise/internal/common"
	"github.com/bobmcallan/holdwise/internal/metrics"
	"github.com/bobmcallan/holdwise/internal/models"
)

// fakeMarket serves fixed data and can fail any source.
type fakeMarket struct {
	mu       sync.Mutex
	bars     []models.EODBar
	fund     *models.Fundamentals
	events   []models.EarningsEvent
	eodErr   error
	fundErr  error
	earnErr  error
	eodCalls int
	panicEOD bool
}

func (f *fakeMarket) GetEOD(ctx context.Context, ticker string, from, to time.Time) ([]models.EODBar, error) {
	f.mu.Lock()
	f.eodCalls++
	f.mu.Unlock()
	if f.panicEOD {
		panic("malformed bar")
	}
	if f.eodErr != nil {
		return nil, f.eodErr
	}
	var out []models.EODBar
	for _, b := range f.bars {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeMarket) GetFundamentals(ctx context.Context, ticker string) (*models.Fundamentals, error) {
	if f.fundErr != nil {
		return nil, f.fundErr
	}
	return f.fund, nil
}

func (f *fakeMarket) GetEarnings(ctx context.Context, ticker string, from, to time.Time) ([]models.EarningsEvent, error) {
	if f.earnErr != nil {
		return nil, f.earnErr
	}
	return f.events, nil
}

func (f *fakeMarket) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.eodCalls
}

type fakeESG struct {
	scores *models.ESGScores
	err    error
}

func (f *fakeESG) GetESGScores(ctx context.Context, ticker, name string) (*models.ESGScores, error) {
	return f.scores, f.err
}

var testQuarterEnd = day("2025-09-30")

func healthyMarket() *fakeMarket {
	return &fakeMarket{
		bars: []models.EODBar{
			bar("2025-06-30", 100),
			bar("2025-09-30", 120),
			bar("2025-10-01", 125),
			bar("2025-10-15", 130),
			bar("2025-10-17", 137.5),
			bar("2025-11-03", 140),
		},
		fund: &models.Fundamentals{
			Ticker:          "AAPL",
			Sector:          "Technology",
			Industry:        "Consumer Electronics",
			Country:         "USA",
			ForwardPE:       models.Float(28.5),
			TrailingEPS:     models.Float(6),
			ForwardEPS:      models.Float(7.2),
			DividendYield:   models.Float(0.0052),
			YieldConvention: models.YieldFraction,
		},
		events: []models.EarningsEvent{
			{ReportDate: day("2025-10-30"), Actual: models.Float(1.85), Estimate: models.Float(1.76)},
		},
	}
}

func resolved(ticker, name string) models.ResolvedHolding {
	method := models.ResolvedStatic
	if ticker == "" {
		method = models.ResolvedUnresolved
	}
	return models.ResolvedHolding{
		RawHolding: models.RawHolding{Manager: "M1", Name: name, Value: 1000},
		Ticker:     ticker,
		Method:     method,
	}
}

// clockAt returns a clock fixed at the given UTC instant.
func clockAt(ts string) func() time.Time {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}

func newTestService(market *fakeMarket, opts ...Option) *Service {
	opts = append([]Option{WithClock(clockAt("2025-11-05T18:00:00Z"))}, opts...)
	return NewService(market, common.NewSilentLogger(), opts...)
}

func TestEnrich_AllSources(t *testing.T) {
	market := healthyMarket()
	svc := newTestService(market, WithESGProvider(&fakeESG{scores: &models.ESGScores{Total: models.Float(72)}}))

	out := svc.Enrich(context.Background(), resolved("AAPL", "APPLE INC"), testQuarterEnd)
	a := out.Attributes

	assert.Equal(t, "AAPL", out.Ticker)
	require.NotNil(t, a.CurrentPrice)
	assert.Equal(t, 140.0, *a.CurrentPrice)
	require.NotNil(t, a.FilingQuarterReturnPct)
	assert.InDelta(t, 20.0, *a.FilingQuarterReturnPct, 1e-9)
	require.NotNil(t, a.QTDReturnPct)
	assert.InDelta(t, 12.0, *a.QTDReturnPct, 1e-9)
	assert.Equal(t, 125.0, *a.QTDStartPrice)
	require.Len(t, a.MonthlyReturns, 2)
	assert.Equal(t, "Oct 2025", a.MonthlyReturns[0].Label)
	assert.True(t, a.MonthlyReturns[1].Partial)

	assert.Equal(t, 28.5, *a.ForwardPE)
	assert.InDelta(t, 20.0, *a.ForwardEPSGrowthPct, 1e-9)
	assert.InDelta(t, 0.52, *a.DividendYieldPct, 1e-9)
	assert.Equal(t, "Information Technology", a.Sector)
	assert.Equal(t, "United States", a.Country)

	require.NotNil(t, a.EPSBeatPct)
	assert.InDelta(t, (1.85-1.76)/1.76*100, *a.EPSBeatPct, 1e-9)
	require.NotNil(t, a.ESG)
	assert.Equal(t, 72.0, *a.ESG.Total)
}

func TestEnrich_FailingSourceLeavesOthers(t *testing.T) {
	market := healthyMarket()
	market.fundErr = errors.New("EODHD API error: upstream (status: 502)")
	m := metrics.New()
	svc := newTestService(market, WithMetrics(m))

	out := svc.Enrich(context.Background(), resolved("AAPL", "APPLE INC"), testQuarterEnd)

	assert.Nil(t, out.Attributes.ForwardPE)
	assert.Nil(t, out.Attributes.DividendYieldPct)
	assert.NotNil(t, out.Attributes.QTDReturnPct, "prices are unaffected")
	assert.NotNil(t, out.Attributes.EPSBeatPct, "earnings are unaffected")
	assert.Equal(t, "Information Technology", out.Attributes.Sector, "static classification fills the gap")

}

func TestEnrich_PartialResultIsCachedAcrossManagers(t *testing.T) {
	market := healthyMarket()
	market.fundErr = &eodhdNotFound{}
	svc := newTestService(market)
	ctx := context.Background()

	for _, manager := range []string{"M1", "M2", "M3"} {
		h := resolved("SPY", "SPDR S&P 500 ETF TRUST")
		h.Manager = manager
		out := svc.Enrich(ctx, h, testQuarterEnd)
		require.NotNil(t, out.Attributes.CurrentPrice)
		assert.Nil(t, out.Attributes.ForwardPE)
	}
	assert.Equal(t, 1, market.calls())
}

func TestEnrich_PartialResultUsesShortTTL(t *testing.T) {
	market := healthyMarket()
	market.fundErr = errors.New("timeout")
	store := &recordingStore{}
	svc := newTestService(market, WithCache(store, 6*time.Hour))

	svc.Enrich(context.Background(), resolved("AAPL", "APPLE INC"), testQuarterEnd)
	assert.Equal(t, []time.Duration{degradedTTL}, store.ttls)

	market.fundErr = nil
	svc.Enrich(context.Background(), resolved("MSFT", "MICROSOFT CORP"), testQuarterEnd)
	assert.Equal(t, []time.Duration{degradedTTL, 6 * time.Hour}, store.ttls)
}

func TestEnrich_TotalFailureIsNotCached(t *testing.T) {
	market := &fakeMarket{
		eodErr:  errors.New("EODHD API error: unauthorized (status: 401)"),
		fundErr: errors.New("EODHD API error: unauthorized (status: 401)"),
		earnErr: errors.New("EODHD API error: unauthorized (status: 401)"),
	}
	svc := newTestService(market)

	svc.Enrich(context.Background(), resolved("AAPL", "APPLE INC"), testQuarterEnd)
	svc.Enrich(context.Background(), resolved("AAPL", "APPLE INC"), testQuarterEnd)
	assert.Equal(t, 2, market.calls())
}

type eodhdNotFound struct{}

func (*eodhdNotFound) Error() string { return "EODHD API error: not found (status: 404)" }

// recordingStore keeps values in memory and remembers every ttl it was given.
type recordingStore struct {
	mu     sync.Mutex
	values map[string]models.Attributes
	ttls   []time.Duration
}

func (r *recordingStore) Get(ctx context.Context, key string) (models.Attributes, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[key]
	return v, ok
}

func (r *recordingStore) Set(ctx context.Context, key string, value models.Attributes, ttl time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.values == nil {
		r.values = make(map[string]models.Attributes)
	}
	r.values[key] = value
	r.ttls = append(r.ttls, ttl)
}

func TestEnrich_PanickingSourceIsContained(t *testing.T) {
	market := healthyMarket()
	market.panicEOD = true
	svc := newTestService(market)

	out := svc.Enrich(context.Background(), resolved("AAPL", "APPLE INC"), testQuarterEnd)
	assert.Nil(t, out.Attributes.CurrentPrice)
	assert.NotNil(t, out.Attributes.ForwardPE)
}

func TestEnrichAll_PreservesSetSize(t *testing.T) {
	market := &fakeMarket{
		eodErr:  errors.New("timeout"),
		fundErr: errors.New("timeout"),
		earnErr: errors.New("timeout"),
	}
	svc := newTestService(market, WithESGProvider(&fakeESG{err: errors.New("quota")}))

	in := []models.ResolvedHolding{
		resolved("AAPL", "APPLE INC"),
		resolved("", "PRIVATE HOLDINGS LP"),
		resolved("ZZZZ", "UNKNOWN CORP"),
	}
	out := svc.EnrichAll(context.Background(), in, testQuarterEnd)

	require.Len(t, out, len(in))
	for i := range in {
		assert.Equal(t, in[i].Name, out[i].Name)
		assert.Equal(t, in[i].Ticker, out[i].Ticker)
		assert.Nil(t, out[i].Attributes.QTDReturnPct)
	}
}

func TestEnrich_UnresolvedSkipsNetwork(t *testing.T) {
	market := healthyMarket()
	svc := newTestService(market)

	out := svc.Enrich(context.Background(), resolved("", "PRIVATE HOLDINGS LP"), testQuarterEnd)
	assert.Equal(t, "PRIVATE HOLDINGS LP", out.DisplayName())
	assert.Equal(t, 0, market.calls())
}

func TestEnrich_CachesPerTickerAndQuarter(t *testing.T) {
	market := healthyMarket()
	svc := newTestService(market)
	ctx := context.Background()

	svc.Enrich(ctx, resolved("AAPL", "APPLE INC"), testQuarterEnd)
	svc.Enrich(ctx, resolved("AAPL", "APPLE INC"), testQuarterEnd)
	assert.Equal(t, 1, market.calls())

	svc.Enrich(ctx, resolved("AAPL", "APPLE INC"), day("2025-06-30"))
	assert.Equal(t, 2, market.calls(), "a different quarter is a different entry")
}

func TestEnrich_ConcurrentSameTickerFetchesOnce(t *testing.T) {
	market := healthyMarket()
	svc := newTestService(market)

	var wg sync.WaitGroup
	results := make([]models.EnrichedHolding, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.Enrich(context.Background(), resolved("AAPL", "APPLE INC"), testQuarterEnd)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, market.calls())
	for _, r := range results {
		require.NotNil(t, r.Attributes.QTDReturnPct)
		assert.InDelta(t, 12.0, *r.Attributes.QTDReturnPct, 1e-9)
	}
}

func TestEnrich_CancelledStopsBeforeNetwork(t *testing.T) {
	market := healthyMarket()
	svc := newTestService(market)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := svc.Enrich(ctx, resolved("AAPL", "APPLE INC"), testQuarterEnd)
	assert.Equal(t, "AAPL", out.Ticker)
	assert.Nil(t, out.Attributes.CurrentPrice)
	assert.Equal(t, 0, market.calls())

	// nothing was cached by the cancelled call
	svc.Enrich(context.Background(), resolved("AAPL", "APPLE INC"), testQuarterEnd)
	assert.Equal(t, 1, market.calls())
}

func TestEnrich_QTDUsesExchangeLocalDate(t *testing.T) {
	market := healthyMarket()
	market.bars = append(market.bars, bar("2025-10-02", 126))

	// 02:00 UTC on Oct 1 is still Sep 30 in New York
	svc := newTestService(market, WithClock(clockAt("2025-10-01T02:00:00Z")))
	out := svc.Enrich(context.Background(), resolved("AAPL", "APPLE INC"), testQuarterEnd)
	assert.Nil(t, out.Attributes.QTDReturnPct)
	assert.Empty(t, out.Attributes.MonthlyReturns)
	require.NotNil(t, out.Attributes.CurrentPrice)
	assert.Equal(t, 120.0, *out.Attributes.CurrentPrice)
}
