package run

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/holdwise/internal/common"
	"github.com/bobmcallan/holdwise/internal/metrics"
	"github.com/bobmcallan/holdwise/internal/models"
	"github.com/bobmcallan/holdwise/internal/storage/memory"
)

var quarterEnd = time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)

type fakeFilings struct {
	holdings map[string][]models.RawHolding
	errs     map[string]error
	panics   map[string]bool
	block    chan struct{} // when set, fetches wait for it or ctx
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeFilings) FetchHoldings(ctx context.Context, m models.ManagerInput, _ time.Time) ([]models.RawHolding, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if f.panics[m.Name] {
		panic("parser exploded")
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.errs[m.Name]; err != nil {
		return nil, err
	}
	return f.holdings[m.Name], nil
}

// tickerResolver treats the CUSIP field as the ticker.
type tickerResolver struct{}

func (tickerResolver) ResolveAll(_ context.Context, raws []models.RawHolding) []models.ResolvedHolding {
	out := make([]models.ResolvedHolding, len(raws))
	for i, r := range raws {
		out[i] = models.ResolvedHolding{RawHolding: r, Ticker: r.CUSIP, Method: models.ResolvedStatic}
		if r.CUSIP == "" {
			out[i].Method = models.ResolvedUnresolved
		}
	}
	return out
}

type peEnricher struct{}

func (peEnricher) Enrich(_ context.Context, h models.ResolvedHolding, _ time.Time) models.EnrichedHolding {
	out := models.EnrichedHolding{ResolvedHolding: h}
	if h.HasTicker() {
		out.Attributes.ForwardPE = models.Float(20)
	}
	return out
}

func (e peEnricher) EnrichAll(ctx context.Context, hs []models.ResolvedHolding, qe time.Time) []models.EnrichedHolding {
	out := make([]models.EnrichedHolding, len(hs))
	for i, h := range hs {
		out[i] = e.Enrich(ctx, h, qe)
	}
	return out
}

func raw(manager, ticker string, value float64) models.RawHolding {
	return models.RawHolding{Manager: manager, CUSIP: ticker, Name: ticker + " INC", Value: value, PeriodOfReport: quarterEnd}
}

func scenario() *fakeFilings {
	return &fakeFilings{holdings: map[string][]models.RawHolding{
		"M1": {raw("M1", "AAPL", 10), raw("M1", "MSFT", 5), raw("M1", "OTHER1", 85)},
		"M2": {raw("M2", "AAPL", 8), raw("M2", "GOOG", 12), raw("M2", "OTHER2", 80)},
	}}
}

func newTestService(f *fakeFilings, opts ...Option) *Service {
	n := 0
	opts = append([]Option{
		WithClock(func() time.Time { return time.Date(2025, 11, 20, 12, 0, 0, 0, time.UTC) }),
		WithIDs(func() string { n++; return fmt.Sprintf("run-%d", n) }),
	}, opts...)
	return NewService(f, tickerResolver{}, peEnricher{}, common.NewSilentLogger(), opts...)
}

func managers() []models.ManagerInput {
	return []models.ManagerInput{
		{Name: "M1", Weight: models.Float(60)},
		{Name: "M2", Weight: models.Float(40)},
	}
}

func TestRun_EndToEnd(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(scenario(), WithStore(store), WithMetrics(metrics.New()))

	var events []models.RunEvent
	var mu sync.Mutex
	res, err := svc.Run(context.Background(), models.RunRequest{
		Managers: managers(), QuarterEnd: quarterEnd, TopN: 10, Label: "3Q25", Persist: true,
	}, func(ev models.RunEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})
	require.NoError(t, err)

	assert.False(t, res.Aborted)
	require.Len(t, res.Sets, 2)
	p := res.Portfolio
	assert.InDelta(t, 9.2, p.Positions["AAPL"].CombinedWeight, 1e-9)
	assert.InDelta(t, 3.0, p.Positions["MSFT"].CombinedWeight, 1e-9)
	assert.InDelta(t, 4.8, p.Positions["GOOG"].CombinedWeight, 1e-9)
	require.NotNil(t, p.Totals.ForwardPE)
	assert.InDelta(t, 20.0, *p.Totals.ForwardPE, 1e-9)

	for _, st := range res.Managers {
		assert.Equal(t, models.ManagerSucceeded, st.Status)
		assert.Equal(t, 3, st.Positions)
	}

	require.Equal(t, "run-1", res.SnapshotID)
	snap, err := store.GetSnapshot(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "3Q25", snap.Label)
	assert.Len(t, snap.Rows, 6)
	for _, r := range snap.Rows {
		if r.Ticker == "AAPL" {
			assert.InDelta(t, 9.2, r.CombinedWeight, 1e-9)
		}
	}

	require.NotEmpty(t, events)
	assert.Equal(t, models.EventRunStarted, events[0].Type)
	assert.Equal(t, models.EventRunFinished, events[len(events)-1].Type)
	done := 0
	for _, ev := range events {
		if ev.Type == models.EventManagerDone {
			done++
			assert.Equal(t, done, ev.Completed)
			assert.Equal(t, 2, ev.Total)
		}
	}
	assert.Equal(t, 2, done)
}

func TestRun_FailedManagerIsAbsent(t *testing.T) {
	f := scenario()
	f.errs = map[string]error{"M2": errors.New("edgar unavailable")}
	res, err := newTestService(f).Run(context.Background(), models.RunRequest{Managers: managers(), QuarterEnd: quarterEnd}, nil)
	require.NoError(t, err)

	require.Len(t, res.Sets, 1)
	assert.Equal(t, models.ManagerFailed, res.Managers[1].Status)
	assert.Contains(t, res.Managers[1].Error, "edgar unavailable")
	assert.NotContains(t, res.Portfolio.Positions, "GOOG")
	assert.InDelta(t, 6.0, res.Portfolio.Positions["AAPL"].CombinedWeight, 1e-9)
}

func TestRun_PanicFailsOnlyThatManager(t *testing.T) {
	f := scenario()
	f.panics = map[string]bool{"M1": true}
	res, err := newTestService(f).Run(context.Background(), models.RunRequest{Managers: managers(), QuarterEnd: quarterEnd}, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ManagerFailed, res.Managers[0].Status)
	assert.Contains(t, res.Managers[0].Error, "panic")
	assert.Equal(t, models.ManagerSucceeded, res.Managers[1].Status)
	require.Len(t, res.Sets, 1)
}

func TestRun_BoundedConcurrency(t *testing.T) {
	f := &fakeFilings{holdings: map[string][]models.RawHolding{}}
	var ms []models.ManagerInput
	for i := 0; i < 12; i++ {
		name := fmt.Sprintf("M%02d", i)
		ms = append(ms, models.ManagerInput{Name: name})
		f.holdings[name] = []models.RawHolding{raw(name, "AAPL", 1)}
	}
	f.block = make(chan struct{})
	go func() {
		time.Sleep(50 * time.Millisecond)
		close(f.block)
	}()

	res, err := newTestService(f, WithWorkers(3)).Run(context.Background(), models.RunRequest{Managers: ms, QuarterEnd: quarterEnd}, nil)
	require.NoError(t, err)
	assert.Len(t, res.Sets, 12)
	assert.LessOrEqual(t, f.peak.Load(), int32(3))
	assert.InDelta(t, 100.0, res.Portfolio.Positions["AAPL"].CombinedWeight, 1e-9)
}

func TestRun_CancellationReturnsPartialAndSkipsPersist(t *testing.T) {
	f := scenario()
	f.holdings["M3"] = []models.RawHolding{raw("M3", "NVDA", 1)}
	store := memory.NewStore()
	svc := newTestService(f, WithStore(store), WithWorkers(1))

	ctx, cancel := context.WithCancel(context.Background())
	res, err := svc.Run(ctx, models.RunRequest{
		Managers: []models.ManagerInput{{Name: "M1"}, {Name: "M2"}, {Name: "M3"}}, QuarterEnd: quarterEnd, Persist: true,
	}, func(ev models.RunEvent) {
		if ev.Type == models.EventManagerDone && ev.Manager.Manager == "M1" {
			cancel()
		}
	})
	require.NoError(t, err)

	assert.True(t, res.Aborted)
	assert.Empty(t, res.SnapshotID)
	require.Len(t, res.Sets, 1)
	assert.Equal(t, "M1", res.Sets[0].Manager)
	assert.Contains(t, res.Portfolio.Positions, "AAPL")
	assert.Equal(t, models.ManagerCancelled, res.Managers[1].Status)
	assert.Equal(t, models.ManagerCancelled, res.Managers[2].Status)

	list, err := store.ListSnapshots(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRun_AlreadyCancelled(t *testing.T) {
	f := scenario()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newTestService(f).Run(ctx, models.RunRequest{Managers: managers(), QuarterEnd: quarterEnd}, nil)
	require.NoError(t, err)
	assert.True(t, res.Aborted)
	assert.Empty(t, res.Sets)
	assert.Empty(t, res.Portfolio.Positions)
	assert.Equal(t, int32(0), f.calls.Load())
}

func TestRun_Validation(t *testing.T) {
	svc := newTestService(scenario())
	cases := []struct {
		name  string
		req   models.RunRequest
		field string
	}{
		{"no managers", models.RunRequest{}, "managers"},
		{"blank name", models.RunRequest{Managers: []models.ManagerInput{{Name: " "}}}, "managers.name"},
		{"duplicate", models.RunRequest{Managers: []models.ManagerInput{{Name: "A"}, {Name: "A"}}}, "managers.name"},
		{"weight range", models.RunRequest{Managers: []models.ManagerInput{{Name: "A", Weight: models.Float(120)}}}, "managers.weight"},
		{"negative top n", models.RunRequest{Managers: []models.ManagerInput{{Name: "A"}}, TopN: -1}, "top_n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Run(context.Background(), tc.req, nil)
			var cfgErr *common.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}
}

type failingStore struct{ *memory.Store }

func (failingStore) SaveSnapshot(context.Context, *models.Snapshot) error {
	return errors.New("disk full")
}

func TestRun_SaveFailureStillReturnsResult(t *testing.T) {
	svc := newTestService(scenario(), WithStore(failingStore{memory.NewStore()}))
	res, err := svc.Run(context.Background(), models.RunRequest{Managers: managers(), QuarterEnd: quarterEnd, Persist: true}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.NotNil(t, res)
	assert.Len(t, res.Sets, 2)
	assert.Empty(t, res.SnapshotID)
}
