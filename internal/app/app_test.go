package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/holdwise/internal/common"
	"github.com/bobmcallan/holdwise/internal/filings"
	"github.com/bobmcallan/holdwise/internal/models"
)

// newTestApp builds an App against a stub upstream that answers 404 to
// everything, so enrichment degrades to empty attributes.
func newTestApp(t *testing.T) *App {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	cfg := common.NewDefaultConfig()
	cfg.Storage.Backend = "memory"
	cfg.Cache.Backend = "memory"
	cfg.Run.FilingsDir = t.TempDir()
	cfg.Run.QuarterEnd = "2025-09-30"
	cfg.Resolver.Attempts = 1
	cfg.Resolver.RetryDelay = "0s"
	cfg.Clients.OpenFIGI.BaseURL = srv.URL
	cfg.Clients.SEC.TickersURL = srv.URL + "/company_tickers.json"
	cfg.Clients.EODHD.BaseURL = srv.URL
	cfg.Clients.EODHD.APIKey = "test"
	cfg.Managers = []common.ManagerConfig{
		{Name: "M1", Weight: models.Float(60)},
		{Name: "M2", Weight: models.Float(40)},
	}

	a, err := New(context.Background(), cfg, common.NewSilentLogger())
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func seedFilings(t *testing.T, a *App) {
	t.Helper()
	docs := []*filings.Document{
		{Manager: "M1", PeriodOfReport: "2025-09-30", FiledAt: "2025-11-14", Holdings: []filings.Row{
			{Name: "APPLE INC", Ticker: "AAPL", Value: 10},
			{Name: "MICROSOFT CORP", Ticker: "MSFT", Value: 5},
			{Name: "PRIVATE HOLDINGS LP", Value: 85},
		}},
		{Manager: "M2", PeriodOfReport: "2025-09-30", FiledAt: "2025-11-13", Holdings: []filings.Row{
			{Name: "APPLE INC", Ticker: "AAPL", Value: 8},
			{Name: "ALPHABET INC", Ticker: "GOOG", Value: 12},
			{Name: "OTHER CO", Ticker: "OTHR", Value: 80},
		}},
	}
	for _, d := range docs {
		_, err := a.Filings.Save(d)
		require.NoError(t, err)
	}
}

func TestApp_RunPersistAndCompare(t *testing.T) {
	a := newTestApp(t)
	seedFilings(t, a)
	ctx := context.Background()

	res, err := a.Runner.Run(ctx, a.RunRequest(RunOptions{Persist: true, Label: "3Q25"}), nil)
	require.NoError(t, err)
	require.False(t, res.Aborted)
	require.Len(t, res.Sets, 2)
	assert.InDelta(t, 9.2, res.Portfolio.Positions["AAPL"].CombinedWeight, 1e-9)
	assert.InDelta(t, 4.8, res.Portfolio.Positions["GOOG"].CombinedWeight, 1e-9)
	assert.Equal(t, 1, res.Managers[0].Unresolved)
	require.NotEmpty(t, res.SnapshotID)

	list, err := a.Store.ListSnapshots(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "3Q25", list[0].Label)

	cmp, err := a.Differ.Compare(ctx, res.SnapshotID, res.SnapshotID)
	require.NoError(t, err)
	assert.Empty(t, cmp.Portfolio.Added)
	assert.Empty(t, cmp.Portfolio.Removed)
	assert.Empty(t, cmp.Portfolio.Changed)
}

func TestApp_RunRequestDefaults(t *testing.T) {
	a := newTestApp(t)
	req := a.RunRequest(RunOptions{})
	assert.Equal(t, "2025-09-30", req.QuarterEnd.Format("2006-01-02"))
	assert.Equal(t, a.Config.Run.TopN, req.TopN)
	require.Len(t, req.Managers, 2)
	assert.Equal(t, 60.0, *req.Managers[0].Weight)
	assert.False(t, req.Persist)

	override := a.RunRequest(RunOptions{TopN: 5, Label: "x"})
	assert.Equal(t, 5, override.TopN)
	assert.Equal(t, "x", override.Label)
}

func TestResolveConfigPath(t *testing.T) {
	assert.Equal(t, "explicit.toml", ResolveConfigPath("explicit.toml"))
	t.Setenv("HOLDWISE_CONFIG", "/etc/holdwise.toml")
	assert.Equal(t, "/etc/holdwise.toml", ResolveConfigPath(""))
}
