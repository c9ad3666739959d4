package enrich

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/holdwise/internal/models"
)

func day(s string) time.Time {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func bar(date string, close float64) models.EODBar {
	return models.EODBar{Date: day(date), Close: close, AdjClose: close}
}

func TestPriceSeries_NearPrefersClosestThenEarlier(t *testing.T) {
	ps := newPriceSeries([]models.EODBar{
		bar("2025-09-26", 98),
		bar("2025-09-29", 101),
		bar("2025-10-06", 110),
	})

	b, ok := ps.near(day("2025-09-28"))
	require.True(t, ok)
	assert.Equal(t, 101.0, b.Close)

	b, ok = ps.near(day("2025-09-27"))
	require.True(t, ok)
	assert.Equal(t, 98.0, b.Close, "equal distance picks the earlier close")

	_, ok = ps.near(day("2025-10-20"))
	assert.False(t, ok, "nothing within five days")
}

func TestQuarterReturn(t *testing.T) {
	ps := newPriceSeries([]models.EODBar{
		bar("2025-06-30", 100),
		bar("2025-08-15", 108),
		bar("2025-09-30", 120),
	})

	end, ret := quarterReturn(ps, day("2025-09-30"))
	require.NotNil(t, end)
	require.NotNil(t, ret)
	assert.Equal(t, 120.0, *end)
	assert.InDelta(t, 20.0, *ret, 1e-9)
}

func TestQTDReturn_Guard(t *testing.T) {
	qe := day("2025-09-30")
	ps := newPriceSeries([]models.EODBar{
		bar("2025-09-30", 95),
		bar("2025-10-01", 100),
		bar("2025-10-02", 110),
	})

	tests := []struct {
		name  string
		today string
		want  *float64
	}{
		{"on quarter end", "2025-09-30", nil},
		{"one close after", "2025-10-01", nil},
		{"two closes after", "2025-10-02", models.Float(10)},
		{"later date uses latest close", "2025-10-09", models.Float(10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, ret := qtdReturn(ps, qe, day(tt.today))
			if tt.want == nil {
				assert.Nil(t, ret)
				assert.Nil(t, start)
				return
			}
			require.NotNil(t, ret)
			assert.InDelta(t, *tt.want, *ret, 1e-9)
			assert.Equal(t, 100.0, *start, "measured from the first close after quarter end")
		})
	}
}

func TestMonthlyReturns(t *testing.T) {
	ps := newPriceSeries([]models.EODBar{
		bar("2025-09-30", 90),
		bar("2025-10-01", 100),
		bar("2025-10-15", 105),
		bar("2025-10-31", 110),
		bar("2025-11-03", 115),
		bar("2025-11-12", 121),
	})

	months := monthlyReturns(ps, day("2025-09-30"), day("2025-11-12"))
	require.Len(t, months, 2)

	assert.Equal(t, "Oct 2025", months[0].Label)
	assert.InDelta(t, 10.0, months[0].ReturnPct, 1e-9)
	assert.False(t, months[0].Partial)

	assert.Equal(t, "Nov 2025", months[1].Label)
	assert.InDelta(t, 10.0, months[1].ReturnPct, 1e-9)
	assert.True(t, months[1].Partial)
}

func TestMonthlyReturns_NoneBeforeQTD(t *testing.T) {
	ps := newPriceSeries([]models.EODBar{bar("2025-10-01", 100)})
	assert.Empty(t, monthlyReturns(ps, day("2025-09-30"), day("2025-10-01")))
}

func TestNormalizeDividendYield(t *testing.T) {
	tests := []struct {
		name       string
		raw        *float64
		convention models.YieldConvention
		want       *float64
	}{
		{"fraction", models.Float(0.0052), models.YieldFraction, models.Float(0.52)},
		{"percent", models.Float(0.52), models.YieldPercent, models.Float(0.52)},
		{"auto fraction", models.Float(0.031), models.YieldAuto, models.Float(3.1)},
		{"auto percent", models.Float(2.5), models.YieldAuto, models.Float(2.5)},
		{"missing", nil, models.YieldFraction, nil},
		{"negative", models.Float(-1), models.YieldPercent, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeDividendYield(tt.raw, tt.convention)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestEPSBeatPct(t *testing.T) {
	got := EPSBeatPct(models.Float(1.10), models.Float(1.00))
	require.NotNil(t, got)
	assert.InDelta(t, 10.0, *got, 1e-9)

	// a smaller loss than expected is a beat
	got = EPSBeatPct(models.Float(-0.5), models.Float(-1.0))
	require.NotNil(t, got)
	assert.InDelta(t, 50.0, *got, 1e-9)

	assert.Nil(t, EPSBeatPct(models.Float(1), models.Float(0)))
	assert.Nil(t, EPSBeatPct(nil, models.Float(1)))
	assert.Nil(t, EPSBeatPct(models.Float(1), nil))
}

func TestForwardEPSGrowth(t *testing.T) {
	explicit := &models.Fundamentals{EPSGrowthPct: models.Float(12), ForwardEPS: models.Float(5), TrailingEPS: models.Float(4)}
	got := ForwardEPSGrowth(explicit)
	require.NotNil(t, got)
	assert.Equal(t, 12.0, *got)

	derived := &models.Fundamentals{ForwardEPS: models.Float(5), TrailingEPS: models.Float(4)}
	got = ForwardEPSGrowth(derived)
	require.NotNil(t, got)
	assert.InDelta(t, 25.0, *got, 1e-9)

	assert.Nil(t, ForwardEPSGrowth(&models.Fundamentals{ForwardEPS: models.Float(5), TrailingEPS: models.Float(0)}))
	assert.Nil(t, ForwardEPSGrowth(nil))
}

func TestMatchEarnings(t *testing.T) {
	qe := day("2025-09-30")
	events := []models.EarningsEvent{
		{ReportDate: qe.AddDate(0, 0, -40), Actual: models.Float(1), Estimate: models.Float(1)},
		{ReportDate: qe.AddDate(0, 0, 20)},
		{ReportDate: qe.AddDate(0, 0, 30), Actual: models.Float(2), Estimate: models.Float(1.8)},
		{ReportDate: qe.AddDate(0, 0, 95), Actual: models.Float(3), Estimate: models.Float(3)},
	}

	e, ok := matchEarnings(events, qe)
	require.True(t, ok)
	assert.Equal(t, 2.0, *e.Actual)

	_, ok = matchEarnings(events[:1], qe)
	assert.False(t, ok)
}
