package aggregate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/holdwise/internal/models"
)

func withAttrs(ticker string, pct float64, attrs models.Attributes) hold {
	return hold{ticker: ticker, name: ticker + " INC", pct: pct, attrs: attrs}
}

func TestTotals_HarmonicPEExcludesNonPositive(t *testing.T) {
	w := 100.0 / 3
	set := newSet("M1", models.Float(100),
		withAttrs("AAA", w, models.Attributes{ForwardPE: models.Float(10)}),
		withAttrs("BBB", w, models.Attributes{ForwardPE: models.Float(20)}),
		withAttrs("CCC", w, models.Attributes{ForwardPE: models.Float(-5)}),
	)

	p := Aggregate([]*models.ManagerHoldingsSet{set}, nil)
	require.NotNil(t, p.Totals.ForwardPE)
	assert.InDelta(t, 13.33, *p.Totals.ForwardPE, 0.005)
	assert.InDelta(t, 2/(1.0/10+1.0/20), *p.Totals.ForwardPE, 1e-9)
}

func TestTotals_HarmonicPENoneValid(t *testing.T) {
	set := newSet("M1", models.Float(100),
		withAttrs("AAA", 50, models.Attributes{ForwardPE: models.Float(-3)}),
		withAttrs("BBB", 50, models.Attributes{}),
	)
	p := Aggregate([]*models.ManagerHoldingsSet{set}, nil)
	assert.Nil(t, p.Totals.ForwardPE)
}

func TestWinsorize(t *testing.T) {
	assert.Equal(t, 50.0, Winsorize(80))
	assert.Equal(t, -50.0, Winsorize(-120))
	assert.Equal(t, 12.5, Winsorize(12.5))
}

func TestTotals_EPSGrowthWinsorizedBeforeWeighting(t *testing.T) {
	set := newSet("M1", models.Float(100),
		withAttrs("AAA", 50, models.Attributes{ForwardEPSGrowthPct: models.Float(80)}),
		withAttrs("BBB", 50, models.Attributes{ForwardEPSGrowthPct: models.Float(10)}),
	)

	p := Aggregate([]*models.ManagerHoldingsSet{set}, nil)
	require.NotNil(t, p.Totals.EPSGrowthPct)
	assert.InDelta(t, 30.0, *p.Totals.EPSGrowthPct, 1e-9)
}

func TestTotals_NullsExcludedAndRenormalised(t *testing.T) {
	set := newSet("M1", models.Float(100),
		withAttrs("AAA", 50, models.Attributes{QTDReturnPct: models.Float(10), DividendYieldPct: models.Float(2)}),
		withAttrs("BBB", 30, models.Attributes{}),
		withAttrs("CCC", 20, models.Attributes{QTDReturnPct: models.Float(20)}),
	)

	p := Aggregate([]*models.ManagerHoldingsSet{set}, nil)
	require.NotNil(t, p.Totals.QTDReturnPct)
	assert.InDelta(t, (50*10.0+20*20.0)/70, *p.Totals.QTDReturnPct, 1e-9)
	require.NotNil(t, p.Totals.DividendYieldPct)
	assert.InDelta(t, 2.0, *p.Totals.DividendYieldPct, 1e-9)
	assert.Nil(t, p.Totals.FilingQuarterReturnPct)
}

func TestTotals_ExpectedReturn(t *testing.T) {
	set := newSet("M1", models.Float(100),
		withAttrs("AAA", 50, models.Attributes{ForwardEPSGrowthPct: models.Float(12), DividendYieldPct: models.Float(1)}),
		withAttrs("BBB", 50, models.Attributes{ForwardEPSGrowthPct: models.Float(8), DividendYieldPct: models.Float(3)}),
	)

	p := Aggregate([]*models.ManagerHoldingsSet{set}, nil)
	require.NotNil(t, p.Totals.ExpectedReturnPct)
	assert.InDelta(t, 10.0+2.0, *p.Totals.ExpectedReturnPct, 1e-9)

	noYield := newSet("M1", models.Float(100),
		withAttrs("AAA", 100, models.Attributes{ForwardEPSGrowthPct: models.Float(12)}))
	assert.Nil(t, Aggregate([]*models.ManagerHoldingsSet{noYield}, nil).Totals.ExpectedReturnPct)
}

func TestTotals_IgnoreDisplayTruncation(t *testing.T) {
	var holds []hold
	total := 0.0
	weighted := 0.0
	for i := 0; i < 50; i++ {
		pct := float64(50-i) / 12.75 // sums to 100
		qtd := float64(i%7) - 2
		holds = append(holds, withAttrs(fmt.Sprintf("T%02d", i), pct, models.Attributes{QTDReturnPct: models.Float(qtd)}))
		total += pct
		weighted += pct * qtd
	}
	p := Aggregate([]*models.ManagerHoldingsSet{newSet("M1", models.Float(100), holds...)}, nil)

	require.Len(t, p.Top(10), 10)
	require.Len(t, p.Top(50), 50)
	require.NotNil(t, p.Totals.QTDReturnPct)
	assert.InDelta(t, weighted/total, *p.Totals.QTDReturnPct, 1e-9)
	assert.Equal(t, p.Totals, Totals(p), "totals do not depend on the display view")
	assert.Equal(t, 50, p.Totals.Positions)
}

func TestTotals_MonthlyReturnsByLabel(t *testing.T) {
	set := newSet("M1", models.Float(100),
		withAttrs("AAA", 75, models.Attributes{MonthlyReturns: []models.MonthlyReturn{
			{Label: "Oct 2025", ReturnPct: 4},
			{Label: "Nov 2025", ReturnPct: 2, Partial: true},
		}}),
		withAttrs("BBB", 25, models.Attributes{MonthlyReturns: []models.MonthlyReturn{
			{Label: "Oct 2025", ReturnPct: 8},
		}}),
	)

	months := Aggregate([]*models.ManagerHoldingsSet{set}, nil).Totals.MonthlyReturns
	require.Len(t, months, 2)
	assert.Equal(t, "Oct 2025", months[0].Label)
	assert.InDelta(t, 5.0, months[0].ReturnPct, 1e-9)
	assert.False(t, months[0].Partial)
	assert.Equal(t, "Nov 2025", months[1].Label)
	assert.InDelta(t, 2.0, months[1].ReturnPct, 1e-9)
	assert.True(t, months[1].Partial)
}

func TestTotals_EPSBeatRate(t *testing.T) {
	set := newSet("M1", models.Float(100),
		withAttrs("AAA", 25, models.Attributes{EPSBeatPct: models.Float(5)}),
		withAttrs("BBB", 25, models.Attributes{EPSBeatPct: models.Float(-2)}),
		withAttrs("CCC", 25, models.Attributes{EPSBeatPct: models.Float(1)}),
		withAttrs("DDD", 25, models.Attributes{}),
	)
	rate := Aggregate([]*models.ManagerHoldingsSet{set}, nil).Totals.EPSBeatRatePct
	require.NotNil(t, rate)
	assert.InDelta(t, 200.0/3, *rate, 1e-9)
}

func TestManagerTotals(t *testing.T) {
	set := newSet("M1", models.Float(40),
		withAttrs("AAA", 60, models.Attributes{FilingQuarterReturnPct: models.Float(10)}),
		withAttrs("BBB", 40, models.Attributes{FilingQuarterReturnPct: models.Float(-5)}),
	)
	tot := ManagerTotals(set)
	require.NotNil(t, tot.FilingQuarterReturnPct)
	assert.InDelta(t, 4.0, *tot.FilingQuarterReturnPct, 1e-9)
	assert.Equal(t, 2, tot.Positions)
	assert.Equal(t, 100.0, tot.TotalWeight)
}
