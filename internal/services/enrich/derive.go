package enrich

import (
	"math"
	"sort"
	"time"

	"github.com/bobmcallan/holdwise/internal/common"
	"github.com/bobmcallan/holdwise/internal/models"
)

const (
	// priceWindowDays bounds the search for a close around a reference date
	priceWindowDays = 5

	// earnings reported within this window of the quarter end belong to it
	earningsLookback  = 30 * 24 * time.Hour
	earningsLookahead = 90 * 24 * time.Hour

	// autoFractionCeiling: with YieldAuto, smaller values are fractions
	autoFractionCeiling = 0.2
)

const dayLayout = "2006-01-02"

// priceSeries is a day-indexed view of daily bars, oldest first.
type priceSeries struct {
	bars  []models.EODBar
	byDay map[string]models.EODBar
}

func newPriceSeries(bars []models.EODBar) *priceSeries {
	ps := &priceSeries{byDay: make(map[string]models.EODBar, len(bars))}
	for _, b := range bars {
		if b.Close <= 0 {
			continue
		}
		b.Date = dayOf(b.Date)
		ps.bars = append(ps.bars, b)
		ps.byDay[b.Date.Format(dayLayout)] = b
	}
	sort.SliceStable(ps.bars, func(i, j int) bool {
		return ps.bars[i].Date.Before(ps.bars[j].Date)
	})
	return ps
}

// dayOf strips the clock from t, keeping its calendar date in UTC.
func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// returnPrice prefers the adjusted close so returns include distributions.
func returnPrice(b models.EODBar) float64 {
	if b.AdjClose > 0 {
		return b.AdjClose
	}
	return b.Close
}

// near returns the bar on date or the nearest one within priceWindowDays,
// preferring the earlier day at equal distance.
func (p *priceSeries) near(date time.Time) (models.EODBar, bool) {
	date = dayOf(date)
	if b, ok := p.byDay[date.Format(dayLayout)]; ok {
		return b, true
	}
	for d := 1; d <= priceWindowDays; d++ {
		if b, ok := p.byDay[date.AddDate(0, 0, -d).Format(dayLayout)]; ok {
			return b, true
		}
		if b, ok := p.byDay[date.AddDate(0, 0, d).Format(dayLayout)]; ok {
			return b, true
		}
	}
	return models.EODBar{}, false
}

// between returns bars with after < date <= through.
func (p *priceSeries) between(after, through time.Time) []models.EODBar {
	var out []models.EODBar
	for _, b := range p.bars {
		if b.Date.After(after) && !b.Date.After(through) {
			out = append(out, b)
		}
	}
	return out
}

// lastOnOrBefore returns the latest bar dated on or before date.
func (p *priceSeries) lastOnOrBefore(date time.Time) (models.EODBar, bool) {
	for i := len(p.bars) - 1; i >= 0; i-- {
		if !p.bars[i].Date.After(date) {
			return p.bars[i], true
		}
	}
	return models.EODBar{}, false
}

// pctChange returns (to/from - 1) * 100, or nil when from is not positive.
func pctChange(from, to float64) *float64 {
	if from <= 0 || math.IsNaN(to) || math.IsInf(to, 0) {
		return nil
	}
	return models.Float((to/from - 1) * 100)
}

// quarterReturn is the return from the close nearest the previous quarter
// end to the close nearest quarterEnd.
func quarterReturn(p *priceSeries, quarterEnd time.Time) (endPrice, ret *float64) {
	end, ok := p.near(quarterEnd)
	if !ok {
		return nil, nil
	}
	endPrice = models.Float(end.Close)
	start, ok := p.near(common.PriorQuarterEnd(quarterEnd))
	if !ok || !start.Date.Before(end.Date) {
		return endPrice, nil
	}
	return endPrice, pctChange(returnPrice(start), returnPrice(end))
}

// qtdApplies reports whether a quarter-to-date return can be measured:
// today must be strictly after the quarter end and at least two closes
// must exist after it.
func qtdApplies(post []models.EODBar, quarterEnd, today time.Time) bool {
	return dayOf(today).After(dayOf(quarterEnd)) && len(post) >= 2
}

// qtdReturn measures from the first close after the quarter end to the
// latest close on or before today.
func qtdReturn(p *priceSeries, quarterEnd, today time.Time) (start, ret *float64) {
	post := p.between(dayOf(quarterEnd), dayOf(today))
	if !qtdApplies(post, quarterEnd, today) {
		return nil, nil
	}
	first, last := post[0], post[len(post)-1]
	return models.Float(first.Close), pctChange(returnPrice(first), returnPrice(last))
}

// monthlyReturns covers each started month of the quarter after
// quarterEnd. Each month runs from the last close before it (or the
// first post-quarter close) to its last close; the current month is
// marked Partial. Months without a close are omitted.
func monthlyReturns(p *priceSeries, quarterEnd, today time.Time) []models.MonthlyReturn {
	qe, now := dayOf(quarterEnd), dayOf(today)
	post := p.between(qe, now)
	if !qtdApplies(post, qe, now) {
		return nil
	}

	first := qe.AddDate(0, 0, 1)
	first = time.Date(first.Year(), first.Month(), 1, 0, 0, 0, 0, time.UTC)

	var out []models.MonthlyReturn
	for i := 0; i < 3; i++ {
		monthStart := first.AddDate(0, i, 0)
		if monthStart.After(now) {
			break
		}
		monthEnd := monthStart.AddDate(0, 1, -1)

		base := post[0]
		if b, ok := p.lastOnOrBefore(monthStart.AddDate(0, 0, -1)); ok && b.Date.After(qe) {
			base = b
		}
		end, ok := p.lastOnOrBefore(minDate(monthEnd, now))
		if !ok || !end.Date.After(base.Date) || end.Date.Before(monthStart) {
			continue
		}
		ret := pctChange(returnPrice(base), returnPrice(end))
		if ret == nil {
			continue
		}
		out = append(out, models.MonthlyReturn{
			Label:     monthStart.Format("Jan 2006"),
			ReturnPct: *ret,
			Partial:   !now.After(monthEnd),
		})
	}
	return out
}

func minDate(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// NormalizeDividendYield converts a provider yield to percent units.
func NormalizeDividendYield(raw *float64, convention models.YieldConvention) *float64 {
	if raw == nil || *raw < 0 || math.IsNaN(*raw) {
		return nil
	}
	v := *raw
	switch convention {
	case models.YieldFraction:
		v *= 100
	case models.YieldPercent:
	default:
		if v < autoFractionCeiling {
			v *= 100
		}
	}
	return models.Float(v)
}

// EPSBeatPct returns (reported - estimate) / |estimate| * 100, or nil when
// either is missing or the estimate is zero.
func EPSBeatPct(reported, estimate *float64) *float64 {
	if reported == nil || estimate == nil || *estimate == 0 {
		return nil
	}
	return models.Float((*reported - *estimate) / math.Abs(*estimate) * 100)
}

// ForwardEPSGrowth prefers the provider's consensus growth and otherwise
// derives it from forward and trailing EPS.
func ForwardEPSGrowth(f *models.Fundamentals) *float64 {
	if f == nil {
		return nil
	}
	if f.EPSGrowthPct != nil {
		return models.Float(*f.EPSGrowthPct)
	}
	if f.ForwardEPS == nil || f.TrailingEPS == nil || *f.TrailingEPS == 0 {
		return nil
	}
	return models.Float((*f.ForwardEPS - *f.TrailingEPS) / math.Abs(*f.TrailingEPS) * 100)
}

// matchEarnings picks the reported quarter whose report date is closest to
// the quarter end, within the lookback/lookahead window.
func matchEarnings(events []models.EarningsEvent, quarterEnd time.Time) (models.EarningsEvent, bool) {
	qe := dayOf(quarterEnd)
	var (
		best     models.EarningsEvent
		bestDist time.Duration = -1
	)
	for _, e := range events {
		if e.Actual == nil {
			continue
		}
		offset := dayOf(e.ReportDate).Sub(qe)
		if offset < -earningsLookback || offset > earningsLookahead {
			continue
		}
		dist := offset
		if dist < 0 {
			dist = -dist
		}
		if bestDist < 0 || dist < bestDist {
			best, bestDist = e, dist
		}
	}
	return best, bestDist >= 0
}
