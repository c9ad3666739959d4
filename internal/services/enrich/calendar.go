package enrich

import (
	"time"

	"github.com/scmhub/calendar"
)

// Calendar maps instants onto exchange-local trading dates.
type Calendar struct {
	cal *calendar.Calendar
	loc *time.Location
}

// NewCalendar loads the exchange calendar for a MIC, falling back to NYSE.
// Without calendar data it degrades to a Mon-Fri week in New York time.
func NewCalendar(mic string) *Calendar {
	cal := calendar.GetCalendar(mic)
	if cal == nil {
		cal = calendar.GetCalendar("xnys")
	}
	if cal == nil {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.UTC
		}
		return &Calendar{loc: loc}
	}
	return &Calendar{cal: cal, loc: cal.Loc}
}

// Location returns the exchange timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// LocalDate returns the exchange-local calendar date of t as a UTC
// midnight value, comparable with quarter ends and bar dates.
func (c *Calendar) LocalDate(t time.Time) time.Time {
	y, m, d := t.In(c.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsTradingDay reports whether the exchange holds a session on date.
func (c *Calendar) IsTradingDay(date time.Time) bool {
	y, m, d := date.Date()
	local := time.Date(y, m, d, 12, 0, 0, 0, c.loc)
	if c.cal == nil {
		wd := local.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return c.cal.IsBusinessDay(local)
}

// LastSessionOnOrBefore walks back from date to the most recent trading day.
func (c *Calendar) LastSessionOnOrBefore(date time.Time) time.Time {
	d := date
	for i := 0; i < 10; i++ {
		if c.IsTradingDay(d) {
			return d
		}
		d = d.AddDate(0, 0, -1)
	}
	return date
}
