package common

import (
	"fmt"
	"time"
)

// QuarterStart returns the first day of the calendar quarter containing t.
func QuarterStart(t time.Time) time.Time {
	month := ((int(t.Month())-1)/3)*3 + 1
	return time.Date(t.Year(), time.Month(month), 1, 0, 0, 0, 0, t.Location())
}

// QuarterEnd returns the last day of the calendar quarter containing t.
func QuarterEnd(t time.Time) time.Time {
	return QuarterStart(t).AddDate(0, 3, -1)
}

// LastQuarterEnd returns the most recent quarter end strictly before the
// quarter containing now.
func LastQuarterEnd(now time.Time) time.Time {
	return QuarterStart(now).AddDate(0, 0, -1)
}

// PriorQuarterEnd returns the quarter end immediately preceding the quarter
// that ends on quarterEnd.
func PriorQuarterEnd(quarterEnd time.Time) time.Time {
	return QuarterStart(quarterEnd).AddDate(0, 0, -1)
}

// QuarterLabel formats a date as its quarter label, e.g. 2025-09-30 -> "3Q25".
func QuarterLabel(t time.Time) string {
	q := (int(t.Month())-1)/3 + 1
	return fmt.Sprintf("%dQ%02d", q, t.Year()%100)
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DateOnly truncates t to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
