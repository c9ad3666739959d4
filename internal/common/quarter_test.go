package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestQuarterBoundaries(t *testing.T) {
	tests := []struct {
		in         time.Time
		start, end time.Time
		label      string
	}{
		{date(2025, 2, 14), date(2025, 1, 1), date(2025, 3, 31), "1Q25"},
		{date(2025, 6, 30), date(2025, 4, 1), date(2025, 6, 30), "2Q25"},
		{date(2025, 9, 1), date(2025, 7, 1), date(2025, 9, 30), "3Q25"},
		{date(2024, 12, 31), date(2024, 10, 1), date(2024, 12, 31), "4Q24"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.start, QuarterStart(tt.in))
		assert.Equal(t, tt.end, QuarterEnd(tt.in))
		assert.Equal(t, tt.label, QuarterLabel(tt.in))
	}
}

func TestLastQuarterEnd(t *testing.T) {
	assert.Equal(t, date(2025, 9, 30), LastQuarterEnd(date(2025, 10, 18)))
	assert.Equal(t, date(2024, 12, 31), LastQuarterEnd(date(2025, 1, 1)))
	assert.Equal(t, date(2025, 6, 30), PriorQuarterEnd(date(2025, 9, 30)))
	assert.Equal(t, date(2024, 12, 31), PriorQuarterEnd(date(2025, 3, 31)))
}

func TestSameDay(t *testing.T) {
	a := time.Date(2025, 9, 30, 1, 0, 0, 0, time.UTC)
	b := time.Date(2025, 9, 30, 23, 0, 0, 0, time.UTC)
	assert.True(t, SameDay(a, b))
	assert.False(t, SameDay(a, b.Add(2*time.Hour)))
}
