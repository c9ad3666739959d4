package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bobmcallan/holdwise/internal/models"
)

func testIndex() *NameIndex {
	return NewNameIndex([]models.CompanyTicker{
		{CIK: 320193, Ticker: "AAPL", Title: "Apple Inc."},
		{CIK: 789019, Ticker: "MSFT", Title: "MICROSOFT CORP"},
		{CIK: 1652044, Ticker: "GOOGL", Title: "Alphabet Inc."},
		{CIK: 1652044, Ticker: "GOOG", Title: "Alphabet Inc."},
		{CIK: 1, Ticker: "WDG", Title: "Widget Holdings International"},
		{CIK: 2, Ticker: "AMB", Title: "American Bank Corp"},
		{CIK: 3, Ticker: "AMP", Title: "American Power Co"},
		{CIK: 4, Ticker: "HD", Title: "HOME DEPOT, INC."},
		{CIK: 5, Ticker: "BRK-B", Title: "BERKSHIRE HATHAWAY INC"},
	})
}

func TestMatchName(t *testing.T) {
	assert.Equal(t, "APPLE", matchName("Apple Inc."))
	assert.Equal(t, "MICROSOFT", matchName("MICROSOFT CORPORATION"))
	assert.Equal(t, "HOME DEPOT", matchName("The Home Depot, Inc."))
	assert.Equal(t, "WIDGET", matchName("Widget Holdings International Ltd"))
	assert.Equal(t, "ALPHABET", matchName("ALPHABET INC CL A"))
}

func TestNameIndex_Exact(t *testing.T) {
	idx := testIndex()

	ticker, ok := idx.Lookup("MICROSOFT CORPORATION")
	assert.True(t, ok)
	assert.Equal(t, "MSFT", ticker)

	ticker, ok = idx.Lookup("The Home Depot Inc")
	assert.True(t, ok)
	assert.Equal(t, "HD", ticker)

	ticker, ok = idx.Lookup("Alphabet Inc Cl C")
	assert.True(t, ok)
	assert.Equal(t, "GOOGL", ticker, "first listed ticker wins for a shared name")
}

func TestNameIndex_Prefix(t *testing.T) {
	idx := testIndex()

	// query extends an index entry
	ticker, ok := idx.Lookup("BERKSHIRE HATHAWAY INC DEL")
	assert.True(t, ok)
	assert.Equal(t, "BRK-B", ticker)

	// unique entry extends the query
	ticker, ok = idx.Lookup("Berkshire")
	assert.True(t, ok)
	assert.Equal(t, "BRK-B", ticker)

	// ambiguous prefix yields nothing
	_, ok = idx.Lookup("American")
	assert.False(t, ok)
}

func TestNameIndex_EmptyAndNil(t *testing.T) {
	var idx *NameIndex
	_, ok := idx.Lookup("Apple")
	assert.False(t, ok)
	assert.Equal(t, 0, idx.Len())

	_, ok = testIndex().Lookup("  ,. ")
	assert.False(t, ok)
}
