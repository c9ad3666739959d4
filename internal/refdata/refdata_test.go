package refdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_EmbeddedTablesParse(t *testing.T) {
	tables, err := Parse(securitiesYAML)
	require.NoError(t, err)

	assert.NotEmpty(t, tables.CUSIPs)
	assert.NotEmpty(t, tables.Aliases)

	ticker, ok := tables.TickerForCUSIP("037833100")
	assert.True(t, ok)
	assert.Equal(t, "AAPL", ticker)

	ticker, ok = tables.TickerForCUSIP("084670702")
	assert.True(t, ok)
	assert.Equal(t, "BRK-B", ticker, "share class separators are normalised")
}

func TestAlias(t *testing.T) {
	tables := Default()

	to, ok := tables.Alias("FB")
	assert.True(t, ok)
	assert.Equal(t, "META", to)

	to, ok = tables.Alias("AAPL")
	assert.False(t, ok)
	assert.Equal(t, "AAPL", to)
}

func TestNormalizeSectorAndCountry(t *testing.T) {
	tables := Default()
	assert.Equal(t, "Information Technology", tables.NormalizeSector("Technology"))
	assert.Equal(t, "Energy", tables.NormalizeSector("Energy"))
	assert.Equal(t, "", tables.NormalizeSector(""))
	assert.Equal(t, "United States", tables.NormalizeCountry("USA"))
	assert.Equal(t, "Korea (South)", tables.NormalizeCountry("South Korea"))
	assert.Equal(t, "Japan", tables.NormalizeCountry("Japan"))
}

func TestParse_RejectsInvalidTicker(t *testing.T) {
	_, err := Parse([]byte("cusips:\n  \"123456789\": \"N/A\"\n"))
	assert.Error(t, err)
}

func TestClassificationFallback(t *testing.T) {
	c, ok := Default().Classification("BRK-B")
	require.True(t, ok)
	assert.Equal(t, "Financial Services", c.Sector)
}
