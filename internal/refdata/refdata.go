// Package refdata exposes the embedded static reference tables: CUSIP to
// ticker overrides, ticker aliases, classification fallbacks and sector and
// country name normalisation.
package refdata

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/bobmcallan/holdwise/internal/models"
)

//go:embed data/securities.yaml
var securitiesYAML []byte

// Classification is a fallback sector, industry and country for a ticker.
type Classification struct {
	Sector   string `yaml:"sector"`
	Industry string `yaml:"industry"`
	Country  string `yaml:"country"`
}

// Tables holds the parsed reference data. Tickers are stored normalised.
type Tables struct {
	CUSIPs       map[string]string         `yaml:"cusips"`
	Aliases      map[string]string         `yaml:"aliases"`
	Sectors      map[string]Classification `yaml:"sectors"`
	SectorNames  map[string]string         `yaml:"sector_names"`
	CountryNames map[string]string         `yaml:"country_names"`
}

var (
	loadOnce sync.Once
	loaded   *Tables
	loadErr  error
)

// Parse decodes reference tables from YAML and normalises every ticker.
func Parse(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse reference data: %w", err)
	}

	cusips := make(map[string]string, len(t.CUSIPs))
	for cusip, ticker := range t.CUSIPs {
		norm := models.NormalizeTicker(ticker)
		if norm == "" {
			return nil, fmt.Errorf("invalid ticker %q for CUSIP %s", ticker, cusip)
		}
		cusips[cusip] = norm
	}
	t.CUSIPs = cusips

	aliases := make(map[string]string, len(t.Aliases))
	for from, to := range t.Aliases {
		f, tt := models.NormalizeTicker(from), models.NormalizeTicker(to)
		if f == "" || tt == "" {
			return nil, fmt.Errorf("invalid alias %q -> %q", from, to)
		}
		aliases[f] = tt
	}
	t.Aliases = aliases

	sectors := make(map[string]Classification, len(t.Sectors))
	for ticker, c := range t.Sectors {
		sectors[models.NormalizeTicker(ticker)] = c
	}
	t.Sectors = sectors

	return &t, nil
}

// Default returns the embedded tables, parsed once.
func Default() *Tables {
	loadOnce.Do(func() {
		loaded, loadErr = Parse(securitiesYAML)
	})
	if loadErr != nil {
		// the embedded file is validated by tests
		panic(loadErr)
	}
	return loaded
}

// TickerForCUSIP returns the static ticker for a CUSIP.
func (t *Tables) TickerForCUSIP(cusip string) (string, bool) {
	ticker, ok := t.CUSIPs[cusip]
	return ticker, ok
}

// Alias returns the successor for a retired ticker, or the ticker itself.
func (t *Tables) Alias(ticker string) (string, bool) {
	if to, ok := t.Aliases[ticker]; ok {
		return to, true
	}
	return ticker, false
}

// Classification returns the fallback classification for a ticker.
func (t *Tables) Classification(ticker string) (Classification, bool) {
	c, ok := t.Sectors[ticker]
	return c, ok
}

// NormalizeSector maps a provider sector name to its GICS name.
func (t *Tables) NormalizeSector(name string) string {
	if name == "" {
		return ""
	}
	if gics, ok := t.SectorNames[name]; ok {
		return gics
	}
	return name
}

// NormalizeCountry maps a provider country name to the benchmark name.
func (t *Tables) NormalizeCountry(name string) string {
	if name == "" {
		return ""
	}
	if c, ok := t.CountryNames[name]; ok {
		return c
	}
	return name
}
