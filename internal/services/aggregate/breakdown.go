package aggregate

import (
	"sort"

	"github.com/bobmcallan/holdwise/internal/models"
)

// Unknown labels positions without a sector or country.
const Unknown = "Unknown"

// Overlap lists positions held by at least two managers, most widely held
// first, then by combined weight.
func Overlap(p *models.WeightedPortfolio) []models.OverlapEntry {
	var out []models.OverlapEntry
	for _, pos := range p.Positions {
		if len(pos.Contributions) < 2 {
			continue
		}
		managers := make([]string, 0, len(pos.Contributions))
		for _, c := range pos.Contributions {
			managers = append(managers, c.Manager)
		}
		sort.Strings(managers)
		out = append(out, models.OverlapEntry{
			Key:            pos.Key,
			Ticker:         pos.Ticker,
			Name:           pos.Name,
			Managers:       managers,
			CombinedWeight: pos.CombinedWeight,
			Sector:         pos.Attributes.Sector,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Managers) != len(out[j].Managers) {
			return len(out[i].Managers) > len(out[j].Managers)
		}
		if out[i].CombinedWeight != out[j].CombinedWeight {
			return out[i].CombinedWeight > out[j].CombinedWeight
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// SectorBreakdown sums combined weight by sector.
func SectorBreakdown(p *models.WeightedPortfolio) []models.BreakdownEntry {
	return breakdown(p, func(a *models.Attributes) string { return a.Sector })
}

// CountryBreakdown sums combined weight by country.
func CountryBreakdown(p *models.WeightedPortfolio) []models.BreakdownEntry {
	return breakdown(p, func(a *models.Attributes) string { return a.Country })
}

func breakdown(p *models.WeightedPortfolio, label func(*models.Attributes) string) []models.BreakdownEntry {
	byName := make(map[string]*models.BreakdownEntry)
	for _, pos := range p.Positions {
		name := label(&pos.Attributes)
		if name == "" {
			name = Unknown
		}
		e, ok := byName[name]
		if !ok {
			e = &models.BreakdownEntry{Name: name}
			byName[name] = e
		}
		e.Weight += pos.CombinedWeight
		e.Count++
	}

	out := make([]models.BreakdownEntry, 0, len(byName))
	for _, e := range byName {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Name < out[j].Name
	})
	return out
}
