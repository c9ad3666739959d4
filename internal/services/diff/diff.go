// Package diff compares snapshots quarter over quarter, bucketing each
// security as added, removed, changed or unchanged.
package diff

import (
	"math"
	"sort"

	"github.com/bobmcallan/holdwise/internal/models"
)

// tolerance absorbs float noise so a delta equal to the threshold counts
// as changed.
const tolerance = 1e-9

// entry is one security's weight on one side of a diff.
type entry struct {
	key    string
	ticker string
	name   string
	weight float64
	value  float64
	rank   int
}

// collect merges entries sharing a key, summing weight and value.
func collect(entries []entry) map[string]*entry {
	out := make(map[string]*entry, len(entries))
	for _, e := range entries {
		if cur, ok := out[e.key]; ok {
			cur.weight += e.weight
			cur.value += e.value
			if e.rank > 0 && (cur.rank == 0 || e.rank < cur.rank) {
				cur.rank = e.rank
			}
			continue
		}
		e := e
		out[e.key] = &e
	}
	return out
}

// compare classifies every key in a and b. A negative threshold selects
// the default.
func compare(a, b []entry, threshold float64) *models.DiffResult {
	if threshold < 0 {
		threshold = models.DefaultMaterialityThreshold
	}
	before, after := collect(a), collect(b)
	matchByName(before, after)

	res := &models.DiffResult{
		Added:   []models.PositionChange{},
		Removed: []models.PositionChange{},
		Changed: []models.PositionChange{},
	}
	for key, prev := range before {
		cur, ok := after[key]
		if !ok {
			res.Removed = append(res.Removed, change(prev, prev.weight, 0))
			continue
		}
		if delta := math.Abs(cur.weight - prev.weight); delta > tolerance && delta >= threshold-tolerance {
			res.Changed = append(res.Changed, change(cur, prev.weight, cur.weight))
		} else {
			res.UnchangedCount++
		}
	}
	for key, cur := range after {
		if _, ok := before[key]; !ok {
			res.Added = append(res.Added, change(cur, 0, cur.weight))
		}
	}

	sortByWeight(res.Added, func(c models.PositionChange) float64 { return c.Current })
	sortByWeight(res.Removed, func(c models.PositionChange) float64 { return c.Previous })
	sortByWeight(res.Changed, func(c models.PositionChange) float64 { return math.Abs(c.Delta) })
	return res
}

// matchByName pairs leftover rows across sides by normalised name when at
// least one of them has no ticker, re-keying the earlier side to match.
// A name shared by more than one leftover row on either side is ambiguous
// and left unpaired.
func matchByName(before, after map[string]*entry) {
	afterByName := unmatchedByName(after, before)
	if len(afterByName) == 0 {
		return
	}

	type rekey struct{ from, to string }
	var moves []rekey
	for name, keys := range unmatchedByName(before, after) {
		targets := afterByName[name]
		if len(keys) != 1 || len(targets) != 1 {
			continue
		}
		if before[keys[0]].ticker != "" && after[targets[0]].ticker != "" {
			continue
		}
		moves = append(moves, rekey{from: keys[0], to: targets[0]})
	}

	for _, m := range moves {
		e := before[m.from]
		delete(before, m.from)
		e.key = m.to
		before[m.to] = e
	}
}

// unmatchedByName groups the keys of side that are missing from other by
// normalised name.
func unmatchedByName(side, other map[string]*entry) map[string][]string {
	out := make(map[string][]string)
	for key, e := range side {
		if _, ok := other[key]; ok {
			continue
		}
		name := models.NormalizeName(e.name)
		if name == "" {
			continue
		}
		out[name] = append(out[name], key)
	}
	return out
}

func change(e *entry, previous, current float64) models.PositionChange {
	return models.PositionChange{
		Key:      e.key,
		Ticker:   e.ticker,
		Name:     e.name,
		Previous: previous,
		Current:  current,
		Delta:    current - previous,
		Value:    e.value,
		Rank:     e.rank,
	}
}

func sortByWeight(changes []models.PositionChange, weight func(models.PositionChange) float64) {
	sort.Slice(changes, func(i, j int) bool {
		wi, wj := weight(changes[i]), weight(changes[j])
		if wi != wj {
			return wi > wj
		}
		return changes[i].Key < changes[j].Key
	})
}

func portfolioEntries(p *models.WeightedPortfolio) []entry {
	if p == nil {
		return nil
	}
	out := make([]entry, 0, len(p.Positions))
	for _, pos := range p.Positions {
		out = append(out, entry{
			key:    pos.Key,
			ticker: pos.Ticker,
			name:   pos.Name,
			weight: pos.CombinedWeight,
		})
	}
	return out
}

func setEntries(set *models.ManagerHoldingsSet) []entry {
	if set == nil {
		return nil
	}
	out := make([]entry, 0, len(set.Holdings))
	for _, h := range set.Holdings {
		out = append(out, entry{
			key:    models.PositionKey(h.Ticker, h.Name),
			ticker: h.Ticker,
			name:   h.Name,
			weight: h.PctOfPortfolio,
			value:  h.Value,
			rank:   h.Rank,
		})
	}
	return out
}

// DiffPortfolios compares two weighted portfolios by combined weight.
// a is the earlier period.
func DiffPortfolios(a, b *models.WeightedPortfolio, threshold float64) *models.DiffResult {
	return compare(portfolioEntries(a), portfolioEntries(b), threshold)
}

// DiffSets compares two holdings sets of the same manager by percentage
// of the manager's book.
func DiffSets(a, b *models.ManagerHoldingsSet, threshold float64) *models.DiffResult {
	return compare(setEntries(a), setEntries(b), threshold)
}

// DiffHoldings compares holdings keyed by manager. A manager present on
// one side only shows all of its holdings as added or removed.
func DiffHoldings(a, b []*models.ManagerHoldingsSet, threshold float64) map[string]*models.DiffResult {
	before := make(map[string]*models.ManagerHoldingsSet, len(a))
	for _, s := range a {
		if s != nil {
			before[s.Manager] = s
		}
	}
	after := make(map[string]*models.ManagerHoldingsSet, len(b))
	for _, s := range b {
		if s != nil {
			after[s.Manager] = s
		}
	}

	out := make(map[string]*models.DiffResult)
	for m, s := range before {
		out[m] = DiffSets(s, after[m], threshold)
	}
	for m, s := range after {
		if _, ok := before[m]; !ok {
			out[m] = DiffSets(nil, s, threshold)
		}
	}
	return out
}
