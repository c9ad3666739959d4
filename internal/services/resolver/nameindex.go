package resolver

import (
	"sort"
	"strings"

	"github.com/bobmcallan/holdwise/internal/models"
)

// corporateSuffixes are dropped from the end of issuer names before
// matching. Longer forms precede their prefixes ("CORPORATION" before "CORP").
var corporateSuffixes = []string{
	"CORPORATION", "INTERNATIONAL", "HOLDINGS", "HOLDING", "GROUP", "INTL",
	"CORP", "INC", "LTD", "PLC", "& CO", "CO", "LP", "NV", "SA", "AG", "SE",
}

// shareClassWords mark share class qualifiers in filing names (e.g.
// "ALPHABET INC CL A"); everything from them onward is dropped.
var shareClassWords = map[string]bool{"CL": true, "CLASS": true, "COM": true, "SHS": true, "ORD": true}

// matchName reduces an issuer name to its matching form.
func matchName(name string) string {
	n := models.NormalizeName(name)
	n = strings.TrimPrefix(n, "THE ")

	words := strings.Fields(n)
	for i, w := range words {
		if i > 0 && shareClassWords[w] {
			words = words[:i]
			break
		}
	}
	n = strings.Join(words, " ")

	for changed := true; changed; {
		changed = false
		for _, suffix := range corporateSuffixes {
			if strings.HasSuffix(n, " "+suffix) {
				n = strings.TrimSpace(strings.TrimSuffix(n, " "+suffix))
				changed = true
			}
		}
	}
	return n
}

// NameIndex maps normalised issuer names to tickers.
type NameIndex struct {
	exact map[string]string
	keys  []string // sorted keys of exact
}

// NewNameIndex builds an index from company rows. Where several tickers
// share a name the first listed is kept, matching the source file's
// primary-listing order.
func NewNameIndex(rows []models.CompanyTicker) *NameIndex {
	idx := &NameIndex{exact: make(map[string]string, len(rows))}
	for _, row := range rows {
		ticker := models.NormalizeTicker(row.Ticker)
		key := matchName(row.Title)
		if ticker == "" || key == "" {
			continue
		}
		if _, exists := idx.exact[key]; !exists {
			idx.exact[key] = ticker
		}
	}
	idx.keys = make([]string, 0, len(idx.exact))
	for k := range idx.exact {
		idx.keys = append(idx.keys, k)
	}
	sort.Strings(idx.keys)
	return idx
}

// Len returns the number of distinct names indexed.
func (idx *NameIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.exact)
}

// Lookup finds a ticker for an issuer name: an exact match on the
// normalised name, then a unique index entry extending the name, then the
// longest index entry the name extends (at a word boundary).
func (idx *NameIndex) Lookup(name string) (string, bool) {
	if idx == nil || len(idx.exact) == 0 {
		return "", false
	}
	key := matchName(name)
	if key == "" {
		return "", false
	}

	if ticker, ok := idx.exact[key]; ok {
		return ticker, true
	}

	// entries that start with the query
	prefix := key + " "
	i := sort.SearchStrings(idx.keys, prefix)
	var found string
	ambiguous := false
	for ; i < len(idx.keys) && strings.HasPrefix(idx.keys[i], prefix); i++ {
		t := idx.exact[idx.keys[i]]
		if found != "" && found != t {
			ambiguous = true
			break
		}
		found = t
	}
	if found != "" && !ambiguous {
		return found, true
	}

	// longest entry the query starts with
	words := strings.Fields(key)
	for n := len(words) - 1; n >= 1; n-- {
		if ticker, ok := idx.exact[strings.Join(words[:n], " ")]; ok {
			return ticker, true
		}
	}
	return "", false
}
