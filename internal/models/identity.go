package models

import (
	"regexp"
	"strings"
)

var tickerPattern = regexp.MustCompile(`^[A-Z0-9]+(-[A-Z0-9]+)?$`)

// NormalizeTicker canonicalises a ticker symbol. Share-class separators
// ("." "/" or a space) become a single hyphen. It returns "" for anything
// that is not a valid symbol, including placeholders such as "N/A".
func NormalizeTicker(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "", "N/A", "NA", "NAN", "NONE", "NULL", "-":
		return ""
	}
	s = strings.NewReplacer(".", "-", "/", "-", " ", "-").Replace(s)
	if !tickerPattern.MatchString(s) {
		return ""
	}
	return s
}

// NormalizeName folds an issuer name for matching: upper case, punctuation
// removed, whitespace collapsed.
func NormalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range strings.ToUpper(s) {
		switch {
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			space = false
		case r == '&':
			b.WriteRune(r)
			space = false
		default:
			if !space && b.Len() > 0 {
				b.WriteByte(' ')
				space = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// PositionKey identifies a security for deduplication and diffing: the
// ticker when known, otherwise the normalised issuer name.
func PositionKey(ticker, name string) string {
	if ticker != "" {
		return ticker
	}
	return "name:" + NormalizeName(name)
}
