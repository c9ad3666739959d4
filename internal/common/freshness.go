// Package common provides shared utilities for holdwise
package common

import "time"

// Freshness TTLs for cached data
const (
	FreshnessEnrichment   = 6 * time.Hour  // prices move intraday
	FreshnessCompanyIndex = 24 * time.Hour // name index is reloaded at most daily
)

// IsFresh returns true if the given timestamp is within the TTL
func IsFresh(updated time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return time.Since(updated) < ttl
}
