// Package common provides shared utilities for levfolio
package common

import "time"

// Freshness TTLs for cached data components
const (
	// FreshnessPointQuote is the point-cache staleness threshold. A quote
	// older than this is re-fetched on the next request. Tuned for a
	// slow-moving daily-bar use case, not intraday trading.
	FreshnessPointQuote = 20 * time.Minute

	// FreshnessTodayBar bounds how often today's daily bar is re-checked
	// against providers during market hours.
	FreshnessTodayBar = 1 * time.Hour
)

// IsFresh returns true if the given timestamp is within the TTL
func IsFresh(updated time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return time.Since(updated) < ttl
}

// IsFreshAt is IsFresh evaluated against an explicit clock, for callers
// with an injectable now().
func IsFreshAt(now, updated time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return now.Sub(updated) < ttl
}
