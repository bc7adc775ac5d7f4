// Package common provides shared utilities for levfolio
package common

import "time"

// easternLocation is the America/New_York timezone. The tracked instruments
// trade on US exchanges, so trading-day determinations (weekend guard, gap
// scans) are made in US Eastern time, which handles EST/EDT automatically.
var easternLocation = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		// Fallback to fixed EST if tzdata is unavailable (minimal container)
		return time.FixedZone("EST", -5*60*60)
	}
	return loc
}

// Eastern returns the US Eastern timezone used for trading-day math.
func Eastern() *time.Location {
	return easternLocation
}

// TradingDate truncates t to its calendar date in US Eastern time.
func TradingDate(t time.Time) time.Time {
	et := t.In(easternLocation)
	return time.Date(et.Year(), et.Month(), et.Day(), 0, 0, 0, 0, easternLocation)
}

// IsTradingDay returns true when the date falls on a weekday in US Eastern
// time. Exchange holidays are not modeled; the sufficiency rule and gap
// tolerance absorb them.
func IsTradingDay(t time.Time) bool {
	wd := t.In(easternLocation).Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// WeekdaysBetween enumerates the weekday dates in [from, to] inclusive,
// ascending, normalized to US Eastern midnight.
func WeekdaysBetween(from, to time.Time) []time.Time {
	var days []time.Time
	for d := TradingDate(from); !d.After(TradingDate(to)); d = d.AddDate(0, 0, 1) {
		if IsTradingDay(d) {
			days = append(days, d)
		}
	}
	return days
}

// DateKey formats a date as the canonical YYYY-MM-DD key used for bar
// record IDs and chart labels.
func DateKey(t time.Time) string {
	return t.In(easternLocation).Format("2006-01-02")
}
