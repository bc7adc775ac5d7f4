package models

import "time"

// Maintenance actions accepted by the maintenance endpoint.
const (
	ActionMaintain     = "maintain"
	ActionForceRefresh = "force_refresh"
)

// MaintenanceRequest is the optional body of a manual maintenance trigger.
// An empty body runs the default sweep over the configured symbols.
type MaintenanceRequest struct {
	Action           string   `json:"action,omitempty"`
	Symbols          []string `json:"symbols,omitempty"`
	LookbackDays     int      `json:"lookbackDays,omitempty"`
	ForceRefreshDays int      `json:"forceRefreshDays,omitempty"`
}

// SymbolMaintenance reports the outcome of maintaining one symbol.
// A failed symbol carries its error string; it never aborts the batch.
type SymbolMaintenance struct {
	Ticker       string   `json:"ticker"`
	GapDates     []string `json:"gap_dates,omitempty"`
	BarsUpserted int      `json:"bars_upserted"`
	Error        string   `json:"error,omitempty"`
}

// MaintenanceReport summarizes a sweep or force-refresh run.
type MaintenanceReport struct {
	Action    string              `json:"action"`
	StartedAt time.Time           `json:"started_at"`
	Duration  time.Duration       `json:"duration"`
	Symbols   []SymbolMaintenance `json:"symbols"`
}

// Failed returns the count of symbols whose maintenance failed.
func (r *MaintenanceReport) Failed() int {
	n := 0
	for _, s := range r.Symbols {
		if s.Error != "" {
			n++
		}
	}
	return n
}
