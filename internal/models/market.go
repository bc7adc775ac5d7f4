// Package models defines the domain types for levfolio
package models

import (
	"fmt"
	"strings"
	"time"
)

// Data source identifiers recorded on bars, quotes, and responses.
const (
	SourceTiingo       = "tiingo"
	SourceAlphaVantage = "alphavantage"
	SourceFinnhub      = "finnhub"
	SourceCache        = "historicalCache"
	SourceError        = "error"
)

// Symbol maps a ticker string to a stable internal identifier.
// The ID is assigned on first sight and never changes; the ticker is unique.
type Symbol struct {
	ID          string    `json:"id"`
	Ticker      string    `json:"ticker"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// DailyBar is one trading day's OHLCV for a symbol. At most one bar exists
// per (symbol, trading date); the date never falls on a US-Eastern weekend.
type DailyBar struct {
	SymbolID string    `json:"symbol_id"`
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adjusted_close"`
	Volume   int64     `json:"volume"`
	Source   string    `json:"source"`
}

// PointQuote is a single most-recent-price observation for a symbol.
// Exactly one row exists per symbol; prior rows are replaced on every put.
type PointQuote struct {
	SymbolID   string    `json:"symbol_id"`
	Price      float64   `json:"price"`
	ObservedAt time.Time `json:"observed_at"`
	Source     string    `json:"source"`
}

// ProviderBar is a provider-normalized daily bar, before it is bound to an
// internal symbol ID. Adapters emit these in ascending date order.
type ProviderBar struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adjusted_close"`
	Volume   int64     `json:"volume"`
}

// ProviderQuote is a provider-normalized live snapshot. A zero value means
// the provider had nothing usable.
type ProviderQuote struct {
	Price float64 `json:"price"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
}

// IsZero reports whether the quote carries no usable price.
func (q ProviderQuote) IsZero() bool {
	return q.Price == 0
}

// TimeRange is the requested chart window.
type TimeRange string

const (
	Range1M TimeRange = "1m"
	Range3M TimeRange = "3m"
	Range6M TimeRange = "6m"
)

// ParseTimeRange validates and normalizes a time range string.
func ParseTimeRange(s string) (TimeRange, error) {
	switch TimeRange(strings.ToLower(strings.TrimSpace(s))) {
	case Range1M:
		return Range1M, nil
	case Range3M:
		return Range3M, nil
	case Range6M:
		return Range6M, nil
	default:
		return "", fmt.Errorf("invalid time range %q (want 1m, 3m, or 6m)", s)
	}
}

// Days returns the calendar-day lookback for the range.
func (r TimeRange) Days() int {
	switch r {
	case Range3M:
		return 90
	case Range6M:
		return 180
	default:
		return 30
	}
}

// StockRequest is the inbound batch request from the UI/API layer.
type StockRequest struct {
	Symbols          []string `json:"symbols"`
	TimeRange        string   `json:"timeRange"`
	ForceRefresh     bool     `json:"forceRefresh"`
	RefreshDailyOnly bool     `json:"refreshDailyOnly"`
}

// Validate rejects malformed requests before any I/O is attempted.
func (r *StockRequest) Validate() error {
	if len(r.Symbols) == 0 {
		return fmt.Errorf("symbols list is required")
	}
	for _, s := range r.Symbols {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("symbols list contains an empty ticker")
		}
	}
	if _, err := ParseTimeRange(r.TimeRange); err != nil {
		return err
	}
	return nil
}

// ChartData holds parallel arrays for charting a daily series.
type ChartData struct {
	Labels []string  `json:"labels"`
	Open   []float64 `json:"open"`
	High   []float64 `json:"high"`
	Low    []float64 `json:"low"`
	Close  []float64 `json:"close"`
	Volume []int64   `json:"volume"`
}

// StockData is the uniform per-symbol response shape, regardless of which
// cache or provider path produced it.
type StockData struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	CurrentPrice  float64   `json:"currentPrice"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	Volume        int64     `json:"volume"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Open          float64   `json:"open"`
	DataSource    string    `json:"dataSource"`
	ChartData     ChartData `json:"chartData"`
}
