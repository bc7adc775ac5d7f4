// Package interfaces defines service contracts for levfolio
package interfaces

import (
	"context"
	"time"

	"github.com/levfolio/levfolio/internal/models"
)

// StorageManager coordinates the persistent caches.
type StorageManager interface {
	Symbols() SymbolStore
	Bars() BarStore
	Quotes() QuoteStore

	Close() error
}

// SymbolStore is the symbol registry: ticker → stable internal identifier.
type SymbolStore interface {
	// Resolve looks up the symbol for a ticker, creating it (with the
	// ticker as display name) on first sight. The assigned ID is immutable.
	Resolve(ctx context.Context, ticker string) (*models.Symbol, error)

	// Get returns the symbol for a ticker without creating it, or nil.
	Get(ctx context.Context, ticker string) (*models.Symbol, error)

	// List returns all registered symbols ordered by ticker.
	List(ctx context.Context) ([]*models.Symbol, error)
}

// BarStore is the historical cache: one OHLCV bar per (symbol, trading day).
type BarStore interface {
	// GetRange returns bars with dates in [from, to], ascending by date.
	GetRange(ctx context.Context, symbolID string, from, to time.Time) ([]models.DailyBar, error)

	// UpsertMany inserts or overwrites each bar keyed on (symbol, date).
	// Re-running with identical input leaves the store unchanged.
	UpsertMany(ctx context.Context, bars []models.DailyBar) error

	// Dates returns the trading dates present in [from, to], ascending.
	Dates(ctx context.Context, symbolID string, from, to time.Time) ([]time.Time, error)

	// Latest returns the most recent bar for a symbol, or nil when none.
	Latest(ctx context.Context, symbolID string) (*models.DailyBar, error)
}

// QuoteStore is the point cache: at most one live quote row per symbol.
type QuoteStore interface {
	// Get returns the current point quote for a symbol, or nil when none.
	Get(ctx context.Context, symbolID string) (*models.PointQuote, error)

	// Put replaces any existing row for the quote's symbol with this one.
	Put(ctx context.Context, quote *models.PointQuote) error
}
