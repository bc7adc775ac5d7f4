// Package interfaces defines service contracts for levfolio
package interfaces

import (
	"context"
	"time"

	"github.com/levfolio/levfolio/internal/models"
)

// MarketProvider wraps one upstream market-data source behind a uniform
// contract. Providers are tried in a fixed priority order; an empty result
// (or an error) from one simply hands the request to the next. Adapters
// absorb upstream 4xx/5xx and malformed payloads — they log the reason and
// return an empty result rather than panicking across the boundary.
type MarketProvider interface {
	// Name returns the provider identifier recorded as the data source.
	Name() string

	// FetchHistory returns daily bars in [from, to], ascending by date.
	// A nil/empty slice means the provider had no usable series.
	FetchHistory(ctx context.Context, ticker string, from, to time.Time) ([]models.ProviderBar, error)

	// FetchQuote returns a live snapshot; a zero-valued quote means the
	// provider had no usable price.
	FetchQuote(ctx context.Context, ticker string) (models.ProviderQuote, error)
}
