package surrealdb

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/levfolio/levfolio/internal/common"
	"github.com/levfolio/levfolio/internal/interfaces"
	"github.com/levfolio/levfolio/internal/models"
)

// QuoteStore is the point cache. Put deletes any prior row before inserting,
// which keeps exactly one live row per symbol without an upsert key — the
// row is ephemeral and rewritten every refresh cycle.
type QuoteStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewQuoteStore(db *surrealdb.DB, logger *common.Logger) *QuoteStore {
	return &QuoteStore{
		db:     db,
		logger: logger,
	}
}

// Get returns the current point quote for a symbol, or nil when none.
func (s *QuoteStore) Get(ctx context.Context, symbolID string) (*models.PointQuote, error) {
	sql := "SELECT * FROM point_quote WHERE symbol_id = $sid LIMIT 1"
	vars := map[string]any{"sid": symbolID}

	results, err := surrealdb.Query[[]models.PointQuote](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to get point quote: %w", err)
	}

	if results != nil && len(*results) > 0 && len((*results)[0].Result) > 0 {
		return &(*results)[0].Result[0], nil
	}
	return nil, nil
}

// Put replaces any existing row for the quote's symbol with this one.
func (s *QuoteStore) Put(ctx context.Context, quote *models.PointQuote) error {
	delSQL := "DELETE point_quote WHERE symbol_id = $sid"
	if _, err := surrealdb.Query[any](ctx, s.db, delSQL, map[string]any{"sid": quote.SymbolID}); err != nil {
		return fmt.Errorf("failed to delete prior point quote: %w", err)
	}

	createSQL := "CREATE point_quote CONTENT $quote"
	if _, err := surrealdb.Query[[]models.PointQuote](ctx, s.db, createSQL, map[string]any{"quote": quote}); err != nil {
		return fmt.Errorf("failed to insert point quote: %w", err)
	}

	s.logger.Debug().
		Str("symbol_id", quote.SymbolID).
		Float64("price", quote.Price).
		Str("source", quote.Source).
		Msg("Point quote replaced")

	return nil
}

// Compile-time check
var _ interfaces.QuoteStore = (*QuoteStore)(nil)
