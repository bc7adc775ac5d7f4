package surrealdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/levfolio/levfolio/internal/common"
	"github.com/levfolio/levfolio/internal/interfaces"
	"github.com/levfolio/levfolio/internal/models"
)

// SymbolStore is the symbol registry. The ticker doubles as the record key,
// which gives ticker uniqueness for free; the opaque ID assigned on first
// sight is what bars and quotes reference.
type SymbolStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewSymbolStore(db *surrealdb.DB, logger *common.Logger) *SymbolStore {
	return &SymbolStore{
		db:     db,
		logger: logger,
	}
}

func normalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Resolve looks up the symbol for a ticker, creating it on first sight.
func (s *SymbolStore) Resolve(ctx context.Context, ticker string) (*models.Symbol, error) {
	ticker = normalizeTicker(ticker)
	if ticker == "" {
		return nil, fmt.Errorf("empty ticker")
	}

	existing, err := s.Get(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	symbol := &models.Symbol{
		ID:          uuid.NewString(),
		Ticker:      ticker,
		DisplayName: ticker,
		CreatedAt:   time.Now(),
	}

	// CREATE ONLY fails when the record already exists, so a concurrent
	// resolve cannot reassign an ID; re-select picks up the winner's row.
	sql := "CREATE ONLY $rid CONTENT $data"
	vars := map[string]any{
		"rid":  surrealmodels.NewRecordID("symbol", ticker),
		"data": symbol,
	}
	if _, err := surrealdb.Query[models.Symbol](ctx, s.db, sql, vars); err != nil {
		created, gerr := s.Get(ctx, ticker)
		if gerr == nil && created != nil {
			return created, nil
		}
		return nil, fmt.Errorf("failed to create symbol %s: %w", ticker, err)
	}

	s.logger.Info().Str("ticker", ticker).Str("symbol_id", symbol.ID).Msg("Symbol registered")
	return symbol, nil
}

// Get returns the symbol for a ticker without creating it, or nil.
func (s *SymbolStore) Get(ctx context.Context, ticker string) (*models.Symbol, error) {
	ticker = normalizeTicker(ticker)

	data, err := surrealdb.Select[models.Symbol](ctx, s.db, surrealmodels.NewRecordID("symbol", ticker))
	if err != nil {
		return nil, fmt.Errorf("failed to select symbol: %w", err)
	}
	if data == nil || data.Ticker == "" {
		return nil, nil
	}
	return data, nil
}

// List returns all registered symbols ordered by ticker.
func (s *SymbolStore) List(ctx context.Context) ([]*models.Symbol, error) {
	sql := "SELECT * FROM symbol ORDER BY ticker ASC"

	results, err := surrealdb.Query[[]models.Symbol](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}

	var symbols []*models.Symbol
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			symbols = append(symbols, &(*results)[0].Result[i])
		}
	}
	return symbols, nil
}

// Compile-time check
var _ interfaces.SymbolStore = (*SymbolStore)(nil)
