package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/levfolio/levfolio/internal/common"
	"github.com/levfolio/levfolio/internal/interfaces"
	"github.com/levfolio/levfolio/internal/models"
)

// BarStore is the historical cache: one record per (symbol, trading date).
// The composite key is baked into the record ID, so UPSERT gives idempotent,
// last-write-wins semantics without an explicit unique constraint.
type BarStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewBarStore(db *surrealdb.DB, logger *common.Logger) *BarStore {
	return &BarStore{
		db:     db,
		logger: logger,
	}
}

// barRecordID builds the natural-key record ID for a bar.
func barRecordID(symbolID string, date time.Time) surrealmodels.RecordID {
	return surrealmodels.NewRecordID("daily_bar", fmt.Sprintf("%s|%s", symbolID, common.DateKey(date)))
}

// GetRange returns bars with dates in [from, to], ascending by date.
func (s *BarStore) GetRange(ctx context.Context, symbolID string, from, to time.Time) ([]models.DailyBar, error) {
	sql := "SELECT * FROM daily_bar WHERE symbol_id = $sid AND date >= $from AND date <= $to ORDER BY date ASC"
	vars := map[string]any{
		"sid":  symbolID,
		"from": from,
		"to":   to,
	}

	results, err := surrealdb.Query[[]models.DailyBar](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to get bar range: %w", err)
	}

	if results != nil && len(*results) > 0 {
		return (*results)[0].Result, nil
	}
	return nil, nil
}

// UpsertMany inserts or overwrites each bar keyed on (symbol, date).
// Writes are retried because market closes are immutable facts: replaying
// the same input always converges to the same rows.
func (s *BarStore) UpsertMany(ctx context.Context, bars []models.DailyBar) error {
	sql := "UPSERT $rid CONTENT $bar"

	for i := range bars {
		bar := &bars[i]
		vars := map[string]any{
			"rid": barRecordID(bar.SymbolID, bar.Date),
			"bar": bar,
		}

		var lastErr error
		for attempt := 1; attempt <= 3; attempt++ {
			_, err := surrealdb.Query[[]models.DailyBar](ctx, s.db, sql, vars)
			if err == nil {
				lastErr = nil
				break
			}
			lastErr = err
		}
		if lastErr != nil {
			return fmt.Errorf("failed to upsert bar %s/%s after retries: %w",
				bar.SymbolID, common.DateKey(bar.Date), lastErr)
		}
	}

	return nil
}

// Dates returns the trading dates present in [from, to], ascending.
func (s *BarStore) Dates(ctx context.Context, symbolID string, from, to time.Time) ([]time.Time, error) {
	sql := "SELECT date FROM daily_bar WHERE symbol_id = $sid AND date >= $from AND date <= $to ORDER BY date ASC"
	vars := map[string]any{
		"sid":  symbolID,
		"from": from,
		"to":   to,
	}

	type dateResult struct {
		Date time.Time `json:"date"`
	}

	results, err := surrealdb.Query[[]dateResult](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to get bar dates: %w", err)
	}

	var dates []time.Time
	if results != nil && len(*results) > 0 {
		for _, r := range (*results)[0].Result {
			dates = append(dates, r.Date)
		}
	}
	return dates, nil
}

// Latest returns the most recent bar for a symbol, or nil when none.
func (s *BarStore) Latest(ctx context.Context, symbolID string) (*models.DailyBar, error) {
	sql := "SELECT * FROM daily_bar WHERE symbol_id = $sid ORDER BY date DESC LIMIT 1"
	vars := map[string]any{"sid": symbolID}

	results, err := surrealdb.Query[[]models.DailyBar](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest bar: %w", err)
	}

	if results != nil && len(*results) > 0 && len((*results)[0].Result) > 0 {
		return &(*results)[0].Result[0], nil
	}
	return nil, nil
}

// Compile-time check
var _ interfaces.BarStore = (*BarStore)(nil)
