// Package interfaces defines service contracts for levfolio
package interfaces

import (
	"context"

	"github.com/levfolio/levfolio/internal/models"
)

// StockService resolves price data requests against the caches, escalating
// to the market providers when the caches are insufficient.
type StockService interface {
	// GetStockBatch resolves each requested symbol concurrently and returns
	// results in request order. Per-symbol failures yield an "error"-sourced
	// entry; they never fail the batch.
	GetStockBatch(ctx context.Context, req *models.StockRequest) ([]*models.StockData, error)

	// GetStock resolves a single symbol.
	GetStock(ctx context.Context, ticker string, timeRange models.TimeRange, forceRefresh bool) (*models.StockData, error)

	// RenderChartPNG renders a price-history chart for a symbol.
	RenderChartPNG(ctx context.Context, ticker string, timeRange models.TimeRange) ([]byte, error)
}

// MaintenanceService heals the historical cache independently of live
// requests: gap backfill and manual force refresh.
type MaintenanceService interface {
	// Maintain scans each symbol for missing trading dates over the lookback
	// window and backfills them. One symbol's failure never aborts the rest.
	Maintain(ctx context.Context, tickers []string, lookbackDays int) (*models.MaintenanceReport, error)

	// ForceRefresh unconditionally re-fetches and upserts the last `days` of
	// history for each symbol, bypassing gap detection.
	ForceRefresh(ctx context.Context, tickers []string, days int) (*models.MaintenanceReport, error)
}
