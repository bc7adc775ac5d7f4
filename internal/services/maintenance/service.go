// Package maintenance implements the sweeper that heals the historical
// cache independently of live requests: gap detection, targeted backfill,
// and manual force refresh.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/levfolio/levfolio/internal/common"
	"github.com/levfolio/levfolio/internal/interfaces"
	"github.com/levfolio/levfolio/internal/models"
)

const (
	// Buffer margins around the minimal covering range of a backfill.
	// Providers are fuzzy about range endpoints; two extra days at the
	// start and one past today keep edge dates from being missed.
	backfillStartBufferDays = 2
	backfillEndBufferDays   = 1

	// DefaultProviderTimeout caps a single provider call during a sweep.
	DefaultProviderTimeout = 15 * time.Second
)

// Service implements MaintenanceService.
type Service struct {
	storage         interfaces.StorageManager
	providers       []interfaces.MarketProvider // same priority order as live requests
	logger          *common.Logger
	providerTimeout time.Duration
	now             func() time.Time // injectable clock for testing
}

// NewService creates a new maintenance service.
func NewService(storage interfaces.StorageManager, providers []interfaces.MarketProvider, logger *common.Logger) *Service {
	return &Service{
		storage:         storage,
		providers:       providers,
		logger:          logger,
		providerTimeout: DefaultProviderTimeout,
		now:             time.Now,
	}
}

// FindGaps enumerates the weekday dates in [today - lookbackDays, today]
// missing from the historical cache, ascending. Weekends are excluded from
// the expected set entirely, so they are never reported as gaps.
func (s *Service) FindGaps(ctx context.Context, symbolID string, lookbackDays int) ([]time.Time, error) {
	today := common.TradingDate(s.now())
	from := today.AddDate(0, 0, -lookbackDays)

	present, err := s.storage.Bars().Dates(ctx, symbolID, from, today)
	if err != nil {
		return nil, fmt.Errorf("read cached dates: %w", err)
	}
	have := make(map[string]bool, len(present))
	for _, d := range present {
		have[common.DateKey(d)] = true
	}

	var missing []time.Time
	for _, d := range common.WeekdaysBetween(from, today) {
		if !have[common.DateKey(d)] {
			missing = append(missing, d)
		}
	}
	return missing, nil
}

// Backfill fetches the minimal covering range for the missing dates (with
// buffer margins), filters the returned series down to exactly those dates,
// and upserts only them. Returns the number of bars upserted.
func (s *Service) Backfill(ctx context.Context, symbol *models.Symbol, missing []time.Time) (int, error) {
	if len(missing) == 0 {
		return 0, nil
	}

	today := common.TradingDate(s.now())
	from := common.TradingDate(missing[0]).AddDate(0, 0, -backfillStartBufferDays)
	to := today.AddDate(0, 0, backfillEndBufferDays)

	raw, source := s.fetchHistory(ctx, symbol.Ticker, from, to)
	if len(raw) == 0 {
		return 0, fmt.Errorf("no provider returned history for %s", symbol.Ticker)
	}

	wanted := make(map[string]bool, len(missing))
	for _, d := range missing {
		wanted[common.DateKey(d)] = true
	}

	var bars []models.DailyBar
	for _, r := range raw {
		date := common.TradingDate(r.Date)
		if !common.IsTradingDay(date) || !wanted[common.DateKey(date)] {
			continue
		}
		bars = append(bars, models.DailyBar{
			SymbolID: symbol.ID,
			Date:     date,
			Open:     r.Open,
			High:     r.High,
			Low:      r.Low,
			Close:    r.Close,
			AdjClose: r.AdjClose,
			Volume:   r.Volume,
			Source:   source,
		})
	}

	if len(bars) == 0 {
		// The gap dates may simply be exchange holidays the weekday
		// calendar cannot see; nothing to write is not a failure.
		s.logger.Debug().
			Str("ticker", symbol.Ticker).
			Int("gaps", len(missing)).
			Msg("Backfill fetch returned no bars for the gap dates (likely holidays)")
		return 0, nil
	}

	if err := s.storage.Bars().UpsertMany(ctx, bars); err != nil {
		return 0, fmt.Errorf("upsert backfill for %s: %w", symbol.Ticker, err)
	}

	s.logger.Info().
		Str("ticker", symbol.Ticker).
		Int("gaps", len(missing)).
		Int("filled", len(bars)).
		Str("provider", source).
		Msg("Gap backfill complete")
	return len(bars), nil
}

// refreshSymbol unconditionally re-fetches and upserts the last `days` of
// history for one symbol, bypassing gap detection. Used for manual recovery
// from suspected provider data corruption.
func (s *Service) refreshSymbol(ctx context.Context, symbol *models.Symbol, days int) (int, error) {
	today := common.TradingDate(s.now())
	from := today.AddDate(0, 0, -days)
	to := today.AddDate(0, 0, backfillEndBufferDays)

	raw, source := s.fetchHistory(ctx, symbol.Ticker, from, to)
	if len(raw) == 0 {
		return 0, fmt.Errorf("no provider returned history for %s", symbol.Ticker)
	}

	var bars []models.DailyBar
	for _, r := range raw {
		date := common.TradingDate(r.Date)
		if !common.IsTradingDay(date) {
			continue
		}
		bars = append(bars, models.DailyBar{
			SymbolID: symbol.ID,
			Date:     date,
			Open:     r.Open,
			High:     r.High,
			Low:      r.Low,
			Close:    r.Close,
			AdjClose: r.AdjClose,
			Volume:   r.Volume,
			Source:   source,
		})
	}
	if err := s.storage.Bars().UpsertMany(ctx, bars); err != nil {
		return 0, fmt.Errorf("upsert refresh for %s: %w", symbol.Ticker, err)
	}

	s.logger.Info().
		Str("ticker", symbol.Ticker).
		Int("bars", len(bars)).
		Str("provider", source).
		Msg("Force refresh complete")
	return len(bars), nil
}

// fetchHistory walks the providers in priority order for a series, with a
// per-call timeout. Failures are logged and absorbed.
func (s *Service) fetchHistory(ctx context.Context, ticker string, from, to time.Time) ([]models.ProviderBar, string) {
	for _, provider := range s.providers {
		pctx, cancel := context.WithTimeout(ctx, s.providerTimeout)
		raw, err := provider.FetchHistory(pctx, ticker, from, to)
		cancel()
		if err != nil {
			s.logger.Warn().Err(err).Str("ticker", ticker).Str("provider", provider.Name()).Msg("Sweep history fetch failed; falling through")
			continue
		}
		if len(raw) == 0 {
			continue
		}
		return raw, provider.Name()
	}
	return nil, ""
}

// Maintain scans each symbol for gaps over the lookback window and
// backfills them. One symbol's failure never aborts the rest of the batch.
func (s *Service) Maintain(ctx context.Context, tickers []string, lookbackDays int) (*models.MaintenanceReport, error) {
	start := s.now()
	report := &models.MaintenanceReport{
		Action:    models.ActionMaintain,
		StartedAt: start,
	}

	for _, ticker := range tickers {
		result := models.SymbolMaintenance{Ticker: ticker}

		symbol, err := s.storage.Symbols().Resolve(ctx, ticker)
		if err != nil {
			result.Error = err.Error()
			report.Symbols = append(report.Symbols, result)
			s.logger.Error().Err(err).Str("ticker", ticker).Msg("Sweep: symbol resolve failed")
			continue
		}

		gaps, err := s.FindGaps(ctx, symbol.ID, lookbackDays)
		if err != nil {
			result.Error = err.Error()
			report.Symbols = append(report.Symbols, result)
			s.logger.Error().Err(err).Str("ticker", ticker).Msg("Sweep: gap scan failed")
			continue
		}
		for _, g := range gaps {
			result.GapDates = append(result.GapDates, common.DateKey(g))
		}

		if len(gaps) > 0 {
			filled, err := s.Backfill(ctx, symbol, gaps)
			if err != nil {
				result.Error = err.Error()
				s.logger.Error().Err(err).Str("ticker", ticker).Msg("Sweep: backfill failed")
			}
			result.BarsUpserted = filled
		}
		report.Symbols = append(report.Symbols, result)
	}

	report.Duration = s.now().Sub(start)
	s.logger.Info().
		Int("symbols", len(tickers)).
		Int("failed", report.Failed()).
		Dur("elapsed", report.Duration).
		Msg("Maintenance sweep complete")
	return report, nil
}

// ForceRefresh re-fetches the last `days` for each symbol unconditionally.
func (s *Service) ForceRefresh(ctx context.Context, tickers []string, days int) (*models.MaintenanceReport, error) {
	start := s.now()
	report := &models.MaintenanceReport{
		Action:    models.ActionForceRefresh,
		StartedAt: start,
	}

	for _, ticker := range tickers {
		result := models.SymbolMaintenance{Ticker: ticker}

		symbol, err := s.storage.Symbols().Resolve(ctx, ticker)
		if err != nil {
			result.Error = err.Error()
			report.Symbols = append(report.Symbols, result)
			continue
		}

		upserted, err := s.refreshSymbol(ctx, symbol, days)
		if err != nil {
			result.Error = err.Error()
			s.logger.Error().Err(err).Str("ticker", ticker).Msg("Force refresh failed")
		}
		result.BarsUpserted = upserted
		report.Symbols = append(report.Symbols, result)
	}

	report.Duration = s.now().Sub(start)
	return report, nil
}

// Ensure Service implements MaintenanceService
var _ interfaces.MaintenanceService = (*Service)(nil)
