// Package stocks implements the price-data pipeline: per-symbol cache
// checks, provider escalation, and reconciliation back into the historical
// and point caches.
package stocks

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/levfolio/levfolio/internal/common"
	"github.com/levfolio/levfolio/internal/interfaces"
	"github.com/levfolio/levfolio/internal/models"
)

const (
	// minHealDays bounds write amplification on each refresh: provider
	// fetches always cover at least this many recent days so short gaps
	// heal as a side effect of normal traffic.
	minHealDays = 20

	// DefaultProviderTimeout caps a single provider call. A hung provider
	// is treated the same as an empty result.
	DefaultProviderTimeout = 15 * time.Second
)

// Service implements StockService.
type Service struct {
	storage         interfaces.StorageManager
	providers       []interfaces.MarketProvider // fixed priority order
	logger          *common.Logger
	providerTimeout time.Duration
	now             func() time.Time // injectable clock for testing
}

// NewService creates a new stock service. Providers are tried in the given
// order on every cache miss.
func NewService(storage interfaces.StorageManager, providers []interfaces.MarketProvider, logger *common.Logger) *Service {
	return &Service{
		storage:         storage,
		providers:       providers,
		logger:          logger,
		providerTimeout: DefaultProviderTimeout,
		now:             time.Now,
	}
}

// requiredBars is the sufficiency rule: a lookback of D calendar days is
// servable from cache with min(D*0.7, 10) bars. Deliberately loose —
// calendar days include weekends and holidays that never produce bars.
func requiredBars(lookbackDays int) int {
	return int(math.Ceil(math.Min(float64(lookbackDays)*0.7, 10)))
}

// GetStockBatch resolves each requested symbol concurrently and returns
// results in request order. Provider failures degrade per symbol; only a
// cache-store failure fails the batch.
func (s *Service) GetStockBatch(ctx context.Context, req *models.StockRequest) ([]*models.StockData, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	timeRange, _ := models.ParseTimeRange(req.TimeRange)

	results := make([]*models.StockData, len(req.Symbols))
	errs := make([]error, len(req.Symbols))

	var wg sync.WaitGroup
	for i, ticker := range req.Symbols {
		wg.Add(1)
		go func(i int, ticker string) {
			defer wg.Done()
			results[i], errs[i] = s.resolveSymbol(ctx, ticker, timeRange, req.ForceRefresh, req.RefreshDailyOnly)
		}(i, ticker)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// GetStock resolves a single symbol.
func (s *Service) GetStock(ctx context.Context, ticker string, timeRange models.TimeRange, forceRefresh bool) (*models.StockData, error) {
	return s.resolveSymbol(ctx, ticker, timeRange, forceRefresh, false)
}

// resolveSymbol walks the fixed priority order for one symbol:
// force-refresh bypass → historical sufficiency → provider escalation →
// degraded partial cache → terminal error record. The ordering is a
// correctness requirement: skipping ahead would mask fresher cached data or
// issue needless upstream calls.
func (s *Service) resolveSymbol(ctx context.Context, ticker string, timeRange models.TimeRange, forceRefresh, refreshDailyOnly bool) (*models.StockData, error) {
	symbol, err := s.storage.Symbols().Resolve(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("resolve symbol %s: %w", ticker, err)
	}

	now := s.now()
	to := common.TradingDate(now)
	lookbackDays := timeRange.Days()
	from := to.AddDate(0, 0, -lookbackDays)

	// Historical sufficiency check (skipped on force-refresh).
	if !forceRefresh {
		bars, err := s.storage.Bars().GetRange(ctx, symbol.ID, from, to)
		if err != nil {
			return nil, fmt.Errorf("read historical cache for %s: %w", ticker, err)
		}
		if len(bars) >= requiredBars(lookbackDays) {
			quote := s.RefreshPointCacheFromClose(ctx, symbol, bars[len(bars)-1])
			s.logger.Debug().
				Str("ticker", ticker).
				Int("bars", len(bars)).
				Msg("Serving from historical cache")
			return s.buildStockData(symbol, bars, quote, models.SourceCache), nil
		}
		// A fresh point quote alone never substitutes for the missing
		// series: charting needs history, and serving a single point here
		// would desync the displayed price from the charted series.
	}

	// Provider escalation.
	fetchDays := lookbackDays
	if fetchDays < minHealDays {
		fetchDays = minHealDays
	}
	if refreshDailyOnly {
		fetchDays = minHealDays
	}
	fetchFrom := to.AddDate(0, 0, -fetchDays)

	series, source, err := s.escalateHistory(ctx, symbol, fetchFrom, to)
	if err != nil {
		return nil, err
	}
	if len(series) > 0 {
		quote := s.pointQuoteFromProviders(ctx, symbol, ticker, source, series[len(series)-1])

		// Serve the requested window from cache so a bounded heal fetch
		// still yields a full-range chart.
		bars, err := s.storage.Bars().GetRange(ctx, symbol.ID, from, to)
		if err != nil {
			return nil, fmt.Errorf("re-read historical cache for %s: %w", ticker, err)
		}
		if len(bars) == 0 {
			bars = series
		}
		return s.buildStockData(symbol, bars, quote, source), nil
	}

	// Total provider failure: a quote-only source may still refresh the
	// point cache even though it contributes no series.
	quote, quoteSource := s.quoteFallback(ctx, symbol, ticker)

	partial, err := s.storage.Bars().GetRange(ctx, symbol.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("read historical cache for %s: %w", ticker, err)
	}
	if len(partial) > 0 {
		s.logger.Warn().
			Str("ticker", ticker).
			Int("bars", len(partial)).
			Msg("All providers empty; serving degraded partial series from cache")
		return s.buildStockData(symbol, partial, quote, models.SourceCache), nil
	}
	if quote != nil {
		s.logger.Warn().Str("ticker", ticker).Str("source", quoteSource).Msg("No series anywhere; serving quote-only response")
		sd := s.emptyStockData(symbol, quoteSource)
		sd.CurrentPrice = quote.Price
		return sd, nil
	}

	s.logger.Error().Str("ticker", ticker).Msg("No data available from any provider or cache")
	return s.emptyStockData(symbol, models.SourceError), nil
}

// escalateHistory tries each provider in priority order until one returns a
// non-empty history, then reconciles the series into the historical cache.
// Provider errors and timeouts are absorbed as empty results.
func (s *Service) escalateHistory(ctx context.Context, symbol *models.Symbol, from, to time.Time) ([]models.DailyBar, string, error) {
	for _, provider := range s.providers {
		pctx, cancel := context.WithTimeout(ctx, s.providerTimeout)
		raw, err := provider.FetchHistory(pctx, symbol.Ticker, from, to)
		cancel()

		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("ticker", symbol.Ticker).
				Str("provider", provider.Name()).
				Msg("Provider history fetch failed; falling through")
			continue
		}
		if len(raw) == 0 {
			s.logger.Debug().
				Str("ticker", symbol.Ticker).
				Str("provider", provider.Name()).
				Msg("Provider returned empty history; falling through")
			continue
		}

		series, err := s.reconcileSeries(ctx, symbol, raw, provider.Name())
		if err != nil {
			return nil, "", err
		}
		s.logger.Info().
			Str("ticker", symbol.Ticker).
			Str("provider", provider.Name()).
			Int("bars", len(series)).
			Msg("Provider history cached")
		return series, provider.Name(), nil
	}
	return nil, "", nil
}

// reconcileSeries normalizes a provider series and upserts it into the
// historical cache: weekend bars are dropped regardless of what the
// provider claims, and a good existing volume is never clobbered by a
// zero-volume snapshot for the same day.
func (s *Service) reconcileSeries(ctx context.Context, symbol *models.Symbol, raw []models.ProviderBar, source string) ([]models.DailyBar, error) {
	today := common.TradingDate(s.now())

	existing, err := s.storage.Bars().GetRange(ctx, symbol.ID, today, today)
	if err != nil {
		return nil, fmt.Errorf("read today's bar for %s: %w", symbol.Ticker, err)
	}
	var todayBar *models.DailyBar
	if len(existing) > 0 {
		todayBar = &existing[0]
	}

	bars := make([]models.DailyBar, 0, len(raw))
	for _, r := range raw {
		date := common.TradingDate(r.Date)
		if !common.IsTradingDay(date) {
			s.logger.Warn().
				Str("ticker", symbol.Ticker).
				Str("date", common.DateKey(date)).
				Str("provider", source).
				Msg("Provider supplied a weekend bar; dropped")
			continue
		}

		if todayBar != nil && date.Equal(today) {
			if todayBar.Volume == 0 && r.Volume > 0 {
				// Sanctioned in-place correction: providers sometimes emit
				// an incomplete intraday snapshot with zero volume before
				// the day's data settles.
				s.logger.Info().
					Str("ticker", symbol.Ticker).
					Int64("volume", r.Volume).
					Msg("Correcting zero-volume bar for today in place")
			} else if todayBar.Volume > 0 && r.Volume == 0 {
				s.logger.Warn().
					Str("ticker", symbol.Ticker).
					Msg("Ignoring zero-volume snapshot for today; cache already has settled volume")
				continue
			}
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
		return nil, nil
	}
	if err := s.storage.Bars().UpsertMany(ctx, bars); err != nil {
		return nil, fmt.Errorf("upsert series for %s: %w", symbol.Ticker, err)
	}
	return bars, nil
}

// RefreshPointCacheFromClose keeps the point cache warm while serving from
// the historical cache: when the stored quote is stale or absent, the latest
// known close is written in its place, avoiding an extra provider
// round-trip. The coupling to the historical path is deliberate; it is
// exposed as a named call so it stays visible and testable in isolation.
// Returns the quote the caller should overlay on the response.
func (s *Service) RefreshPointCacheFromClose(ctx context.Context, symbol *models.Symbol, latest models.DailyBar) *models.PointQuote {
	existing, err := s.storage.Quotes().Get(ctx, symbol.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("ticker", symbol.Ticker).Msg("Point cache read failed during opportunistic refresh")
		return nil
	}
	if existing != nil && common.IsFreshAt(s.now(), existing.ObservedAt, common.FreshnessPointQuote) {
		return existing
	}

	quote := &models.PointQuote{
		SymbolID:   symbol.ID,
		Price:      latest.Close,
		ObservedAt: s.now(),
		Source:     models.SourceCache,
	}
	if err := s.storage.Quotes().Put(ctx, quote); err != nil {
		s.logger.Warn().Err(err).Str("ticker", symbol.Ticker).Msg("Point cache refresh failed")
		return existing
	}
	return quote
}

// pointQuoteFromProviders writes the freshest available point into the point
// cache after a successful history fetch: the serving provider's live quote
// when it has one, otherwise the last close of the fetched series.
func (s *Service) pointQuoteFromProviders(ctx context.Context, symbol *models.Symbol, ticker, source string, latest models.DailyBar) *models.PointQuote {
	price := latest.Close
	for _, provider := range s.providers {
		if provider.Name() != source {
			continue
		}
		pctx, cancel := context.WithTimeout(ctx, s.providerTimeout)
		q, err := provider.FetchQuote(pctx, ticker)
		cancel()
		if err == nil && !q.IsZero() {
			price = q.Price
		}
		break
	}

	quote := &models.PointQuote{
		SymbolID:   symbol.ID,
		Price:      price,
		ObservedAt: s.now(),
		Source:     source,
	}
	if err := s.storage.Quotes().Put(ctx, quote); err != nil {
		s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Point cache write failed after provider fetch")
	}
	return quote
}

// quoteFallback walks the providers for a bare price when none produced a
// series. Returns the written quote and its source, or nil.
func (s *Service) quoteFallback(ctx context.Context, symbol *models.Symbol, ticker string) (*models.PointQuote, string) {
	for _, provider := range s.providers {
		pctx, cancel := context.WithTimeout(ctx, s.providerTimeout)
		q, err := provider.FetchQuote(pctx, ticker)
		cancel()
		if err != nil {
			s.logger.Warn().Err(err).Str("ticker", ticker).Str("provider", provider.Name()).Msg("Provider quote fetch failed")
			continue
		}
		if q.IsZero() {
			continue
		}

		quote := &models.PointQuote{
			SymbolID:   symbol.ID,
			Price:      q.Price,
			ObservedAt: s.now(),
			Source:     provider.Name(),
		}
		if err := s.storage.Quotes().Put(ctx, quote); err != nil {
			s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Point cache write failed during quote fallback")
		}
		return quote, provider.Name()
	}
	return nil, ""
}

// buildStockData assembles the uniform response shape from an ascending
// series and an optional point-quote overlay.
func (s *Service) buildStockData(symbol *models.Symbol, bars []models.DailyBar, quote *models.PointQuote, source string) *models.StockData {
	sd := &models.StockData{
		Symbol:     symbol.Ticker,
		Name:       symbol.DisplayName,
		DataSource: source,
		ChartData:  buildChartData(bars),
	}

	if len(bars) > 0 {
		latest := bars[len(bars)-1]
		sd.CurrentPrice = latest.Close
		sd.Volume = latest.Volume
		sd.High = latest.High
		sd.Low = latest.Low
		sd.Open = latest.Open
	}
	if quote != nil && quote.Price > 0 {
		sd.CurrentPrice = quote.Price
	}

	// Change is measured against the previous trading day's close.
	if len(bars) >= 2 {
		prevClose := bars[len(bars)-2].Close
		sd.Change = sd.CurrentPrice - prevClose
		if prevClose > 0 {
			sd.ChangePercent = (sd.Change / prevClose) * 100
		}
	}

	return sd
}

// emptyStockData is the terminal "no data" record: display-empty arrays and
// an explicit source marker, never an error the caller has to catch.
func (s *Service) emptyStockData(symbol *models.Symbol, source string) *models.StockData {
	return &models.StockData{
		Symbol:     symbol.Ticker,
		Name:       symbol.DisplayName,
		DataSource: source,
		ChartData: models.ChartData{
			Labels: []string{},
			Open:   []float64{},
			High:   []float64{},
			Low:    []float64{},
			Close:  []float64{},
			Volume: []int64{},
		},
	}
}

func buildChartData(bars []models.DailyBar) models.ChartData {
	cd := models.ChartData{
		Labels: make([]string, len(bars)),
		Open:   make([]float64, len(bars)),
		High:   make([]float64, len(bars)),
		Low:    make([]float64, len(bars)),
		Close:  make([]float64, len(bars)),
		Volume: make([]int64, len(bars)),
	}
	for i, b := range bars {
		cd.Labels[i] = common.DateKey(b.Date)
		cd.Open[i] = b.Open
		cd.High[i] = b.High
		cd.Low[i] = b.Low
		cd.Close[i] = b.Close
		cd.Volume[i] = b.Volume
	}
	return cd
}

// Ensure Service implements StockService
var _ interfaces.StockService = (*Service)(nil)
