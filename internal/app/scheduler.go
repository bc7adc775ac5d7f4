package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/levfolio/levfolio/internal/models"
)

// StartScheduler starts the background maintenance jobs: the cron-scheduled
// nightly gap sweep and the interval price refresh that keeps the point cache
// warm during market hours.
func (a *App) StartScheduler() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.schedulerCancel = cancel

	c := cron.New(cron.WithSeconds())
	_, err := c.AddFunc(a.Config.Maintenance.Schedule, func() {
		a.runSweep(ctx)
	})
	if err != nil {
		cancel()
		return err
	}
	c.Start()
	a.cron = c

	go a.runPriceRefresher(ctx, a.Config.Maintenance.GetRefreshInterval())

	a.Logger.Info().
		Str("schedule", a.Config.Maintenance.Schedule).
		Dur("refresh_interval", a.Config.Maintenance.GetRefreshInterval()).
		Msg("Scheduler started")
	return nil
}

// StopScheduler stops the cron jobs and the price refresher.
func (a *App) StopScheduler() {
	if a.cron != nil {
		<-a.cron.Stop().Done()
		a.cron = nil
	}
	if a.schedulerCancel != nil {
		a.schedulerCancel()
		a.schedulerCancel = nil
	}
}

// runSweep executes one maintenance pass over the configured symbols.
func (a *App) runSweep(ctx context.Context) {
	report, err := a.MaintenanceService.Maintain(ctx, a.Config.Symbols, a.Config.Maintenance.LookbackDays)
	if err != nil {
		a.Logger.Error().Err(err).Msg("Scheduled sweep failed")
		return
	}
	if report.Failed() > 0 {
		a.Logger.Warn().
			Int("failed", report.Failed()).
			Int("symbols", len(report.Symbols)).
			Msg("Scheduled sweep finished with failures")
	}
}

// runPriceRefresher re-resolves the configured symbols on a fixed interval.
// Resolving through the normal pipeline refreshes the point cache and heals
// recent bars as a side effect; no dedicated refresh path is needed.
func (a *App) runPriceRefresher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.Logger.Info().Msg("Price refresher: stopped")
			return
		case <-ticker.C:
			a.refreshPrices(ctx)
		}
	}
}

func (a *App) refreshPrices(ctx context.Context) {
	if len(a.Config.Symbols) == 0 {
		return
	}
	start := time.Now()

	results, err := a.StockService.GetStockBatch(ctx, &models.StockRequest{
		Symbols:          a.Config.Symbols,
		TimeRange:        string(models.Range1M),
		RefreshDailyOnly: true,
	})
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Price refresh: batch failed")
		return
	}

	degraded := 0
	for _, sd := range results {
		if sd.DataSource == models.SourceError {
			degraded++
		}
	}
	a.Logger.Info().
		Int("symbols", len(results)).
		Int("degraded", degraded).
		Dur("elapsed", time.Since(start)).
		Msg("Price refresh: complete")
}
