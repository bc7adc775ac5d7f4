package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/levfolio/levfolio/internal/common"
	"github.com/levfolio/levfolio/internal/models"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	// Symbols
	mux.HandleFunc("/api/symbols", s.handleSymbols)

	// Stock data
	mux.HandleFunc("/api/stocks/", s.routeStocks)
	mux.HandleFunc("/api/stocks", s.handleStockBatch)

	// Maintenance
	mux.HandleFunc("/api/maintenance", s.handleMaintenance)
}

// routeStocks dispatches /api/stocks/{ticker} and /api/stocks/{ticker}/chart.
func (s *Server) routeStocks(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/stocks/")
	if path == "" {
		WriteError(w, http.StatusBadRequest, "ticker is required in path")
		return
	}

	if ticker, ok := strings.CutSuffix(path, "/chart"); ok {
		s.handleStockChart(w, r, ticker)
		return
	}
	s.handleStockGet(w, r, path)
}

// --- System handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down gracefully...\n"))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}

// --- Symbol handlers ---

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	symbols, err := s.app.Storage.Symbols().List(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Symbol list failed")
		WriteError(w, http.StatusInternalServerError, "Failed to list symbols")
		return
	}
	if symbols == nil {
		symbols = []*models.Symbol{}
	}
	WriteJSON(w, http.StatusOK, symbols)
}

// --- Stock data handlers ---

// handleStockBatch handles POST /api/stocks: the batch request the dashboard
// issues on load.
func (s *Server) handleStockBatch(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.StockRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := s.app.StockService.GetStockBatch(r.Context(), &req)
	if err != nil {
		s.logger.Error().Err(err).Msg("Stock batch failed")
		WriteError(w, http.StatusInternalServerError, "Failed to resolve stock data")
		return
	}
	WriteJSON(w, http.StatusOK, results)
}

// handleStockGet handles GET /api/stocks/{ticker}?range=1m&forceRefresh=true.
func (s *Server) handleStockGet(w http.ResponseWriter, r *http.Request, ticker string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	timeRange, err := parseRangeParam(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	forceRefresh := r.URL.Query().Get("forceRefresh") == "true"

	sd, err := s.app.StockService.GetStock(r.Context(), ticker, timeRange, forceRefresh)
	if err != nil {
		s.logger.Error().Err(err).Str("ticker", ticker).Msg("Stock lookup failed")
		WriteError(w, http.StatusInternalServerError, "Failed to resolve stock data")
		return
	}
	WriteJSON(w, http.StatusOK, sd)
}

// handleStockChart handles GET /api/stocks/{ticker}/chart?range=3m.
func (s *Server) handleStockChart(w http.ResponseWriter, r *http.Request, ticker string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	timeRange, err := parseRangeParam(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	png, err := s.app.StockService.RenderChartPNG(r.Context(), ticker, timeRange)
	if err != nil {
		s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Chart render failed")
		WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func parseRangeParam(r *http.Request) (models.TimeRange, error) {
	raw := r.URL.Query().Get("range")
	if raw == "" {
		return models.Range1M, nil
	}
	return models.ParseTimeRange(raw)
}

// --- Maintenance handlers ---

// handleMaintenance handles POST /api/maintenance. The body is optional: an
// empty body runs the default gap sweep over the configured symbols.
func (s *Server) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	req := models.MaintenanceRequest{}
	if r.ContentLength > 0 {
		if !DecodeJSON(w, r, &req) {
			return
		}
	}

	if req.Action == "" {
		req.Action = models.ActionMaintain
	}
	if len(req.Symbols) == 0 {
		req.Symbols = s.app.Config.Symbols
	}
	if req.LookbackDays <= 0 {
		req.LookbackDays = s.app.Config.Maintenance.LookbackDays
	}
	if req.ForceRefreshDays <= 0 {
		req.ForceRefreshDays = s.app.Config.Maintenance.ForceRefreshDay
	}

	var (
		report *models.MaintenanceReport
		err    error
	)
	switch req.Action {
	case models.ActionMaintain:
		report, err = s.app.MaintenanceService.Maintain(r.Context(), req.Symbols, req.LookbackDays)
	case models.ActionForceRefresh:
		report, err = s.app.MaintenanceService.ForceRefresh(r.Context(), req.Symbols, req.ForceRefreshDays)
	default:
		WriteError(w, http.StatusBadRequest, "unknown action: "+req.Action)
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("action", req.Action).Msg("Maintenance run failed")
		WriteError(w, http.StatusInternalServerError, "Maintenance run failed")
		return
	}
	WriteJSON(w, http.StatusOK, report)
}
