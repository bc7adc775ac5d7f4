package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/levfolio/levfolio/internal/app"
	"github.com/levfolio/levfolio/internal/common"
	"github.com/levfolio/levfolio/internal/interfaces"
	"github.com/levfolio/levfolio/internal/models"
)

type stubStockService struct {
	batchResult []*models.StockData
	batchErr    error
	single      *models.StockData
	singleErr   error
	png         []byte
	pngErr      error

	lastBatchReq *models.StockRequest
	lastTicker   string
	lastRange    models.TimeRange
	lastForce    bool
}

func (s *stubStockService) GetStockBatch(ctx context.Context, req *models.StockRequest) ([]*models.StockData, error) {
	s.lastBatchReq = req
	return s.batchResult, s.batchErr
}

func (s *stubStockService) GetStock(ctx context.Context, ticker string, timeRange models.TimeRange, forceRefresh bool) (*models.StockData, error) {
	s.lastTicker, s.lastRange, s.lastForce = ticker, timeRange, forceRefresh
	return s.single, s.singleErr
}

func (s *stubStockService) RenderChartPNG(ctx context.Context, ticker string, timeRange models.TimeRange) ([]byte, error) {
	s.lastTicker, s.lastRange = ticker, timeRange
	return s.png, s.pngErr
}

type stubMaintenanceService struct {
	report *models.MaintenanceReport
	err    error

	lastAction   string
	lastTickers  []string
	lastLookback int
	lastDays     int
}

func (s *stubMaintenanceService) Maintain(ctx context.Context, tickers []string, lookbackDays int) (*models.MaintenanceReport, error) {
	s.lastAction, s.lastTickers, s.lastLookback = models.ActionMaintain, tickers, lookbackDays
	return s.report, s.err
}

func (s *stubMaintenanceService) ForceRefresh(ctx context.Context, tickers []string, days int) (*models.MaintenanceReport, error) {
	s.lastAction, s.lastTickers, s.lastDays = models.ActionForceRefresh, tickers, days
	return s.report, s.err
}

type stubSymbolStore struct {
	symbols []*models.Symbol
	err     error
}

func (s *stubSymbolStore) Resolve(ctx context.Context, ticker string) (*models.Symbol, error) {
	return nil, errors.New("not implemented")
}
func (s *stubSymbolStore) Get(ctx context.Context, ticker string) (*models.Symbol, error) {
	return nil, nil
}
func (s *stubSymbolStore) List(ctx context.Context) ([]*models.Symbol, error) {
	return s.symbols, s.err
}

type stubStorage struct {
	symbols *stubSymbolStore
}

func (s *stubStorage) Symbols() interfaces.SymbolStore { return s.symbols }
func (s *stubStorage) Bars() interfaces.BarStore       { return nil }
func (s *stubStorage) Quotes() interfaces.QuoteStore   { return nil }
func (s *stubStorage) Close() error                    { return nil }

func newTestServer(stock *stubStockService, maint *stubMaintenanceService, symbols *stubSymbolStore) *Server {
	if symbols == nil {
		symbols = &stubSymbolStore{}
	}
	a := &app.App{
		Config:             common.NewDefaultConfig(),
		Logger:             common.NewSilentLogger(),
		Storage:            &stubStorage{symbols: symbols},
		StockService:       stock,
		MaintenanceService: maint,
	}
	return NewServer(a)
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(&stubStockService{}, &stubMaintenanceService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleStockBatch(t *testing.T) {
	stock := &stubStockService{
		batchResult: []*models.StockData{
			{Symbol: "TQQQ", DataSource: models.SourceCache},
			{Symbol: "SOXL", DataSource: models.SourceTiingo},
		},
	}
	srv := newTestServer(stock, &stubMaintenanceService{}, nil)

	body, _ := json.Marshal(models.StockRequest{
		Symbols:   []string{"TQQQ", "SOXL"},
		TimeRange: "3m",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/stocks", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var results []models.StockData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "TQQQ", results[0].Symbol)
	assert.Equal(t, "3m", stock.lastBatchReq.TimeRange)
}

func TestHandleStockBatch_InvalidRequest(t *testing.T) {
	srv := newTestServer(&stubStockService{}, &stubMaintenanceService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/stocks", bytes.NewReader([]byte(`{"symbols":[],"timeRange":"1m"}`)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStockBatch_ServiceError(t *testing.T) {
	stock := &stubStockService{batchErr: errors.New("storage down")}
	srv := newTestServer(stock, &stubMaintenanceService{}, nil)

	body := []byte(`{"symbols":["TQQQ"],"timeRange":"1m"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/stocks", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleStockGet(t *testing.T) {
	stock := &stubStockService{
		single: &models.StockData{Symbol: "TQQQ", CurrentPrice: 130.25, DataSource: models.SourceCache},
	}
	srv := newTestServer(stock, &stubMaintenanceService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/stocks/TQQQ?range=6m&forceRefresh=true", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "TQQQ", stock.lastTicker)
	assert.Equal(t, models.Range6M, stock.lastRange)
	assert.True(t, stock.lastForce)
}

func TestHandleStockGet_BadRange(t *testing.T) {
	srv := newTestServer(&stubStockService{}, &stubMaintenanceService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/stocks/TQQQ?range=5y", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStockChart(t *testing.T) {
	stock := &stubStockService{png: []byte("\x89PNG fake")}
	srv := newTestServer(stock, &stubMaintenanceService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/stocks/TQQQ/chart?range=3m", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "TQQQ", stock.lastTicker)
	assert.Equal(t, models.Range3M, stock.lastRange)
}

func TestHandleStockChart_NotEnoughData(t *testing.T) {
	stock := &stubStockService{pngErr: errors.New("not enough data to chart TQQQ (0 points)")}
	srv := newTestServer(stock, &stubMaintenanceService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/stocks/TQQQ/chart", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleMaintenance_DefaultSweep(t *testing.T) {
	maint := &stubMaintenanceService{report: &models.MaintenanceReport{Action: models.ActionMaintain}}
	srv := newTestServer(&stubStockService{}, maint, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/maintenance", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ActionMaintain, maint.lastAction)
	assert.Equal(t, common.NewDefaultConfig().Symbols, maint.lastTickers, "empty body sweeps the configured symbols")
	assert.Equal(t, common.NewDefaultConfig().Maintenance.LookbackDays, maint.lastLookback)
}

func TestHandleMaintenance_ForceRefresh(t *testing.T) {
	maint := &stubMaintenanceService{report: &models.MaintenanceReport{Action: models.ActionForceRefresh}}
	srv := newTestServer(&stubStockService{}, maint, nil)

	body := []byte(`{"action":"force_refresh","symbols":["TQQQ"],"forceRefreshDays":10}`)
	req := httptest.NewRequest(http.MethodPost, "/api/maintenance", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ActionForceRefresh, maint.lastAction)
	assert.Equal(t, []string{"TQQQ"}, maint.lastTickers)
	assert.Equal(t, 10, maint.lastDays)
}

func TestHandleMaintenance_UnknownAction(t *testing.T) {
	srv := newTestServer(&stubStockService{}, &stubMaintenanceService{}, nil)

	body := []byte(`{"action":"vacuum"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/maintenance", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSymbols(t *testing.T) {
	symbols := &stubSymbolStore{symbols: []*models.Symbol{
		{ID: "abc", Ticker: "SOXL"},
		{ID: "def", Ticker: "TQQQ"},
	}}
	srv := newTestServer(&stubStockService{}, &stubMaintenanceService{}, symbols)

	req := httptest.NewRequest(http.MethodGet, "/api/symbols", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var out []models.Symbol
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "SOXL", out[0].Ticker)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(&stubStockService{}, &stubMaintenanceService{}, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/stocks", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "POST", rec.Header().Get("Allow"))
}

func TestShutdownDisabledInProduction(t *testing.T) {
	srv := newTestServer(&stubStockService{}, &stubMaintenanceService{}, nil)
	srv.app.Config.Environment = "production"

	req := httptest.NewRequest(http.MethodPost, "/api/shutdown", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
