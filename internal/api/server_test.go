package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"binance-signal-monitor/internal/binance"
	"binance-signal-monitor/internal/indicators"
	"binance-signal-monitor/internal/marketdata"
	"binance-signal-monitor/internal/monitor"
	"binance-signal-monitor/internal/simulator"
)

type staticProvider struct{}

func (staticProvider) GetCandles(_ context.Context, req marketdata.DataRequest) (*marketdata.CandleSeries, error) {
	return &marketdata.CandleSeries{Symbol: req.Symbol, Interval: req.Interval}, nil
}

func newTestServer(t *testing.T) (*Server, *monitor.Monitor, *simulator.Simulator) {
	t.Helper()

	cfg := monitor.DefaultConfig()
	cfg.Symbols = []string{"BTCUSDT", "ETHUSDT"}

	sim := simulator.New(simulator.DefaultConfig(), nil)
	mon, err := monitor.New(cfg, monitor.Deps{
		Provider:  staticProvider{},
		Engine:    indicators.NewEngine(indicators.DefaultConfig()),
		Simulator: sim,
	})
	require.NoError(t, err)

	srv := New(Config{ListenAddr: ":0"}, mon, sim, nil, nil)
	return srv, mon, sim
}

func doRequest(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthReflectsState(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "STOPPED", body["state"])
}

func TestStatusEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Monitoring monitor.MonitoringStatus `json:"monitoring"`
		Simulator  simulator.Stats          `json:"simulator"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Monitoring.Symbols, 2)
	assert.Equal(t, 10000.0, body.Simulator.CurrentBalance)
}

func TestSymbolEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/symbols/BTCUSDT")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/symbols/NOPEUSDT")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPauseResumeEndpoints(t *testing.T) {
	srv, mon, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/symbols/BTCUSDT/pause")
	assert.Equal(t, http.StatusOK, rec.Code)

	status, ok := mon.SymbolStatus("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, monitor.SymbolPaused, status.State)

	// Pausing twice conflicts
	rec = doRequest(t, srv, http.MethodPost, "/api/symbols/BTCUSDT/pause")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/symbols/BTCUSDT/resume")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPositionsEndpoint(t *testing.T) {
	srv, _, sim := newTestServer(t)

	require.True(t, sim.OpenPosition(simulator.OpenRequest{
		Symbol: "BTCUSDT", Side: indicators.SideLong,
		EntryPrice: 100, Quantity: 1, StopLoss: 99, TakeProfit: 102,
	}))

	rec := doRequest(t, srv, http.MethodGet, "/api/positions")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Open  []simulator.OpenPositionSummary `json:"open"`
		Stats simulator.Stats                 `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Open, 1)
	assert.Equal(t, "BTCUSDT", body.Open[0].Symbol)
	assert.Equal(t, 1, body.Stats.OpenPositions)
}

func TestTradesEndpointWithoutStore(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/trades")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/trades/summary")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAlertsAndPerformanceEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/alerts")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/performance")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/ratelimit")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCacheStatsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	// No cache wired: 503
	rec := doRequest(t, srv, http.MethodGet, "/api/cache/stats")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type staticPrices map[string]binance.TickerPrice

func (p staticPrices) PriceSnapshot() map[string]binance.TickerPrice { return p }

func TestPricesEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	// No stream wired: 503
	rec := doRequest(t, srv, http.MethodGet, "/api/prices")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	srv.SetPriceSource(staticPrices{
		"BTCUSDT": {Symbol: "BTCUSDT", Price: 65000.5},
	})
	rec = doRequest(t, srv, http.MethodGet, "/api/prices")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count  int                            `json:"count"`
		Prices map[string]binance.TickerPrice `json:"prices"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, 65000.5, body.Prices["BTCUSDT"].Price)
}
