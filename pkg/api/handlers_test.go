package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzzdr/vol-analytics-engine/internal/analytics"
	"github.com/rzzdr/vol-analytics-engine/internal/store"
	"github.com/rzzdr/vol-analytics-engine/pkg/metrics"
	"github.com/rzzdr/vol-analytics-engine/pkg/models"
)

func newTestServerWith(t *testing.T, mutate func(*HandlersConfig, *Config)) (*Server, *store.PriceHistoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pricer := analytics.NewBlackScholesEngine()
	smile := analytics.NewSmileBuilder()
	history := store.NewPriceHistoryStore(0)
	recorder := metrics.NewRecorderWith(prometheus.NewRegistry())

	handlersConfig := HandlersConfig{
		Pricer:      pricer,
		Simulator:   analytics.NewMonteCarloEngine(analytics.MonteCarloConfig{}),
		Estimator:   analytics.NewVolatilityEstimator(252),
		Detector:    analytics.NewMispricingDetector(analytics.DetectorConfig{Threshold: 0.05}),
		Smile:       smile,
		Chains:      analytics.NewChainAnalyzer(pricer, smile),
		History:     history,
		Recorder:    recorder,
		DefaultRate: 0.05,
	}
	serverConfig := Config{Host: "127.0.0.1", Port: 0}
	if mutate != nil {
		mutate(&handlersConfig, &serverConfig)
	}

	server := NewServer(serverConfig, CreateHandlers(handlersConfig), nil, recorder)
	return server, history
}

func newTestServer(t *testing.T) (*Server, *store.PriceHistoryStore) {
	return newTestServerWith(t, nil)
}

func doJSON(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	w := doJSON(t, server, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestPriceEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	w := doJSON(t, server, http.MethodPost, "/api/v1/analytics/price", gin.H{
		"spot":           100,
		"strike":         100,
		"time_to_expiry": 1,
		"volatility":     0.2,
		"option_type":    "call",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Price  float64             `json:"price"`
		Greeks models.GreeksVector `json:"greeks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	// Rate defaults to the configured 5%.
	assert.InDelta(t, 10.4506, resp.Price, 1e-3)
	assert.InDelta(t, 0.6368, resp.Greeks.Delta, 1e-3)
}

func TestPriceEndpointRejectsBadInput(t *testing.T) {
	server, _ := newTestServer(t)

	tests := []struct {
		name string
		body gin.H
	}{
		{name: "zero spot", body: gin.H{"spot": 0, "strike": 100, "time_to_expiry": 1, "volatility": 0.2, "option_type": "call"}},
		{name: "bad option type", body: gin.H{"spot": 100, "strike": 100, "time_to_expiry": 1, "volatility": 0.2, "option_type": "strangle"}},
		{name: "expired", body: gin.H{"spot": 100, "strike": 100, "time_to_expiry": -1, "volatility": 0.2, "option_type": "put"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, server, http.MethodPost, "/api/v1/analytics/price", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestSimulateEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	w := doJSON(t, server, http.MethodPost, "/api/v1/analytics/simulate", gin.H{
		"spot":           100,
		"strike":         100,
		"time_to_expiry": 0.5,
		"volatility":     0.2,
		"option_type":    "call",
		"paths":          30000,
		"seed":           42,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result models.SimulationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 30000, result.Paths)
	assert.Equal(t, int64(42), result.Seed)
	assert.False(t, result.LowConfidence)
	assert.Greater(t, result.MeanPayoff, 0.0)
}

func TestSimulateEndpointConfiguredDefaults(t *testing.T) {
	server, _ := newTestServerWith(t, func(hc *HandlersConfig, _ *Config) {
		hc.DefaultPaths = 5000
		hc.DefaultSeed = 7
	})

	// No paths or seed in the request; the configured defaults apply.
	w := doJSON(t, server, http.MethodPost, "/api/v1/analytics/simulate", gin.H{
		"spot":           100,
		"strike":         100,
		"time_to_expiry": 0.5,
		"volatility":     0.2,
		"option_type":    "call",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result models.SimulationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 5000, result.Paths)
	assert.Equal(t, int64(7), result.Seed)
	assert.True(t, result.LowConfidence)
}

func TestMetricsEndpointGatedByConfig(t *testing.T) {
	enabled, _ := newTestServerWith(t, func(_ *HandlersConfig, sc *Config) {
		sc.MetricsEnabled = true
	})
	w := doJSON(t, enabled, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	disabled, _ := newTestServer(t)
	w = doJSON(t, disabled, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHistoricalVolEndpointInlineCloses(t *testing.T) {
	server, _ := newTestServer(t)

	w := doJSON(t, server, http.MethodPost, "/api/v1/analytics/hv", gin.H{
		"closes": []float64{100, 110, 100},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Greater(t, resp["historical_vol"].(float64), 0.0)
}

func TestHistoricalVolEndpointFromStore(t *testing.T) {
	server, history := newTestServer(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, close := range []float64{100, 102, 101, 104} {
		history.Append("TEST", models.PricePoint{Date: base.AddDate(0, 0, i), Close: close})
	}

	w := doJSON(t, server, http.MethodPost, "/api/v1/analytics/hv", gin.H{"symbol": "TEST"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, server, http.MethodPost, "/api/v1/analytics/hv", gin.H{"symbol": "MISSING"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHistoricalVolEndpointTooShort(t *testing.T) {
	server, _ := newTestServer(t)

	w := doJSON(t, server, http.MethodPost, "/api/v1/analytics/hv", gin.H{
		"closes": []float64{100},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSignalEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	w := doJSON(t, server, http.MethodPost, "/api/v1/analytics/signal", gin.H{
		"spot":           100,
		"strike":         100,
		"time_to_expiry": 0.5,
		"volatility":     0.45,
		"option_type":    "call",
		"market_price":   13.2,
		"closes":         []float64{100, 100.4, 100.1, 100.6, 100.3},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var signal models.MispricingSignal
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &signal))
	assert.Equal(t, "OVERPRICED", signal.Report.Regime.String())
	assert.InDelta(t, 0.45, signal.Report.ImpliedVol, 1e-12)
}

func TestSmileEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	w := doJSON(t, server, http.MethodPost, "/api/v1/analytics/smile", gin.H{
		"points": []gin.H{
			{"strike": 110, "impliedVol": 0.22},
			{"strike": 90, "impliedVol": 0.31},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var curve models.SmileCurve
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &curve))
	require.Len(t, curve.Points, 2)
	assert.Equal(t, 90.0, curve.Points[0].Strike)
}

func TestSmileEndpointDuplicateStrike(t *testing.T) {
	server, _ := newTestServer(t)

	w := doJSON(t, server, http.MethodPost, "/api/v1/analytics/smile", gin.H{
		"points": []gin.H{
			{"strike": 100, "impliedVol": 0.22},
			{"strike": 100, "impliedVol": 0.31},
		},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChainEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	asOf := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	expiry := asOf.AddDate(0, 3, 0)

	w := doJSON(t, server, http.MethodPost, "/api/v1/analytics/chain", gin.H{
		"spot":         100,
		"fallback_vol": 0.2,
		"as_of":        asOf,
		"quotes": []models.OptionQuote{
			{UnderlyingSymbol: "TEST", Strike: 95, ExpiryDate: expiry, OptionType: "call", ImpliedVolatility: 0.28, LastPrice: 8.1},
			{UnderlyingSymbol: "TEST", Strike: 105, ExpiryDate: expiry, OptionType: "call", ImpliedVolatility: 0.24, LastPrice: 2.9},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var analysis models.ChainAnalysis
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &analysis))
	require.Len(t, analysis.Rows, 2)
	assert.Equal(t, 95.0, analysis.Rows[0].Strike)
	assert.Len(t, analysis.Smile.Points, 2)
}

func TestHistoryEndpoints(t *testing.T) {
	server, history := newTestServer(t)

	history.Append("TEST", models.PricePoint{
		Date:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Close: 100,
	})

	w := doJSON(t, server, http.MethodGet, "/api/v1/history/TEST", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, server, http.MethodGet, "/api/v1/history/MISSING", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, server, http.MethodGet, "/api/v1/symbols", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Symbols []string `json:"symbols"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"TEST"}, resp.Symbols)
}
