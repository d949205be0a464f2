package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rzzdr/vol-analytics-engine/internal/analytics"
	"github.com/rzzdr/vol-analytics-engine/internal/marketdata"
	"github.com/rzzdr/vol-analytics-engine/internal/store"
	"github.com/rzzdr/vol-analytics-engine/internal/stream"
	"github.com/rzzdr/vol-analytics-engine/pkg/metrics"
	"github.com/rzzdr/vol-analytics-engine/pkg/models"
	"github.com/rzzdr/vol-analytics-engine/pkg/utils/errors"
	"github.com/rzzdr/vol-analytics-engine/pkg/utils/logger"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	pricer      *analytics.BlackScholesEngine
	simulator   *analytics.MonteCarloEngine
	estimator   *analytics.VolatilityEstimator
	detector    *analytics.MispricingDetector
	smile       *analytics.SmileBuilder
	chains      *analytics.ChainAnalyzer
	history      *store.PriceHistoryStore
	hub          *stream.Hub
	recorder     *metrics.Recorder
	defaultRate  float64
	defaultPaths int
	defaultSeed  int64
	log          *logger.Logger
}

// HandlersConfig wires the analytics engines into the HTTP surface.
// Hub may be nil; signals are then served over HTTP only.
type HandlersConfig struct {
	Pricer      *analytics.BlackScholesEngine
	Simulator   *analytics.MonteCarloEngine
	Estimator   *analytics.VolatilityEstimator
	Detector    *analytics.MispricingDetector
	Smile       *analytics.SmileBuilder
	Chains      *analytics.ChainAnalyzer
	History     *store.PriceHistoryStore
	Hub         *stream.Hub
	Recorder    *metrics.Recorder
	DefaultRate float64
	// DefaultPaths is used when a simulate request omits the path count.
	DefaultPaths int
	// DefaultSeed pins simulate requests that carry no seed; zero means
	// every unseeded run draws a fresh seed.
	DefaultSeed int64
}

// CreateHandlers creates new API handlers
func CreateHandlers(config HandlersConfig) *Handlers {
	if config.DefaultPaths <= 0 {
		config.DefaultPaths = 25000
	}
	return &Handlers{
		pricer:       config.Pricer,
		simulator:    config.Simulator,
		estimator:    config.Estimator,
		detector:     config.Detector,
		smile:        config.Smile,
		chains:       config.Chains,
		history:      config.History,
		hub:          config.Hub,
		recorder:     config.Recorder,
		defaultRate:  config.DefaultRate,
		defaultPaths: config.DefaultPaths,
		defaultSeed:  config.DefaultSeed,
		log:          logger.GetLogger("api.handlers"),
	}
}

// HealthCheckHandler handles health check requests
func (h *Handlers) HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	})
}

// snapshotRequest is the common pricing input. Rate falls back to the
// configured risk-free rate when omitted.
type snapshotRequest struct {
	Spot         float64  `json:"spot"`
	Strike       float64  `json:"strike"`
	TimeToExpiry float64  `json:"time_to_expiry"`
	Rate         *float64 `json:"rate"`
	Volatility   float64  `json:"volatility"`
	OptionType   string   `json:"option_type"`
}

func (h *Handlers) snapshotFromRequest(req snapshotRequest) (models.MarketSnapshot, error) {
	optType, err := models.ParseOptionType(req.OptionType)
	if err != nil {
		return models.MarketSnapshot{}, err
	}

	rate := h.defaultRate
	if req.Rate != nil {
		rate = *req.Rate
	}

	return models.NewMarketSnapshot(req.Spot, req.Strike, req.TimeToExpiry, rate, req.Volatility, optType)
}

// PriceHandler returns the fair value and Greeks for one contract
func (h *Handlers) PriceHandler(c *gin.Context) {
	var req snapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	snap, err := h.snapshotFromRequest(req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	start := time.Now()
	price, greeks, err := h.pricer.PriceAndGreeks(snap)
	h.recorder.RecordPricing(snap.OptionType.String(), err, time.Since(start))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"price":  price,
		"greeks": greeks,
	})
}

type simulateRequest struct {
	snapshotRequest
	Paths int    `json:"paths"`
	Seed  *int64 `json:"seed"`
}

// SimulateHandler runs a terminal-price Monte Carlo estimate
func (h *Handlers) SimulateHandler(c *gin.Context) {
	var req simulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	snap, err := h.snapshotFromRequest(req.snapshotRequest)
	if err != nil {
		h.respondError(c, err)
		return
	}

	paths := req.Paths
	if paths <= 0 {
		paths = h.defaultPaths
	}
	seed := req.Seed
	if seed == nil && h.defaultSeed != 0 {
		pinned := h.defaultSeed
		seed = &pinned
	}

	start := time.Now()
	result, err := h.simulator.Simulate(snap, paths, seed)
	h.recorder.RecordSimulation(snap.OptionType.String(), paths, err, time.Since(start))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type simulatePathsRequest struct {
	snapshotRequest
	Steps int    `json:"steps"`
	Paths int    `json:"paths"`
	Seed  *int64 `json:"seed"`
}

// SimulatePathsHandler returns full simulated price paths, for chart
// rendering rather than estimation
func (h *Handlers) SimulatePathsHandler(c *gin.Context) {
	var req simulatePathsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	snap, err := h.snapshotFromRequest(req.snapshotRequest)
	if err != nil {
		h.respondError(c, err)
		return
	}

	paths, err := h.simulator.SimulatePaths(snap, req.Steps, req.Paths, req.Seed)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, paths)
}

type hvRequest struct {
	Symbol string    `json:"symbol"`
	Closes []float64 `json:"closes"`
	Window int       `json:"window"`
}

// HistoricalVolHandler computes annualized realized volatility from a
// close series, either inline or looked up from the price store
func (h *Handlers) HistoricalVolHandler(c *gin.Context) {
	var req hvRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	closes := req.Closes
	if len(closes) == 0 && req.Symbol != "" {
		points, err := h.history.History(req.Symbol)
		if err != nil {
			h.respondError(c, err)
			return
		}
		closes, err = marketdata.ClosesFromHistory(points)
		if err != nil {
			h.respondError(c, err)
			return
		}
	}

	hv, err := h.estimator.HistoricalVolatility(closes)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := gin.H{"historical_vol": hv, "observations": len(closes)}
	if req.Window > 0 {
		rolling, err := h.estimator.RollingHistoricalVolatility(closes, req.Window)
		if err != nil {
			h.respondError(c, err)
			return
		}
		resp["rolling"] = rolling
		resp["window"] = req.Window
	}

	c.JSON(http.StatusOK, resp)
}

type signalRequest struct {
	snapshotRequest
	Symbol      string    `json:"symbol"`
	MarketPrice float64   `json:"market_price"`
	Closes      []float64 `json:"closes"`
}

// SignalHandler classifies the volatility regime for one contract. The
// snapshot volatility is treated as the implied volatility; realized
// volatility comes from the inline closes or the price store.
func (h *Handlers) SignalHandler(c *gin.Context) {
	var req signalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	snap, err := h.snapshotFromRequest(req.snapshotRequest)
	if err != nil {
		h.respondError(c, err)
		return
	}

	closes := req.Closes
	if len(closes) == 0 && req.Symbol != "" {
		points, err := h.history.History(req.Symbol)
		if err != nil {
			h.respondError(c, err)
			return
		}
		closes, err = marketdata.ClosesFromHistory(points)
		if err != nil {
			h.respondError(c, err)
			return
		}
	}

	hv, err := h.estimator.HistoricalVolatility(closes)
	if err != nil {
		h.respondError(c, err)
		return
	}

	modelPrice, err := h.pricer.Price(snap)
	if err != nil {
		h.respondError(c, err)
		return
	}

	signal, err := h.detector.Detect(snap.Volatility, hv, modelPrice, req.MarketPrice)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.recorder.RecordSignal(signal.Report.Regime.String(), signal.Report.Spread)
	if h.hub != nil && req.Symbol != "" {
		h.hub.BroadcastSignal(req.Symbol, signal)
	}

	c.JSON(http.StatusOK, signal)
}

type smileRequest struct {
	Points []models.SmilePoint `json:"points"`
}

// SmileHandler assembles a volatility smile from (strike, iv) points
func (h *Handlers) SmileHandler(c *gin.Context) {
	var req smileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	curve, err := h.smile.Build(req.Points)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, curve)
}

type chainRequest struct {
	Quotes      []models.OptionQuote `json:"quotes"`
	Spot        float64              `json:"spot"`
	Rate        *float64             `json:"rate"`
	FallbackVol float64              `json:"fallback_vol"`
	AsOf        *time.Time           `json:"as_of"`
}

// ChainHandler runs the per-strike model comparison for one expiry
func (h *Handlers) ChainHandler(c *gin.Context) {
	var req chainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	rate := h.defaultRate
	if req.Rate != nil {
		rate = *req.Rate
	}
	asOf := time.Now().UTC()
	if req.AsOf != nil {
		asOf = *req.AsOf
	}

	analysis, err := h.chains.Analyze(req.Quotes, req.Spot, rate, req.FallbackVol, asOf)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, analysis)
}

// GetHistoryHandler returns the stored price series for a symbol
func (h *Handlers) GetHistoryHandler(c *gin.Context) {
	symbol := c.Param("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}

	points, err := h.history.History(symbol)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "points": points})
}

// GetSymbolsHandler lists symbols with stored price history
func (h *Handlers) GetSymbolsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"symbols": h.history.Symbols()})
}

// respondError maps the error taxonomy onto HTTP statuses
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch errors.KindOf(err) {
	case errors.KindInvalidInput, errors.KindDuplicateStrike:
		status = http.StatusBadRequest
	case errors.KindInsufficientData, errors.KindNumericalInstability:
		status = http.StatusUnprocessableEntity
	case errors.KindNotFound:
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		h.log.Errorf("request failed: %v", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
