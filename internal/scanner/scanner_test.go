package scanner

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzzdr/vol-analytics-engine/internal/analytics"
	"github.com/rzzdr/vol-analytics-engine/internal/store"
	"github.com/rzzdr/vol-analytics-engine/pkg/metrics"
	"github.com/rzzdr/vol-analytics-engine/pkg/models"
)

type capturingPublisher struct {
	keys   []string
	events []models.SignalEvent
}

func (p *capturingPublisher) Publish(ctx context.Context, key []byte, value interface{}) error {
	p.keys = append(p.keys, string(key))
	p.events = append(p.events, value.(models.SignalEvent))
	return nil
}

func newTestScanner(t *testing.T) (*Scanner, *store.PriceHistoryStore, *capturingPublisher) {
	t.Helper()
	history := store.NewPriceHistoryStore(0)
	publisher := &capturingPublisher{}
	scan := NewScanner(
		Config{RiskFreeRate: 0.05},
		analytics.NewBlackScholesEngine(),
		analytics.NewVolatilityEstimator(252),
		analytics.NewMispricingDetector(analytics.DetectorConfig{Threshold: 0.05}),
		history,
		publisher,
		metrics.NewRecorderWith(prometheus.NewRegistry()),
	)
	return scan, history, publisher
}

func seedHistory(history *store.PriceHistoryStore, symbol string, closes []float64) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]models.PricePoint, len(closes))
	for i, c := range closes {
		points[i] = models.PricePoint{Date: base.AddDate(0, 0, i), Close: c}
	}
	history.Replace(symbol, points)
}

func testQuote() models.OptionQuote {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	return models.OptionQuote{
		Symbol:            "TEST260619C00100000",
		UnderlyingSymbol:  "TEST",
		Spot:              100,
		Strike:            100,
		ExpiryDate:        now.AddDate(0, 4, 0),
		OptionType:        "call",
		ImpliedVolatility: 0.45,
		LastPrice:         8.2,
		Timestamp:         now,
	}
}

func TestEvaluateProducesSignal(t *testing.T) {
	scan, history, _ := newTestScanner(t)
	// Gentle drift: realized vol far below the quoted 0.45.
	seedHistory(history, "TEST", []float64{100, 100.5, 100.2, 100.8, 100.6, 101.0})

	event, err := scan.Evaluate(testQuote())
	require.NoError(t, err)

	assert.Equal(t, "TEST", event.UnderlyingSymbol)
	assert.Equal(t, models.RegimeOverpriced, event.Signal.Report.Regime)
	assert.InDelta(t, 0.45, event.Signal.Report.ImpliedVol, 1e-12)
	assert.Greater(t, event.Signal.ModelPrice, 0.0)
	assert.Equal(t, 8.2, event.Signal.MarketPrice)
}

func TestEvaluateSolvesMissingIV(t *testing.T) {
	scan, history, _ := newTestScanner(t)
	seedHistory(history, "TEST", []float64{100, 101, 99.5, 102, 100.5, 101.5})

	quote := testQuote()
	quote.ImpliedVolatility = 0

	event, err := scan.Evaluate(quote)
	require.NoError(t, err)

	// The solved IV reprices the quote to its own market price.
	assert.Greater(t, event.Signal.Report.ImpliedVol, 0.0)
	assert.InDelta(t, event.Signal.MarketPrice, event.Signal.ModelPrice, 1e-3)
}

func TestHandleQuotePublishesKeyedByUnderlying(t *testing.T) {
	scan, history, publisher := newTestScanner(t)
	seedHistory(history, "TEST", []float64{100, 100.5, 100.2, 100.8})

	payload, err := json.Marshal(testQuote())
	require.NoError(t, err)

	err = scan.HandleQuote(context.Background(), nil, payload)
	require.NoError(t, err)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, []string{"TEST"}, publisher.keys)
	assert.Equal(t, "TEST260619C00100000", publisher.events[0].Symbol)
}

func TestHandleQuoteSkipsWithoutHistory(t *testing.T) {
	scan, _, publisher := newTestScanner(t)

	payload, err := json.Marshal(testQuote())
	require.NoError(t, err)

	// No history yet: the quote is skipped, not failed.
	err = scan.HandleQuote(context.Background(), nil, payload)
	require.NoError(t, err)
	assert.Empty(t, publisher.events)
}

func TestHandleQuoteRejectsGarbage(t *testing.T) {
	scan, _, _ := newTestScanner(t)

	err := scan.HandleQuote(context.Background(), nil, []byte("not json"))
	require.Error(t, err)
}

func TestHandlePriceUpdate(t *testing.T) {
	scan, history, _ := newTestScanner(t)

	update := models.PriceUpdate{
		Symbol: "TEST",
		Date:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Close:  101.5,
	}
	payload, err := json.Marshal(update)
	require.NoError(t, err)

	require.NoError(t, scan.HandlePriceUpdate(context.Background(), nil, payload))

	close, _, err := history.LatestClose("TEST")
	require.NoError(t, err)
	assert.Equal(t, 101.5, close)
}

func TestHandlePriceUpdateValidation(t *testing.T) {
	scan, _, _ := newTestScanner(t)

	tests := []struct {
		name   string
		update models.PriceUpdate
	}{
		{name: "missing symbol", update: models.PriceUpdate{Close: 100}},
		{name: "non-positive close", update: models.PriceUpdate{Symbol: "TEST", Close: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := json.Marshal(tt.update)
			require.NoError(t, err)
			require.Error(t, scan.HandlePriceUpdate(context.Background(), nil, payload))
		})
	}
}
