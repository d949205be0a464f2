// Package scanner turns the quote feed into mispricing signals. Each
// incoming option quote is priced against the model, compared with the
// realized volatility of its underlying, and the resulting signal is
// published on the signal feed.
package scanner

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/rzzdr/vol-analytics-engine/internal/analytics"
	"github.com/rzzdr/vol-analytics-engine/internal/marketdata"
	"github.com/rzzdr/vol-analytics-engine/internal/store"
	"github.com/rzzdr/vol-analytics-engine/pkg/metrics"
	"github.com/rzzdr/vol-analytics-engine/pkg/models"
	"github.com/rzzdr/vol-analytics-engine/pkg/utils/errors"
	"github.com/rzzdr/vol-analytics-engine/pkg/utils/logger"
)

// Publisher sends a JSON payload to the signal feed
type Publisher interface {
	Publish(ctx context.Context, key []byte, value interface{}) error
}

// Config contains configuration for the scanner
type Config struct {
	RiskFreeRate float64
}

// Scanner consumes option quotes and price updates, and emits
// mispricing signals
type Scanner struct {
	pricer    *analytics.BlackScholesEngine
	estimator *analytics.VolatilityEstimator
	detector  *analytics.MispricingDetector
	history   *store.PriceHistoryStore
	publisher Publisher
	recorder  *metrics.Recorder
	config    Config
	log       *logger.Logger
}

// NewScanner creates a new scanner
func NewScanner(
	config Config,
	pricer *analytics.BlackScholesEngine,
	estimator *analytics.VolatilityEstimator,
	detector *analytics.MispricingDetector,
	history *store.PriceHistoryStore,
	publisher Publisher,
	recorder *metrics.Recorder,
) *Scanner {
	return &Scanner{
		pricer:    pricer,
		estimator: estimator,
		detector:  detector,
		history:   history,
		publisher: publisher,
		recorder:  recorder,
		config:    config,
		log:       logger.GetLogger("scanner"),
	}
}

// HandlePriceUpdate ingests one close from the price-history feed
func (s *Scanner) HandlePriceUpdate(ctx context.Context, key, value []byte) error {
	var update models.PriceUpdate
	if err := json.Unmarshal(value, &update); err != nil {
		return errors.Wrap(err, "failed to decode price update")
	}
	if update.Symbol == "" {
		return errors.InvalidInput("price update is missing a symbol")
	}
	if math.IsNaN(update.Close) || math.IsInf(update.Close, 0) || update.Close <= 0 {
		return errors.InvalidInputf("close for %s must be positive and finite, got %v", update.Symbol, update.Close)
	}

	s.history.Append(update.Symbol, update.Point())
	return nil
}

// HandleQuote evaluates one option quote against the model. Quotes whose
// underlying has too little price history are skipped, not failed: the
// store fills up as the history feed catches up.
func (s *Scanner) HandleQuote(ctx context.Context, key, value []byte) error {
	var quote models.OptionQuote
	if err := json.Unmarshal(value, &quote); err != nil {
		s.recorder.RecordQuoteConsumed(err)
		return errors.Wrap(err, "failed to decode option quote")
	}
	s.recorder.RecordQuoteConsumed(nil)

	event, err := s.Evaluate(quote)
	if err != nil {
		if errors.IsKind(err, errors.KindInsufficientData) {
			s.log.Debugf("skipping quote %s: %v", quote.Symbol, err)
			return nil
		}
		return err
	}

	if err := s.publisher.Publish(ctx, []byte(event.UnderlyingSymbol), event); err != nil {
		return errors.Wrapf(err, "failed to publish signal for %s", event.Symbol)
	}

	s.recorder.RecordSignal(event.Signal.Report.Regime.String(), event.Signal.Report.Spread)
	return nil
}

// Evaluate runs the full quote-to-signal pipeline without publishing
func (s *Scanner) Evaluate(quote models.OptionQuote) (models.SignalEvent, error) {
	points, err := s.history.History(quote.UnderlyingSymbol)
	if err != nil {
		return models.SignalEvent{}, errors.InsufficientData("no price history for " + quote.UnderlyingSymbol)
	}
	closes, err := marketdata.ClosesFromHistory(points)
	if err != nil {
		return models.SignalEvent{}, err
	}
	hv, err := s.estimator.HistoricalVolatility(closes)
	if err != nil {
		return models.SignalEvent{}, err
	}

	asOf := quote.Timestamp
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	marketPrice, err := marketdata.MarketPrice(quote)
	if err != nil {
		return models.SignalEvent{}, err
	}

	iv := quote.ImpliedVolatility
	if iv <= 0 {
		// No quoted IV; back it out of the observed price using the
		// realized vol as the solver's starting snapshot.
		if hv <= 0 {
			return models.SignalEvent{}, errors.InsufficientData("cannot solve IV with zero realized volatility")
		}
		probe := quote
		probe.ImpliedVolatility = hv
		snap, err := marketdata.SnapshotFromQuote(probe, s.config.RiskFreeRate, asOf)
		if err != nil {
			return models.SignalEvent{}, err
		}
		iv, err = s.pricer.ImpliedVolatility(snap, marketPrice)
		if err != nil {
			return models.SignalEvent{}, err
		}
	}

	priced := quote
	priced.ImpliedVolatility = iv
	snap, err := marketdata.SnapshotFromQuote(priced, s.config.RiskFreeRate, asOf)
	if err != nil {
		return models.SignalEvent{}, err
	}

	start := time.Now()
	modelPrice, err := s.pricer.Price(snap)
	s.recorder.RecordPricing(snap.OptionType.String(), err, time.Since(start))
	if err != nil {
		return models.SignalEvent{}, err
	}

	signal, err := s.detector.Detect(iv, hv, modelPrice, marketPrice)
	if err != nil {
		return models.SignalEvent{}, err
	}

	return models.SignalEvent{
		Symbol:           quote.Symbol,
		UnderlyingSymbol: quote.UnderlyingSymbol,
		Signal:           signal,
	}, nil
}
