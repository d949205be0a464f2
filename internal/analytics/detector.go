package analytics

import (
	"fmt"
	"math"
	"time"

	"github.com/rzzdr/vol-analytics-engine/pkg/models"
	"github.com/rzzdr/vol-analytics-engine/pkg/utils/errors"
	"github.com/rzzdr/vol-analytics-engine/pkg/utils/logger"
)

// DefaultMispricingThreshold is the IV-HV spread, in absolute volatility
// points, beyond which the regime is no longer FAIR. The value is a
// heuristic, not the outcome of a statistical test; callers with a view
// on a better boundary should configure their own.
const DefaultMispricingThreshold = 0.05

// DetectorConfig contains configuration for the mispricing detector
type DetectorConfig struct {
	Threshold float64
}

// MispricingDetector classifies the volatility regime from the IV-HV
// spread and reports the model-vs-market price divergence alongside it
type MispricingDetector struct {
	threshold float64
	log       *logger.Logger
}

// NewMispricingDetector creates a new detector
func NewMispricingDetector(config DetectorConfig) *MispricingDetector {
	if config.Threshold <= 0 {
		config.Threshold = DefaultMispricingThreshold
	}
	return &MispricingDetector{
		threshold: config.Threshold,
		log:       logger.GetLogger("analytics.detector"),
	}
}

// Detect classifies the regime and computes the advisory price
// divergence. The divergence is never thresholded into the
// classification: model-vs-market gaps are too noisy for a universal
// cutoff.
func (d *MispricingDetector) Detect(impliedVol, historicalVol, modelPrice, marketPrice float64) (models.MispricingSignal, error) {
	for name, v := range map[string]float64{
		"impliedVol":    impliedVol,
		"historicalVol": historicalVol,
		"modelPrice":    modelPrice,
		"marketPrice":   marketPrice,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return models.MispricingSignal{}, errors.InvalidInputf("%s must be finite, got %v", name, v)
		}
	}
	if impliedVol < 0 || historicalVol < 0 {
		return models.MispricingSignal{}, errors.InvalidInput("volatilities must not be negative")
	}
	if modelPrice < 0 {
		return models.MispricingSignal{}, errors.InvalidInputf("modelPrice must not be negative, got %v", modelPrice)
	}
	if marketPrice <= 0 {
		return models.MispricingSignal{}, errors.InvalidInputf("marketPrice must be positive, got %v", marketPrice)
	}

	spread := impliedVol - historicalVol
	regime := models.RegimeFair
	switch {
	case spread > d.threshold:
		regime = models.RegimeOverpriced
	case spread < -d.threshold:
		regime = models.RegimeUnderpriced
	}

	signal := models.MispricingSignal{
		Report: models.VolatilityReport{
			HistoricalVol: historicalVol,
			ImpliedVol:    impliedVol,
			Spread:        spread,
			Regime:        regime,
		},
		ModelPrice:      modelPrice,
		MarketPrice:     marketPrice,
		PriceDivergence: (modelPrice - marketPrice) / marketPrice,
		Note:            regimeNote(regime, impliedVol, historicalVol),
		GeneratedAt:     time.Now().UTC(),
	}

	d.log.Debugf("detected regime %s: iv=%.4f hv=%.4f spread=%.4f divergence=%.4f",
		regime, impliedVol, historicalVol, spread, signal.PriceDivergence)

	return signal, nil
}

// Threshold returns the configured classification boundary
func (d *MispricingDetector) Threshold() float64 {
	return d.threshold
}

func regimeNote(regime models.VolatilityRegime, iv, hv float64) string {
	switch regime {
	case models.RegimeOverpriced:
		return fmt.Sprintf("options look expensive: market implies %.1f%% annualized moves against %.1f%% realized", iv*100, hv*100)
	case models.RegimeUnderpriced:
		return fmt.Sprintf("options look cheap: market implies %.1f%% annualized moves against %.1f%% realized", iv*100, hv*100)
	default:
		return fmt.Sprintf("implied %.1f%% and realized %.1f%% volatility are in line", iv*100, hv*100)
	}
}
