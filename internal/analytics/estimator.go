package analytics

import (
	"math"

	"github.com/rzzdr/vol-analytics-engine/pkg/utils/errors"
	"github.com/rzzdr/vol-analytics-engine/pkg/utils/logger"
)

// VolatilityEstimator computes realized volatility from close-price
// series. Implied volatility is never computed here: it arrives from the
// market-data collaborator as a quoted scalar.
type VolatilityEstimator struct {
	periodsPerYear int
	log            *logger.Logger
}

// NewVolatilityEstimator creates a new estimator annualizing by
// periodsPerYear, defaulting to 252 trading days
func NewVolatilityEstimator(periodsPerYear int) *VolatilityEstimator {
	if periodsPerYear <= 0 {
		periodsPerYear = 252
	}
	return &VolatilityEstimator{
		periodsPerYear: periodsPerYear,
		log:            logger.GetLogger("analytics.estimator"),
	}
}

// HistoricalVolatility returns the annualized standard deviation of the
// series' log returns. At least two prices are required.
func (e *VolatilityEstimator) HistoricalVolatility(prices []float64) (float64, error) {
	returns, err := logReturns(prices)
	if err != nil {
		return 0, err
	}
	return stdDev(returns) * math.Sqrt(float64(e.periodsPerYear)), nil
}

// RollingHistoricalVolatility returns the annualized volatility over a
// sliding window of log returns, one value per complete window. The
// series needs window+1 prices for the first value.
func (e *VolatilityEstimator) RollingHistoricalVolatility(prices []float64, window int) ([]float64, error) {
	if window < 2 {
		return nil, errors.InvalidInputf("rolling window must be at least 2, got %d", window)
	}
	returns, err := logReturns(prices)
	if err != nil {
		return nil, err
	}
	if len(returns) < window {
		return nil, errors.InsufficientData(
			"price series shorter than the rolling window")
	}

	annualize := math.Sqrt(float64(e.periodsPerYear))
	series := make([]float64, 0, len(returns)-window+1)
	for i := window; i <= len(returns); i++ {
		series = append(series, stdDev(returns[i-window:i])*annualize)
	}
	return series, nil
}

// logReturns computes consecutive log returns, validating every price
func logReturns(prices []float64) ([]float64, error) {
	if len(prices) < 2 {
		return nil, errors.InsufficientData("at least 2 prices are required to compute returns")
	}
	for i, p := range prices {
		if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
			return nil, errors.InvalidInputf("price at index %d must be positive and finite, got %v", i, p)
		}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		returns[i-1] = math.Log(prices[i] / prices[i-1])
	}
	return returns, nil
}

// stdDev computes the population standard deviation
func stdDev(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	var variance float64
	for _, x := range xs {
		variance += (x - mean) * (x - mean)
	}
	variance /= float64(len(xs))

	return math.Sqrt(variance)
}
