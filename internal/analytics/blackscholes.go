package analytics

import (
	"math"

	"github.com/rzzdr/vol-analytics-engine/pkg/models"
	"github.com/rzzdr/vol-analytics-engine/pkg/utils/errors"
	"github.com/rzzdr/vol-analytics-engine/pkg/utils/logger"
)

// expiryEpsilon is the time-to-expiry, in years, below which a contract
// is treated as expired and priced at intrinsic value. Roughly a third
// of a second.
const expiryEpsilon = 1e-8

// BlackScholesEngine computes closed-form fair values and Greeks for
// European options
type BlackScholesEngine struct {
	log *logger.Logger
}

// NewBlackScholesEngine creates a new Black-Scholes engine
func NewBlackScholesEngine() *BlackScholesEngine {
	return &BlackScholesEngine{
		log: logger.GetLogger("analytics.blackscholes"),
	}
}

// PriceAndGreeks returns the fair value and the full Greeks vector for
// the snapshot's contract. Near expiry the value collapses to intrinsic
// and the Greeks saturate instead of dividing by zero.
func (e *BlackScholesEngine) PriceAndGreeks(snap models.MarketSnapshot) (float64, models.GreeksVector, error) {
	if err := validateSnapshot(snap); err != nil {
		return 0, models.GreeksVector{}, err
	}

	if snap.TimeToExpiry <= expiryEpsilon {
		return snap.IntrinsicValue(), expiryGreeks(snap), nil
	}

	S := snap.Spot
	K := snap.Strike
	r := snap.Rate
	sigma := snap.Volatility
	T := snap.TimeToExpiry

	sqrtT := math.Sqrt(T)
	d1 := (math.Log(S/K) + (r+0.5*sigma*sigma)*T) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT
	discount := math.Exp(-r * T)
	pdfD1 := normalPDF(d1)

	var price float64
	greeks := models.GreeksVector{
		Gamma: pdfD1 / (S * sigma * sqrtT),
		Vega:  S * pdfD1 * sqrtT / 100, // per 1% change in vol
	}

	if snap.OptionType == models.OptionTypeCall {
		price = S*normalCDF(d1) - K*discount*normalCDF(d2)
		greeks.Delta = normalCDF(d1)
		greeks.Theta = (-(S*pdfD1*sigma)/(2*sqrtT) - r*K*discount*normalCDF(d2)) / 365
		greeks.Rho = K * T * discount * normalCDF(d2) / 100
	} else {
		price = K*discount*normalCDF(-d2) - S*normalCDF(-d1)
		greeks.Delta = normalCDF(d1) - 1
		greeks.Theta = (-(S*pdfD1*sigma)/(2*sqrtT) + r*K*discount*normalCDF(-d2)) / 365
		greeks.Rho = -K * T * discount * normalCDF(-d2) / 100
	}

	if !isFinite(price) || !greeksFinite(greeks) {
		e.log.Errorf("non-finite pricing output: S=%v K=%v T=%v sigma=%v", S, K, T, sigma)
		return 0, models.GreeksVector{}, errors.NumericalInstability(
			"pricing produced a non-finite value; inputs are at the edge of the model's domain")
	}

	return price, greeks, nil
}

// Price returns only the fair value for the snapshot's contract
func (e *BlackScholesEngine) Price(snap models.MarketSnapshot) (float64, error) {
	price, _, err := e.PriceAndGreeks(snap)
	return price, err
}

// ImpliedVolatility solves for the volatility that reprices the
// snapshot's contract to marketPrice, by Newton-Raphson on vega.
// The snapshot's own volatility field is ignored.
func (e *BlackScholesEngine) ImpliedVolatility(snap models.MarketSnapshot, marketPrice float64) (float64, error) {
	if err := validateSnapshot(snap); err != nil {
		return 0, err
	}
	if math.IsNaN(marketPrice) || marketPrice <= 0 {
		return 0, errors.InvalidInputf("market price must be positive, got %v", marketPrice)
	}
	if marketPrice <= snap.IntrinsicValue() {
		return 0, errors.InvalidInputf(
			"market price %v is at or below intrinsic value %v; no implied volatility exists",
			marketPrice, snap.IntrinsicValue())
	}

	const (
		precision     = 1e-6
		maxIterations = 100
		sigmaFloor    = 0.001
		sigmaCeiling  = 5.0
	)

	sigma := 0.2 // initial guess
	for i := 0; i < maxIterations; i++ {
		trial := snap
		trial.Volatility = sigma
		price, _, err := e.PriceAndGreeks(trial)
		if err != nil {
			return 0, err
		}

		diff := price - marketPrice
		if math.Abs(diff) < precision {
			return sigma, nil
		}

		sqrtT := math.Sqrt(snap.TimeToExpiry)
		d1 := (math.Log(snap.Spot/snap.Strike) + (snap.Rate+0.5*sigma*sigma)*snap.TimeToExpiry) / (sigma * sqrtT)
		vega := snap.Spot * normalPDF(d1) * sqrtT
		if vega < 1e-12 {
			break
		}

		sigma -= diff / vega
		if sigma <= sigmaFloor {
			sigma = sigmaFloor
		} else if sigma > sigmaCeiling {
			return 0, errors.NumericalInstability("implied volatility solver diverged above 500%")
		}
	}

	e.log.Warnf("implied volatility did not converge for strike %v, market price %v", snap.Strike, marketPrice)
	return 0, errors.NumericalInstability("implied volatility solver did not converge")
}

// validateSnapshot guards engine entry points against snapshots built
// outside NewMarketSnapshot
func validateSnapshot(snap models.MarketSnapshot) error {
	for _, v := range []float64{snap.Spot, snap.Strike, snap.TimeToExpiry, snap.Rate, snap.Volatility} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.InvalidInput("snapshot contains a non-finite field")
		}
	}
	if snap.Spot <= 0 || snap.Strike <= 0 {
		return errors.InvalidInput("spot and strike must be positive")
	}
	if snap.TimeToExpiry < 0 {
		return errors.InvalidInputf("timeToExpiry must not be negative, got %v", snap.TimeToExpiry)
	}
	if snap.Volatility <= 0 {
		return errors.InvalidInputf("volatility must be positive, got %v", snap.Volatility)
	}
	return nil
}

// expiryGreeks returns the saturated Greeks of an expired contract:
// delta is 0 or +/-1 depending on moneyness, everything else is 0.
func expiryGreeks(snap models.MarketSnapshot) models.GreeksVector {
	var delta float64
	if snap.OptionType == models.OptionTypeCall {
		if snap.Spot > snap.Strike {
			delta = 1
		}
	} else {
		if snap.Spot < snap.Strike {
			delta = -1
		}
	}
	return models.GreeksVector{Delta: delta}
}

func greeksFinite(g models.GreeksVector) bool {
	return isFinite(g.Delta) && isFinite(g.Gamma) && isFinite(g.Vega) && isFinite(g.Theta) && isFinite(g.Rho)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// normalCDF returns the cumulative distribution function of the standard
// normal distribution
func normalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// normalPDF returns the probability density function of the standard
// normal distribution
func normalPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}
