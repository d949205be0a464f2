// Package marketdata normalizes records handed over by the market-data
// collaborator into validated core inputs. Missing or NaN fields fail
// loudly here; nothing downstream ever sees a silently defaulted value.
package marketdata

import (
	"math"
	"sort"
	"time"

	"github.com/rzzdr/vol-analytics-engine/pkg/models"
	"github.com/rzzdr/vol-analytics-engine/pkg/utils/errors"
)

// YearsToExpiry converts an expiry date into year-fraction time to
// expiry relative to asOf. Expired or same-instant contracts are an
// error, not a clamped small positive value.
func YearsToExpiry(expiry, asOf time.Time) (float64, error) {
	tte := expiry.Sub(asOf).Hours() / (24 * 365)
	if tte <= 0 {
		return 0, errors.InvalidInputf("expiry %s is not after %s",
			expiry.Format(time.RFC3339), asOf.Format(time.RFC3339))
	}
	return tte, nil
}

// SnapshotFromQuote builds a validated MarketSnapshot from a normalized
// quote record, using the quoted implied volatility as the pricing
// volatility and the caller-configured risk-free rate.
func SnapshotFromQuote(q models.OptionQuote, rate float64, asOf time.Time) (models.MarketSnapshot, error) {
	optType, err := models.ParseOptionType(q.OptionType)
	if err != nil {
		return models.MarketSnapshot{}, err
	}

	if q.ExpiryDate.IsZero() {
		return models.MarketSnapshot{}, errors.InvalidInput("quote is missing an expiry date")
	}
	tte, err := YearsToExpiry(q.ExpiryDate, asOf)
	if err != nil {
		return models.MarketSnapshot{}, err
	}

	// NewMarketSnapshot repeats the numeric validation; going through it
	// keeps a single source of truth for what a valid snapshot is.
	snap, err := models.NewMarketSnapshot(q.Spot, q.Strike, tte, rate, q.ImpliedVolatility, optType)
	if err != nil {
		return models.MarketSnapshot{}, errors.Wrapf(err, "quote %s failed validation", q.Symbol)
	}
	return snap, nil
}

// MarketPrice picks the observable price of a quote: the last trade if
// present, otherwise the bid/ask mid. A quote with neither is an error.
func MarketPrice(q models.OptionQuote) (float64, error) {
	if q.LastPrice > 0 && !math.IsNaN(q.LastPrice) {
		return q.LastPrice, nil
	}
	if q.Bid > 0 && q.Ask > 0 && !math.IsNaN(q.Bid) && !math.IsNaN(q.Ask) && q.Ask >= q.Bid {
		return (q.Bid + q.Ask) / 2, nil
	}
	return 0, errors.InvalidInputf("quote %s carries neither a last price nor a two-sided market", q.Symbol)
}

// ClosesFromHistory orders a price-history series by date ascending and
// extracts the closes, rejecting non-positive or non-finite values
func ClosesFromHistory(points []models.PricePoint) ([]float64, error) {
	if len(points) == 0 {
		return nil, errors.InsufficientData("price history is empty")
	}

	ordered := make([]models.PricePoint, len(points))
	copy(ordered, points)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})

	closes := make([]float64, len(ordered))
	for i, p := range ordered {
		if math.IsNaN(p.Close) || math.IsInf(p.Close, 0) || p.Close <= 0 {
			return nil, errors.InvalidInputf("close on %s must be positive and finite, got %v",
				p.Date.Format("2006-01-02"), p.Close)
		}
		closes[i] = p.Close
	}
	return closes, nil
}
