package models

import (
	"math"
	"strings"
	"time"

	"github.com/rzzdr/vol-analytics-engine/pkg/utils/errors"
)

// Defines the type of option
type OptionType int

const (
	OptionTypeCall OptionType = iota
	OptionTypePut
)

// String returns the lowercase wire name of the option type
func (t OptionType) String() string {
	if t == OptionTypePut {
		return "put"
	}
	return "call"
}

// ParseOptionType parses "call" or "put" (case-insensitive)
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToLower(s) {
	case "call":
		return OptionTypeCall, nil
	case "put":
		return OptionTypePut, nil
	default:
		return 0, errors.InvalidInputf("option type must be 'call' or 'put', got %q", s)
	}
}

// MarketSnapshot is the normalized, validated input to every pricing and
// simulation call. Immutable once constructed; always build it through
// NewMarketSnapshot.
type MarketSnapshot struct {
	Spot         float64    `json:"spot"`
	Strike       float64    `json:"strike"`
	TimeToExpiry float64    `json:"timeToExpiry"` // years
	Rate         float64    `json:"rate"`
	Volatility   float64    `json:"volatility"`
	OptionType   OptionType `json:"optionType"`
}

// NewMarketSnapshot validates and constructs a MarketSnapshot.
// Non-positive spot, strike, time or volatility, and any non-finite
// field, are rejected with an InvalidInput error.
func NewMarketSnapshot(spot, strike, timeToExpiry, rate, volatility float64, optionType OptionType) (MarketSnapshot, error) {
	for name, v := range map[string]float64{
		"spot":         spot,
		"strike":       strike,
		"timeToExpiry": timeToExpiry,
		"rate":         rate,
		"volatility":   volatility,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return MarketSnapshot{}, errors.InvalidInputf("%s must be finite, got %v", name, v)
		}
	}
	if spot <= 0 {
		return MarketSnapshot{}, errors.InvalidInputf("spot must be positive, got %v", spot)
	}
	if strike <= 0 {
		return MarketSnapshot{}, errors.InvalidInputf("strike must be positive, got %v", strike)
	}
	if timeToExpiry <= 0 {
		return MarketSnapshot{}, errors.InvalidInputf("timeToExpiry must be positive, got %v", timeToExpiry)
	}
	if volatility <= 0 {
		return MarketSnapshot{}, errors.InvalidInputf("volatility must be positive, got %v", volatility)
	}

	return MarketSnapshot{
		Spot:         spot,
		Strike:       strike,
		TimeToExpiry: timeToExpiry,
		Rate:         rate,
		Volatility:   volatility,
		OptionType:   optionType,
	}, nil
}

// IntrinsicValue returns the exercise value of the snapshot's contract
// at the given spot price
func (s MarketSnapshot) IntrinsicValue() float64 {
	if s.OptionType == OptionTypeCall {
		return math.Max(s.Spot-s.Strike, 0)
	}
	return math.Max(s.Strike-s.Spot, 0)
}

// OptionQuote is the raw normalized quote record handed over by the
// market-data collaborator. It is validated in internal/marketdata before
// any snapshot is built from it.
type OptionQuote struct {
	Symbol            string    `json:"symbol"`
	UnderlyingSymbol  string    `json:"underlyingSymbol"`
	Spot              float64   `json:"spot"`
	Strike            float64   `json:"strike"`
	ExpiryDate        time.Time `json:"expiryDate"`
	OptionType        string    `json:"optionType"`
	ImpliedVolatility float64   `json:"impliedVolatility"`
	Bid               float64   `json:"bid"`
	Ask               float64   `json:"ask"`
	LastPrice         float64   `json:"lastPrice"`
	Volume            int64     `json:"volume"`
	OpenInterest      int64     `json:"openInterest"`
	Timestamp         time.Time `json:"timestamp"`
}

// PricePoint is a single close in a price-history series
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceUpdate is one close for one symbol as published on the
// price-history feed
type PriceUpdate struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Close  float64   `json:"close"`
}

// Point converts the update into a series point
func (u PriceUpdate) Point() PricePoint {
	return PricePoint{Date: u.Date, Close: u.Close}
}
