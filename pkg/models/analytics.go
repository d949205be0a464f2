package models

import (
	"encoding/json"
	"time"

	"github.com/rzzdr/vol-analytics-engine/pkg/utils/errors"
)

// GreeksVector holds the closed-form sensitivities of an option price.
// Theta is reported per calendar day, vega per volatility point and rho
// per rate point, matching common chain display conventions.
type GreeksVector struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Vega  float64 `json:"vega"`
	Theta float64 `json:"theta"`
	Rho   float64 `json:"rho"`
}

// ConfidenceInterval is a two-sided interval around a simulated estimate
type ConfidenceInterval struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// SimulationResult is the aggregate outcome of one Monte Carlo run.
// Re-running with the same seed and path count reproduces it bit for bit.
type SimulationResult struct {
	Paths              int                `json:"paths"`
	Seed               int64              `json:"seed"`
	MeanPayoff         float64            `json:"meanPayoff"`
	ProbITM            float64            `json:"probItm"`
	StdError           float64            `json:"stdError"`
	ConfidenceInterval ConfidenceInterval `json:"confidenceInterval"`
	// LowConfidence is set when the run used fewer paths than the
	// recommended floor and the standard error band is advisory only.
	LowConfidence bool `json:"lowConfidence"`
}

// SimulatedPaths holds full GBM trajectories for the rendering
// collaborator: Times has Steps+1 entries and each path matches it.
type SimulatedPaths struct {
	Times   []float64   `json:"times"`
	Paths   [][]float64 `json:"paths"`
	ProbITM float64     `json:"probItm"`
}

// VolatilityRegime classifies implied against historical volatility
type VolatilityRegime int

const (
	RegimeFair VolatilityRegime = iota
	RegimeOverpriced
	RegimeUnderpriced
)

// String returns the wire name of the regime
func (r VolatilityRegime) String() string {
	switch r {
	case RegimeOverpriced:
		return "OVERPRICED"
	case RegimeUnderpriced:
		return "UNDERPRICED"
	default:
		return "FAIR"
	}
}

// MarshalJSON encodes the regime as its string name
func (r VolatilityRegime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.String() + `"`), nil
}

// UnmarshalJSON decodes a regime from its string name
func (r *VolatilityRegime) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "OVERPRICED":
		*r = RegimeOverpriced
	case "UNDERPRICED":
		*r = RegimeUnderpriced
	case "FAIR":
		*r = RegimeFair
	default:
		return errors.InvalidInputf("unknown volatility regime %q", name)
	}
	return nil
}

// VolatilityReport compares market-implied and realized volatility
type VolatilityReport struct {
	HistoricalVol float64          `json:"historicalVol"`
	ImpliedVol    float64          `json:"impliedVol"`
	Spread        float64          `json:"spread"`
	Regime        VolatilityRegime `json:"regime"`
}

// MispricingSignal is the detector's full output: the volatility regime
// classification plus the advisory model-vs-market price divergence.
// PriceDivergence carries no threshold; microstructure noise makes a
// universal cutoff unreliable.
type MispricingSignal struct {
	Report          VolatilityReport `json:"report"`
	ModelPrice      float64          `json:"modelPrice"`
	MarketPrice     float64          `json:"marketPrice"`
	PriceDivergence float64          `json:"priceDivergence"`
	Note            string           `json:"note,omitempty"`
	GeneratedAt     time.Time        `json:"generatedAt,omitempty"`
}

// SmilePoint is one observed (strike, implied vol) pair at a fixed expiry
type SmilePoint struct {
	Strike     float64 `json:"strike"`
	ImpliedVol float64 `json:"impliedVol"`
}

// SmileCurve is the raw observed skew for one expiry, ordered by strike
// ascending with unique strikes. No smoothing is applied.
type SmileCurve struct {
	Points []SmilePoint `json:"points"`
}

// ChainRow is the per-strike output of a chain analysis
type ChainRow struct {
	Strike     float64 `json:"strike"`
	LastPrice  float64 `json:"lastPrice"`
	Bid        float64 `json:"bid"`
	Ask        float64 `json:"ask"`
	ImpliedVol float64 `json:"impliedVol"`
	ModelPrice float64 `json:"modelPrice"`
	// EdgePct is (last − model) / model in percent, advisory only
	EdgePct float64 `json:"edgePct"`
}

// ChainAnalysis is the full result of analyzing one expiry's chain
type ChainAnalysis struct {
	UnderlyingSymbol string     `json:"underlyingSymbol"`
	ExpiryDate       time.Time  `json:"expiryDate"`
	Rows             []ChainRow `json:"rows"`
	Smile            SmileCurve `json:"smile"`
}

// SignalEvent is a mispricing signal tagged with its contract, as
// published on the signal feed and pushed to stream subscribers
type SignalEvent struct {
	Symbol           string           `json:"symbol"`
	UnderlyingSymbol string           `json:"underlyingSymbol"`
	Signal           MispricingSignal `json:"signal"`
}
