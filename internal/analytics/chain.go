package analytics

import (
	"sort"
	"time"

	"github.com/rzzdr/vol-analytics-engine/pkg/models"
	"github.com/rzzdr/vol-analytics-engine/pkg/utils/errors"
	"github.com/rzzdr/vol-analytics-engine/pkg/utils/logger"
)

// ChainAnalyzer prices every contract of one expiry's chain against the
// model, computes the edge of each quote, and assembles the smile curve
// from the quoted implied volatilities.
type ChainAnalyzer struct {
	pricer *BlackScholesEngine
	smile  *SmileBuilder
	log    *logger.Logger
}

// NewChainAnalyzer creates a new chain analyzer
func NewChainAnalyzer(pricer *BlackScholesEngine, smile *SmileBuilder) *ChainAnalyzer {
	return &ChainAnalyzer{
		pricer: pricer,
		smile:  smile,
		log:    logger.GetLogger("analytics.chain"),
	}
}

// Analyze runs the per-strike model comparison for a single-expiry chain.
// spot and rate come from configuration; fallbackVol (typically the
// realized volatility) prices contracts whose quote carries no usable
// implied volatility. Quotes whose IV is missing but whose last price is
// above intrinsic get their IV solved from the price.
func (a *ChainAnalyzer) Analyze(quotes []models.OptionQuote, spot, rate, fallbackVol float64, asOf time.Time) (models.ChainAnalysis, error) {
	if len(quotes) == 0 {
		return models.ChainAnalysis{}, errors.InsufficientData("chain analysis requires at least one quote")
	}
	if fallbackVol <= 0 {
		return models.ChainAnalysis{}, errors.InvalidInputf("fallbackVol must be positive, got %v", fallbackVol)
	}

	expiry := quotes[0].ExpiryDate
	tte := expiry.Sub(asOf).Hours() / (24 * 365)
	if tte <= 0 {
		return models.ChainAnalysis{}, errors.InvalidInputf("chain expiry %s is not in the future", expiry.Format("2006-01-02"))
	}

	rows := make([]models.ChainRow, 0, len(quotes))
	smilePoints := make([]models.SmilePoint, 0, len(quotes))

	for _, q := range quotes {
		if !q.ExpiryDate.Equal(expiry) {
			return models.ChainAnalysis{}, errors.InvalidInputf(
				"chain mixes expiries %s and %s", expiry.Format("2006-01-02"), q.ExpiryDate.Format("2006-01-02"))
		}

		optType, err := models.ParseOptionType(q.OptionType)
		if err != nil {
			return models.ChainAnalysis{}, err
		}

		iv := q.ImpliedVolatility
		if iv <= 0 && q.LastPrice > 0 {
			// No quoted IV; back it out of the last trade when possible.
			probe, err := models.NewMarketSnapshot(spot, q.Strike, tte, rate, fallbackVol, optType)
			if err != nil {
				return models.ChainAnalysis{}, err
			}
			solved, err := a.pricer.ImpliedVolatility(probe, q.LastPrice)
			if err == nil {
				iv = solved
			} else {
				a.log.Debugf("could not solve IV for strike %v: %v", q.Strike, err)
			}
		}

		pricingVol := iv
		if pricingVol <= 0 {
			pricingVol = fallbackVol
		}

		snap, err := models.NewMarketSnapshot(spot, q.Strike, tte, rate, pricingVol, optType)
		if err != nil {
			return models.ChainAnalysis{}, err
		}
		modelPrice, _, err := a.pricer.PriceAndGreeks(snap)
		if err != nil {
			return models.ChainAnalysis{}, err
		}

		row := models.ChainRow{
			Strike:     q.Strike,
			LastPrice:  q.LastPrice,
			Bid:        q.Bid,
			Ask:        q.Ask,
			ImpliedVol: iv,
			ModelPrice: modelPrice,
		}
		if q.LastPrice > 0 && modelPrice > 0 {
			row.EdgePct = (q.LastPrice - modelPrice) / modelPrice * 100
		}
		rows = append(rows, row)

		if iv > 0 {
			smilePoints = append(smilePoints, models.SmilePoint{Strike: q.Strike, ImpliedVol: iv})
		}
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Strike < rows[j].Strike })

	analysis := models.ChainAnalysis{
		UnderlyingSymbol: quotes[0].UnderlyingSymbol,
		ExpiryDate:       expiry,
		Rows:             rows,
	}

	if len(smilePoints) > 0 {
		curve, err := a.smile.Build(smilePoints)
		if err != nil {
			return models.ChainAnalysis{}, err
		}
		analysis.Smile = curve
	}

	return analysis, nil
}
