package analytics

import (
	"math"
	"sort"
	"strconv"

	"github.com/rzzdr/vol-analytics-engine/pkg/models"
	"github.com/rzzdr/vol-analytics-engine/pkg/utils/errors"
	"github.com/rzzdr/vol-analytics-engine/pkg/utils/logger"
)

// SmileBuilder assembles the raw observed skew curve for a single
// expiry. No smoothing or interpolation: visualization is the rendering
// collaborator's concern.
type SmileBuilder struct {
	log *logger.Logger
}

// NewSmileBuilder creates a new smile builder
func NewSmileBuilder() *SmileBuilder {
	return &SmileBuilder{
		log: logger.GetLogger("analytics.smile"),
	}
}

// Build orders the points by strike ascending. Duplicate strikes within
// one expiry are a caller data error.
func (b *SmileBuilder) Build(points []models.SmilePoint) (models.SmileCurve, error) {
	if len(points) == 0 {
		return models.SmileCurve{}, errors.InsufficientData("smile requires at least one (strike, iv) point")
	}
	for _, p := range points {
		if math.IsNaN(p.Strike) || math.IsInf(p.Strike, 0) || p.Strike <= 0 {
			return models.SmileCurve{}, errors.InvalidInputf("strike must be positive and finite, got %v", p.Strike)
		}
		if math.IsNaN(p.ImpliedVol) || math.IsInf(p.ImpliedVol, 0) || p.ImpliedVol <= 0 {
			return models.SmileCurve{}, errors.InvalidInputf("implied vol at strike %v must be positive and finite, got %v", p.Strike, p.ImpliedVol)
		}
	}

	ordered := make([]models.SmilePoint, len(points))
	copy(ordered, points)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Strike < ordered[j].Strike
	})

	for i := 1; i < len(ordered); i++ {
		if ordered[i].Strike == ordered[i-1].Strike {
			return models.SmileCurve{}, errors.DuplicateStrike(
				"duplicate strike " + strconv.FormatFloat(ordered[i].Strike, 'f', -1, 64) + " in smile input")
		}
	}

	return models.SmileCurve{Points: ordered}, nil
}
