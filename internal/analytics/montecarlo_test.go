package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzzdr/vol-analytics-engine/pkg/models"
	"github.com/rzzdr/vol-analytics-engine/pkg/utils/errors"
)

func int64Ptr(v int64) *int64 {
	return &v
}

func TestSimulateSeededRunsAreIdentical(t *testing.T) {
	snap := mustSnapshot(t, 100, 105, 0.5, 0.05, 0.25, models.OptionTypeCall)

	// Different worker counts must not change a seeded result.
	first := NewMonteCarloEngine(MonteCarloConfig{Workers: 1})
	second := NewMonteCarloEngine(MonteCarloConfig{Workers: 8})

	a, err := first.Simulate(snap, 30000, int64Ptr(42))
	require.NoError(t, err)
	b, err := second.Simulate(snap, 30000, int64Ptr(42))
	require.NoError(t, err)

	assert.Equal(t, a.MeanPayoff, b.MeanPayoff)
	assert.Equal(t, a.StdError, b.StdError)
	assert.Equal(t, a.ProbITM, b.ProbITM)
	assert.Equal(t, int64(42), a.Seed)
}

func TestSimulateConvergesToClosedForm(t *testing.T) {
	engine := NewMonteCarloEngine(MonteCarloConfig{})
	pricer := NewBlackScholesEngine()

	tests := []struct {
		name    string
		optType models.OptionType
	}{
		{name: "call", optType: models.OptionTypeCall},
		{name: "put", optType: models.OptionTypePut},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := mustSnapshot(t, 100, 100, 0.5, 0.05, 0.2, tt.optType)

			analytical, err := pricer.Price(snap)
			require.NoError(t, err)

			result, err := engine.Simulate(snap, 100000, int64Ptr(7))
			require.NoError(t, err)

			// 100k paths put the standard error around 0.03; half a
			// dollar of slack is far outside any plausible seed.
			assert.InDelta(t, analytical, result.MeanPayoff, 0.5)
			assert.False(t, result.LowConfidence)
			assert.Less(t, result.ConfidenceInterval.Low, result.MeanPayoff)
			assert.Greater(t, result.ConfidenceInterval.High, result.MeanPayoff)
		})
	}
}

func TestSimulateErrorShrinksWithMorePaths(t *testing.T) {
	engine := NewMonteCarloEngine(MonteCarloConfig{})
	snap := mustSnapshot(t, 100, 100, 1, 0.05, 0.3, models.OptionTypeCall)

	small, err := engine.Simulate(snap, 5000, int64Ptr(11))
	require.NoError(t, err)
	large, err := engine.Simulate(snap, 80000, int64Ptr(11))
	require.NoError(t, err)

	assert.Greater(t, small.StdError, large.StdError)
	assert.True(t, small.LowConfidence)
	assert.False(t, large.LowConfidence)
}

func TestSimulateSinglePath(t *testing.T) {
	engine := NewMonteCarloEngine(MonteCarloConfig{})
	snap := mustSnapshot(t, 100, 100, 0.5, 0.05, 0.2, models.OptionTypeCall)

	result, err := engine.Simulate(snap, 1, int64Ptr(3))
	require.NoError(t, err)

	// One path has zero sample variance, not NaN.
	assert.Equal(t, 0.0, result.StdError)
	assert.Equal(t, result.MeanPayoff, result.ConfidenceInterval.Low)
	assert.Equal(t, result.MeanPayoff, result.ConfidenceInterval.High)
	assert.True(t, result.LowConfidence)
}

func TestSimulateRejectsBadPathCount(t *testing.T) {
	engine := NewMonteCarloEngine(MonteCarloConfig{})
	snap := mustSnapshot(t, 100, 100, 0.5, 0.05, 0.2, models.OptionTypeCall)

	_, err := engine.Simulate(snap, 0, nil)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
}

func TestSimulateUnseededRunsDiffer(t *testing.T) {
	engine := NewMonteCarloEngine(MonteCarloConfig{})
	snap := mustSnapshot(t, 100, 100, 0.5, 0.05, 0.2, models.OptionTypeCall)

	a, err := engine.Simulate(snap, 10000, nil)
	require.NoError(t, err)
	b, err := engine.Simulate(snap, 10000, nil)
	require.NoError(t, err)

	assert.NotEqual(t, a.Seed, b.Seed)
}

func TestSimulatePathsShape(t *testing.T) {
	engine := NewMonteCarloEngine(MonteCarloConfig{})
	snap := mustSnapshot(t, 100, 100, 0.5, 0.05, 0.2, models.OptionTypeCall)

	paths, err := engine.SimulatePaths(snap, 50, 20, int64Ptr(5))
	require.NoError(t, err)

	require.Len(t, paths.Times, 51)
	require.Len(t, paths.Paths, 20)
	assert.Equal(t, 0.0, paths.Times[0])
	assert.InDelta(t, 0.5, paths.Times[50], 1e-12)
	for _, path := range paths.Paths {
		require.Len(t, path, 51)
		assert.Equal(t, 100.0, path[0])
		for _, price := range path {
			assert.Greater(t, price, 0.0)
		}
	}
	assert.GreaterOrEqual(t, paths.ProbITM, 0.0)
	assert.LessOrEqual(t, paths.ProbITM, 1.0)
}

func TestSimulatePathsSeededDeterminism(t *testing.T) {
	engine := NewMonteCarloEngine(MonteCarloConfig{})
	snap := mustSnapshot(t, 100, 100, 0.25, 0.05, 0.3, models.OptionTypePut)

	a, err := engine.SimulatePaths(snap, 10, 5, int64Ptr(99))
	require.NoError(t, err)
	b, err := engine.SimulatePaths(snap, 10, 5, int64Ptr(99))
	require.NoError(t, err)

	assert.Equal(t, a.Paths, b.Paths)
}
