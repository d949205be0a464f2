package analytics

import (
	"math"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rzzdr/vol-analytics-engine/pkg/models"
	"github.com/rzzdr/vol-analytics-engine/pkg/utils/errors"
	"github.com/rzzdr/vol-analytics-engine/pkg/utils/logger"
	"github.com/rzzdr/vol-analytics-engine/pkg/utils/pools"
)

// seedStride decorrelates per-batch RNG streams derived from one master
// seed. Knuth's multiplicative hash constant.
const seedStride = 2654435761

// MonteCarloConfig contains configuration for the Monte Carlo engine
type MonteCarloConfig struct {
	// RecommendedPaths is the floor below which results are flagged as
	// low confidence. This is a design target, not a hard limit.
	RecommendedPaths int
	// BatchSize is the number of paths sampled per parallel batch
	BatchSize int
	// Workers bounds the number of concurrent sampling goroutines
	Workers int
}

// MonteCarloEngine prices European payoffs by single-step GBM terminal
// sampling. Sampling runs in parallel batches, but each batch derives
// its RNG stream from the master seed and its own index and writes into
// a disjoint slice region, so a seeded run is bit-identical no matter
// how the batches are scheduled.
type MonteCarloEngine struct {
	config  MonteCarloConfig
	buffers *pools.Float64SlicePool
	log     *logger.Logger
}

// NewMonteCarloEngine creates a new Monte Carlo engine
func NewMonteCarloEngine(config MonteCarloConfig) *MonteCarloEngine {
	if config.RecommendedPaths <= 0 {
		config.RecommendedPaths = 25000
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 4096
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}
	return &MonteCarloEngine{
		config:  config,
		buffers: pools.NewFloat64SlicePool(config.RecommendedPaths),
		log:     logger.GetLogger("analytics.montecarlo"),
	}
}

// Simulate draws pathCount terminal prices under GBM and aggregates the
// discounted payoff distribution. A nil seed means an independent run;
// the seed actually used is echoed in the result either way.
func (e *MonteCarloEngine) Simulate(snap models.MarketSnapshot, pathCount int, seed *int64) (models.SimulationResult, error) {
	if err := validateSnapshot(snap); err != nil {
		return models.SimulationResult{}, err
	}
	if pathCount < 1 {
		return models.SimulationResult{}, errors.InvalidInputf("pathCount must be at least 1, got %d", pathCount)
	}

	masterSeed := time.Now().UnixNano()
	if seed != nil {
		masterSeed = *seed
	}

	payoffs := e.buffers.Get(pathCount)
	defer e.buffers.Put(payoffs)
	drift := (snap.Rate - 0.5*snap.Volatility*snap.Volatility) * snap.TimeToExpiry
	diffusion := snap.Volatility * math.Sqrt(snap.TimeToExpiry)
	discount := math.Exp(-snap.Rate * snap.TimeToExpiry)
	isCall := snap.OptionType == models.OptionTypeCall

	var g errgroup.Group
	g.SetLimit(e.config.Workers)
	for batch := 0; batch*e.config.BatchSize < pathCount; batch++ {
		lo := batch * e.config.BatchSize
		hi := lo + e.config.BatchSize
		if hi > pathCount {
			hi = pathCount
		}
		rng := rand.New(rand.NewSource(masterSeed + int64(batch+1)*seedStride))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				z := drawStandardNormal(rng)
				terminal := snap.Spot * math.Exp(drift+diffusion*z)
				var payoff float64
				if isCall {
					payoff = math.Max(terminal-snap.Strike, 0)
				} else {
					payoff = math.Max(snap.Strike-terminal, 0)
				}
				payoffs[i] = discount * payoff
			}
			return nil
		})
	}
	// Batch goroutines cannot fail; Wait only synchronizes them.
	_ = g.Wait()

	// Aggregate sequentially in path order so the result does not depend
	// on scheduling.
	var sum, sumSq float64
	itm := 0
	for _, p := range payoffs {
		sum += p
		sumSq += p * p
		if p > 0 {
			itm++
		}
	}

	n := float64(pathCount)
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0 // float round-off on degenerate distributions
	}
	stdError := math.Sqrt(variance) / math.Sqrt(n)

	result := models.SimulationResult{
		Paths:      pathCount,
		Seed:       masterSeed,
		MeanPayoff: mean,
		ProbITM:    float64(itm) / n,
		StdError:   stdError,
		ConfidenceInterval: models.ConfidenceInterval{
			Low:  mean - 1.96*stdError,
			High: mean + 1.96*stdError,
		},
		LowConfidence: pathCount < e.config.RecommendedPaths,
	}

	if result.LowConfidence {
		e.log.Warnf("simulation ran %d paths, below the recommended %d; treat the error band as advisory",
			pathCount, e.config.RecommendedPaths)
	}

	return result, nil
}

// SimulatePaths walks full GBM trajectories on a steps-grid for the
// rendering collaborator. The aggregate statistics of Simulate do not
// depend on this; it exists so a chart can show individual futures.
func (e *MonteCarloEngine) SimulatePaths(snap models.MarketSnapshot, steps, pathCount int, seed *int64) (models.SimulatedPaths, error) {
	if err := validateSnapshot(snap); err != nil {
		return models.SimulatedPaths{}, err
	}
	if steps < 1 {
		return models.SimulatedPaths{}, errors.InvalidInputf("steps must be at least 1, got %d", steps)
	}
	if pathCount < 1 {
		return models.SimulatedPaths{}, errors.InvalidInputf("pathCount must be at least 1, got %d", pathCount)
	}

	masterSeed := time.Now().UnixNano()
	if seed != nil {
		masterSeed = *seed
	}
	rng := rand.New(rand.NewSource(masterSeed))

	dt := snap.TimeToExpiry / float64(steps)
	drift := (snap.Rate - 0.5*snap.Volatility*snap.Volatility) * dt
	diffusion := snap.Volatility * math.Sqrt(dt)

	times := make([]float64, steps+1)
	for i := range times {
		times[i] = float64(i) * dt
	}

	paths := make([][]float64, pathCount)
	itm := 0
	for p := range paths {
		path := make([]float64, steps+1)
		path[0] = snap.Spot
		logPrice := math.Log(snap.Spot)
		for i := 1; i <= steps; i++ {
			logPrice += drift + diffusion*drawStandardNormal(rng)
			path[i] = math.Exp(logPrice)
		}
		paths[p] = path

		terminal := path[steps]
		if (snap.OptionType == models.OptionTypeCall && terminal > snap.Strike) ||
			(snap.OptionType == models.OptionTypePut && terminal < snap.Strike) {
			itm++
		}
	}

	return models.SimulatedPaths{
		Times:   times,
		Paths:   paths,
		ProbITM: float64(itm) / float64(pathCount),
	}, nil
}

// drawStandardNormal generates a standard normal variate by the
// Box-Muller transform
func drawStandardNormal(rng *rand.Rand) float64 {
	u1 := 1 - rng.Float64() // (0, 1]: keeps the log finite
	u2 := rng.Float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}
