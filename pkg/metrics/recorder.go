package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder handles metrics recording and exposure
type Recorder struct {
	// API metrics
	apiRequestCounter   *prometheus.CounterVec
	apiLatencyHistogram *prometheus.HistogramVec

	// Pricing metrics
	pricingCounter *prometheus.CounterVec
	pricingLatency *prometheus.HistogramVec

	// Simulation metrics
	simulationCounter *prometheus.CounterVec
	simulationLatency *prometheus.HistogramVec
	simulationPaths   prometheus.Histogram

	// Detector metrics
	signalCounter  *prometheus.CounterVec
	ivHvSpread     prometheus.Histogram
	quotesConsumed *prometheus.CounterVec
}

// NewRecorder creates a recorder registered on the default registry
func NewRecorder() *Recorder {
	return NewRecorderWith(prometheus.DefaultRegisterer)
}

// NewRecorderWith creates a recorder on a caller-provided registerer,
// so tests can use an isolated registry
func NewRecorderWith(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		apiRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vol_api_requests_total",
				Help: "The total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		apiLatencyHistogram: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vol_api_latency_seconds",
				Help:    "API request latency distribution",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
			},
			[]string{"method", "path"},
		),
		pricingCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vol_pricing_calculations_total",
				Help: "The total number of closed-form pricing calculations",
			},
			[]string{"option_type", "result"},
		),
		pricingLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vol_pricing_duration_seconds",
				Help:    "Closed-form pricing latency",
				Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
			},
			[]string{"option_type"},
		),
		simulationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vol_simulations_total",
				Help: "The total number of Monte Carlo simulation runs",
			},
			[]string{"option_type", "result"},
		),
		simulationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vol_simulation_duration_seconds",
				Help:    "Monte Carlo simulation latency",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"option_type"},
		),
		simulationPaths: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vol_simulation_paths",
				Help:    "Path counts of simulation runs",
				Buckets: prometheus.ExponentialBuckets(1000, 2, 10),
			},
		),
		signalCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vol_signals_total",
				Help: "The total number of mispricing signals by regime",
			},
			[]string{"regime"},
		),
		ivHvSpread: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vol_iv_hv_spread",
				Help:    "Observed implied minus historical volatility spreads",
				Buckets: prometheus.LinearBuckets(-0.25, 0.05, 11),
			},
		),
		quotesConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vol_quotes_consumed_total",
				Help: "The total number of option quotes consumed from the feed",
			},
			[]string{"result"},
		),
	}
}

// RecordAPIRequest records metrics for an API request
func (r *Recorder) RecordAPIRequest(method, path string, status int, duration time.Duration) {
	r.apiRequestCounter.WithLabelValues(method, path, statusLabel(status)).Inc()
	r.apiLatencyHistogram.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordPricing records a closed-form pricing calculation
func (r *Recorder) RecordPricing(optionType string, err error, duration time.Duration) {
	r.pricingCounter.WithLabelValues(optionType, resultLabel(err)).Inc()
	r.pricingLatency.WithLabelValues(optionType).Observe(duration.Seconds())
}

// RecordSimulation records a Monte Carlo run
func (r *Recorder) RecordSimulation(optionType string, paths int, err error, duration time.Duration) {
	r.simulationCounter.WithLabelValues(optionType, resultLabel(err)).Inc()
	r.simulationLatency.WithLabelValues(optionType).Observe(duration.Seconds())
	if err == nil {
		r.simulationPaths.Observe(float64(paths))
	}
}

// RecordSignal records a detector classification
func (r *Recorder) RecordSignal(regime string, spread float64) {
	r.signalCounter.WithLabelValues(regime).Inc()
	r.ivHvSpread.Observe(spread)
}

// RecordQuoteConsumed records the outcome of handling one feed quote
func (r *Recorder) RecordQuoteConsumed(err error) {
	r.quotesConsumed.WithLabelValues(resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
