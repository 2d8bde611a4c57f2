package optimizer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// optimizationDuration tracks the wall time of a full Optimize call.
	optimizationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "basket_optimization_duration_seconds",
		Help:    "Time taken for a basket optimization by winning strategy",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	}, []string{"strategy"}) // strategy: exhaustive, sampling, genetic, local_search, simple, none

	// optimizationOutcomes counts results by reason.
	optimizationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "basket_optimization_outcomes_total",
		Help: "Total number of optimization results by reason",
	}, []string{"reason"}) // reason: ok, empty_basket, no_offers, shop_limit_infeasible, search_exhausted

	// strategyDuration tracks the time spent inside each strategy run.
	strategyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "basket_strategy_duration_seconds",
		Help:    "Time spent in a single search strategy run",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
	}, []string{"strategy"})

	// combinationsEvaluated tracks how many assignments each strategy scored.
	combinationsEvaluated = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "basket_combinations_evaluated",
		Help:    "Number of assignments scored by a strategy run",
		Buckets: []float64{1, 10, 100, 1000, 5000, 10000, 50000},
	}, []string{"strategy"})

	// basketSize tracks the distribution of basket sizes.
	basketSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "basket_lines_count",
		Help:    "Number of lines in optimization requests",
		Buckets: []float64{1, 5, 10, 20, 50, 100},
	})

	// needCount tracks the number of needs after aggregation.
	needCount = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "basket_needs_count",
		Help:    "Number of needs after substitute-group aggregation",
		Buckets: []float64{1, 5, 10, 20, 50, 100},
	})

	// substitutesUsed counts substitute offers chosen in returned plans.
	substitutesUsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "basket_substitutes_used_total",
		Help: "Total number of substitute products chosen in returned plans",
	})

	// quantitySuggestions counts applied quantity increments.
	quantitySuggestions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "basket_quantity_suggestions_applied_total",
		Help: "Total number of quantity increments applied to reach free shipping",
	})

	// snapshotLoadDuration tracks the time taken to load a catalog snapshot.
	snapshotLoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "basket_snapshot_load_duration_seconds",
		Help:    "Time taken to load a catalog snapshot by source",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"source"})

	// snapshotLoadErrors tracks snapshot load failures.
	snapshotLoadErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "basket_snapshot_load_errors_total",
		Help: "Total number of catalog snapshot load errors by source",
	}, []string{"source"})

	// snapshotAge tracks the age of the served snapshot.
	snapshotAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "basket_snapshot_age_seconds",
		Help: "Age of the catalog snapshot currently served",
	})

	// snapshotPrices tracks the number of price records in the served snapshot.
	snapshotPrices = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "basket_snapshot_prices_count",
		Help: "Number of price records in the catalog snapshot currently served",
	})
)

// MetricsRecorder provides methods to record optimizer metrics.
// A nil recorder is valid and records nothing.
type MetricsRecorder struct{}

// NewMetricsRecorder creates a new metrics recorder.
func NewMetricsRecorder() *MetricsRecorder {
	return &MetricsRecorder{}
}

// RecordOptimization records a finished Optimize call.
func (m *MetricsRecorder) RecordOptimization(strategy, reason string, duration time.Duration) {
	if m == nil {
		return
	}
	optimizationDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	optimizationOutcomes.WithLabelValues(reason).Inc()
}

// RecordStrategyRun records one strategy run.
func (m *MetricsRecorder) RecordStrategyRun(strategy string, duration time.Duration, evaluated int) {
	if m == nil {
		return
	}
	strategyDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	combinationsEvaluated.WithLabelValues(strategy).Observe(float64(evaluated))
}

// RecordBasket records basket and need counts of a request.
func (m *MetricsRecorder) RecordBasket(lines, needs int) {
	if m == nil {
		return
	}
	basketSize.Observe(float64(lines))
	needCount.Observe(float64(needs))
}

// RecordPlan records substitute and quantity-suggestion counts of a returned plan.
func (m *MetricsRecorder) RecordPlan(substitutes, suggestions int) {
	if m == nil {
		return
	}
	substitutesUsed.Add(float64(substitutes))
	quantitySuggestions.Add(float64(suggestions))
}

// RecordSnapshotLoad records a snapshot load operation.
func (m *MetricsRecorder) RecordSnapshotLoad(source string, duration time.Duration, success bool) {
	if m == nil {
		return
	}
	snapshotLoadDuration.WithLabelValues(source).Observe(duration.Seconds())
	if !success {
		snapshotLoadErrors.WithLabelValues(source).Inc()
	}
}

// RecordSnapshot records the age and size of the snapshot being served.
func (m *MetricsRecorder) RecordSnapshot(age time.Duration, prices int) {
	if m == nil {
		return
	}
	snapshotAge.Set(age.Seconds())
	snapshotPrices.Set(float64(prices))
}
