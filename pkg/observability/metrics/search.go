package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	// queryResolutionsTotal counts placeholder resolutions of declared queries.
	// Labels: mode, outcome
	queryResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchrepo_query_resolutions_total",
			Help: "Total declared query template resolutions",
		},
		[]string{"mode", "outcome"},
	)

	// operationsTotal counts repository operations.
	// Labels: operation, outcome
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchrepo_operations_total",
			Help: "Total repository operations",
		},
		[]string{"operation", "outcome"},
	)

	// operationDuration tracks repository operation latency in seconds.
	// Labels: operation
	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "searchrepo_operation_duration_seconds",
			Help:    "Repository operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// cacheResultsTotal counts query result cache lookups.
	// Labels: result (hit, miss, error)
	cacheResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchrepo_cache_results_total",
			Help: "Total query result cache outcomes",
		},
		[]string{"result"},
	)
)

// RecordQueryResolution counts one template resolution.
func RecordQueryResolution(mode string, err error) {
	queryResolutionsTotal.WithLabelValues(mode, outcome(err)).Inc()
}

// RecordOperation updates the operation counter and duration histogram.
func RecordOperation(operation string, err error, duration time.Duration) {
	operationsTotal.WithLabelValues(operation, outcome(err)).Inc()
	operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCacheResult counts one cache lookup: hit, miss or error.
func RecordCacheResult(result string) {
	cacheResultsTotal.WithLabelValues(result).Inc()
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
