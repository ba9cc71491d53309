package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const ServiceName = "snapgram"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status", "service"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "service"},
	)

	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapgram_operations_total",
			Help: "Total number of data-access operations by result kind",
		},
		[]string{"operation", "result", "service"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snapgram_operation_duration_seconds",
			Help:    "Duration of data-access operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation", "service"},
	)

	compensationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapgram_saga_compensations_total",
			Help: "Compensating actions executed by sagas",
		},
		[]string{"saga", "step", "status", "service"},
	)
)

// RecordOperation учитывает операцию; result - "ok" или класс ошибки
func RecordOperation(operation, result string, duration time.Duration) {
	operationsTotal.WithLabelValues(operation, result, ServiceName).Inc()
	operationDuration.WithLabelValues(operation, ServiceName).Observe(duration.Seconds())
}

func RecordCompensation(saga, step string, err error) {
	status := "ok"
	if err != nil {
		status = "failed"
	}
	compensationsTotal.WithLabelValues(saga, step, status, ServiceName).Inc()
}
