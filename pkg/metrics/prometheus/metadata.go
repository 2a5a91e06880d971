package prometheus

import (
	"time"

	"github.com/marmos91/dittofiles/pkg/metrics"
	"github.com/marmos91/dittofiles/pkg/store/metadata"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metadataMetrics is the Prometheus implementation of metrics.MetadataMetrics.
type metadataMetrics struct {
	storeType         string
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

// NewMetadataMetrics creates a Prometheus-backed MetadataMetrics labelled
// with storeType ("memory", "badger").
//
// Returns a no-op implementation if metrics are not enabled.
func NewMetadataMetrics(storeType string) metrics.MetadataMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopMetadataMetrics()
	}

	reg := metrics.GetRegistry()

	return &metadataMetrics{
		storeType: storeType,
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittofiles_metadata_operations_total",
				Help: "Metadata store calls by store type, operation and status",
			},
			[]string{"store_type", "operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittofiles_metadata_operation_duration_seconds",
				Help: "Duration of metadata store calls in seconds",
				Buckets: []float64{
					0.0001, // 100µs
					0.0005, // 500µs
					0.001,  // 1ms
					0.005,  // 5ms
					0.01,   // 10ms
					0.05,   // 50ms
					0.1,    // 100ms
					0.5,    // 500ms
					1.0,    // 1s
				},
			},
			[]string{"store_type", "operation"},
		),
	}
}

// RecordOperation counts lookups of missing records as "not_found" rather
// than "error".
func (m *metadataMetrics) RecordOperation(operation string, duration time.Duration, err error) {
	status := "success"
	switch {
	case err == nil:
	case metadata.IsNotFound(err):
		status = "not_found"
	default:
		status = "error"
	}

	m.operationsTotal.WithLabelValues(m.storeType, operation, status).Inc()
	m.operationDuration.WithLabelValues(m.storeType, operation).Observe(duration.Seconds())
}
