package prometheus

import (
	"time"

	"github.com/marmos91/dittofiles/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// gcMetrics is the Prometheus implementation of metrics.GCMetrics.
type gcMetrics struct {
	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	blobsScanned   prometheus.Counter
	blobsRemoved   prometheus.Counter
	bytesReclaimed prometheus.Counter
}

// NewGCMetrics creates a new Prometheus-backed GCMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled.
func NewGCMetrics() metrics.GCMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopGCMetrics()
	}

	reg := metrics.GetRegistry()

	return &gcMetrics{
		runsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittofiles_gc_runs_total",
				Help: "Blob collection passes by status",
			},
			[]string{"status"},
		),
		runDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dittofiles_gc_run_duration_seconds",
				Help:    "Duration of blob collection passes in seconds",
				Buckets: []float64{0.01, 0.1, 1, 10, 60, 300},
			},
		),
		blobsScanned: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittofiles_gc_blobs_scanned_total",
				Help: "Blobs inspected by the collector",
			},
		),
		blobsRemoved: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittofiles_gc_blobs_removed_total",
				Help: "Orphaned blobs deleted by the collector",
			},
		),
		bytesReclaimed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittofiles_gc_bytes_reclaimed_total",
				Help: "Bytes reclaimed by the collector",
			},
		),
	}
}

func (m *gcMetrics) RecordRun(scanned, removed int, bytes int64, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(duration.Seconds())
	m.blobsScanned.Add(float64(scanned))
	m.blobsRemoved.Add(float64(removed))
	m.bytesReclaimed.Add(float64(bytes))
}
