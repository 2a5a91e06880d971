package prometheus

import (
	"strconv"
	"time"

	"github.com/marmos91/dittofiles/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// thumbnailMetrics is the Prometheus implementation of metrics.ThumbnailMetrics.
type thumbnailMetrics struct {
	jobsTotal       *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	thumbnailsTotal *prometheus.CounterVec
	thumbnailBytes  *prometheus.HistogramVec
}

// NewThumbnailMetrics creates a new Prometheus-backed ThumbnailMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled.
func NewThumbnailMetrics() metrics.ThumbnailMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopThumbnailMetrics()
	}

	reg := metrics.GetRegistry()

	return &thumbnailMetrics{
		jobsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittofiles_thumbnail_jobs_total",
				Help: "Thumbnail jobs processed by outcome (success, retry, dead)",
			},
			[]string{"outcome"},
		),
		jobDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dittofiles_thumbnail_job_duration_seconds",
				Help:    "Duration of thumbnail job deliveries in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"outcome"},
		),
		thumbnailsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittofiles_thumbnails_written_total",
				Help: "Thumbnail variants written by width",
			},
			[]string{"width"},
		),
		thumbnailBytes: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dittofiles_thumbnail_size_bytes",
				Help:    "Encoded size of thumbnail variants",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 7), // 1KB .. 4MB
			},
			[]string{"width"},
		),
	}
}

func (m *thumbnailMetrics) RecordJob(outcome string, duration time.Duration) {
	m.jobsTotal.WithLabelValues(outcome).Inc()
	m.jobDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *thumbnailMetrics) RecordThumbnail(width int, bytes int64) {
	label := strconv.Itoa(width)
	m.thumbnailsTotal.WithLabelValues(label).Inc()
	m.thumbnailBytes.WithLabelValues(label).Observe(float64(bytes))
}
