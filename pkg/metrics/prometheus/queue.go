package prometheus

import (
	"github.com/marmos91/dittofiles/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// queueMetrics is the Prometheus implementation of metrics.QueueMetrics.
type queueMetrics struct {
	enqueueTotal *prometheus.CounterVec
	depth        *prometheus.GaugeVec
}

// NewQueueMetrics creates a new Prometheus-backed QueueMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled.
func NewQueueMetrics() metrics.QueueMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopQueueMetrics()
	}

	reg := metrics.GetRegistry()

	return &queueMetrics{
		enqueueTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittofiles_queue_enqueue_total",
				Help: "Thumbnail job enqueue attempts by status",
			},
			[]string{"status"},
		),
		depth: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittofiles_queue_jobs",
				Help: "Thumbnail jobs by state (ready, in_flight, dead)",
			},
			[]string{"state"},
		),
	}
}

func (m *queueMetrics) RecordEnqueue(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.enqueueTotal.WithLabelValues(status).Inc()
}

func (m *queueMetrics) SetDepth(ready, inFlight, dead int64) {
	m.depth.WithLabelValues("ready").Set(float64(ready))
	m.depth.WithLabelValues("in_flight").Set(float64(inFlight))
	m.depth.WithLabelValues("dead").Set(float64(dead))
}
