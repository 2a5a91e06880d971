package config

import (
	"github.com/marmos91/dittofiles/pkg/metrics"
	promMetrics "github.com/marmos91/dittofiles/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Enabled reports whether Prometheus collection is on
	Enabled bool

	// Collectors are never nil; no-op implementations are used when disabled
	HTTP      metrics.HTTPMetrics
	Thumbnail metrics.ThumbnailMetrics
	Queue     metrics.QueueMetrics
	GC        metrics.GCMetrics
	Metadata  metrics.MetadataMetrics
	S3        metrics.S3Metrics
}

// InitializeMetrics creates the metrics collectors.
//
// If metrics are enabled, the global Prometheus registry is initialized and
// Prometheus-backed collectors are returned. Otherwise every collector is a
// no-op (zero overhead).
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return &MetricsResult{
			HTTP:      metrics.NewNoopHTTPMetrics(),
			Thumbnail: metrics.NewNoopThumbnailMetrics(),
			Queue:     metrics.NewNoopQueueMetrics(),
			GC:        metrics.NewNoopGCMetrics(),
			Metadata:  metrics.NewNoopMetadataMetrics(),
			S3:        metrics.NewNoopS3Metrics(),
		}
	}

	metrics.InitRegistry()

	return &MetricsResult{
		Enabled:   true,
		HTTP:      promMetrics.NewHTTPMetrics(),
		Thumbnail: promMetrics.NewThumbnailMetrics(),
		Queue:     promMetrics.NewQueueMetrics(),
		GC:        promMetrics.NewGCMetrics(),
		Metadata:  promMetrics.NewMetadataMetrics(cfg.Metadata.Type),
		S3:        promMetrics.NewS3Metrics(),
	}
}

// CreateMetricsServer returns the /metrics and /healthz server, or nil when
// metrics are disabled. health backs /healthz.
func CreateMetricsServer(cfg *Config, health metrics.HealthFunc) *metrics.Server {
	if !cfg.Server.Metrics.Enabled {
		return nil
	}

	return metrics.NewServer(metrics.ServerConfig{
		Port:            cfg.Server.Metrics.Port,
		Health:          health,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
}
