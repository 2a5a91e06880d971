package config

import (
	"fmt"

	"github.com/marmos91/dittofiles/pkg/adapter"
	"github.com/marmos91/dittofiles/pkg/adapter/rest"
	"github.com/marmos91/dittofiles/pkg/gc"
	"github.com/marmos91/dittofiles/pkg/metrics"
	"github.com/marmos91/dittofiles/pkg/registry"
	"github.com/marmos91/dittofiles/pkg/thumbnail"
)

// CreateAdapters creates all enabled client-facing adapters.
//
// Parameters:
//   - cfg: The complete configuration
//   - httpMetrics: Optional HTTP metrics collector (nil = no metrics)
func CreateAdapters(cfg *Config, httpMetrics metrics.HTTPMetrics) ([]adapter.Adapter, error) {
	var adapters []adapter.Adapter

	if cfg.HTTP.Enabled {
		adapters = append(adapters, rest.New(cfg.HTTP, httpMetrics))
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters enabled in configuration")
	}

	return adapters, nil
}

// CreateThumbnailWorker returns the worker consuming reg's queue, or nil
// when thumbnails are disabled.
func CreateThumbnailWorker(cfg *Config, reg *registry.Registry, m *MetricsResult) *thumbnail.Worker {
	if !cfg.Thumbnails.Enabled || reg.Queue() == nil {
		return nil
	}

	return thumbnail.NewWorker(thumbnail.Config{
		Widths:        cfg.Thumbnails.Widths,
		Concurrency:   cfg.Thumbnails.Concurrency,
		JobTimeout:    cfg.Thumbnails.JobTimeout,
		JobsPerSecond: cfg.Thumbnails.JobsPerSecond,
		MaxPixels:     cfg.Thumbnails.MaxPixels,
	}, reg.Queue(), reg.Metadata(), reg.Content(), m.Thumbnail, m.Queue)
}

// CreateCollector returns the orphaned blob collector, or nil when it is
// disabled.
func CreateCollector(cfg *Config, reg *registry.Registry, m *MetricsResult) *gc.Collector {
	if !cfg.GC.Enabled {
		return nil
	}

	return gc.NewCollector(reg.Metadata(), reg.Content(), gc.Config{
		Interval:    cfg.GC.Interval,
		GracePeriod: cfg.GC.GracePeriod,
		DryRun:      cfg.GC.DryRun,
	}, m.GC)
}
