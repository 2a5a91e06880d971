// Package metrics holds the observability contracts used across DittoFiles:
// one small interface per component (HTTP, thumbnails, queue, metadata, S3,
// GC) plus the process-wide Prometheus registry the prometheus subpackage
// registers into.
//
// Collection is off until InitRegistry runs. Until then every constructor in
// pkg/metrics/prometheus hands back a no-op, and components given a nil
// interface use the no-op of their own package.
//
//	metrics.InitRegistry()
//	httpMetrics := prometheus.NewHTTPMetrics()
//	worker := thumbnail.NewWorker(cfg, deps, nil) // nothing recorded
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var registry atomic.Pointer[prometheus.Registry]

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// InitRegistry enables collection. Only the first call creates the registry.
// Constructors called before it return no-op implementations.
func InitRegistry() {
	registry.CompareAndSwap(nil, newRegistry())
}

// GetRegistry returns the registry, or nil while collection is disabled.
func GetRegistry() *prometheus.Registry {
	return registry.Load()
}

// IsEnabled reports whether InitRegistry has run.
func IsEnabled() bool {
	return registry.Load() != nil
}

// ResetRegistryForTesting swaps in a fresh registry so collectors can be
// registered again by the next test.
func ResetRegistryForTesting() {
	registry.Store(newRegistry())
}
