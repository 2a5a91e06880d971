package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/adapter"
	"github.com/marmos91/dittofiles/pkg/gc"
	"github.com/marmos91/dittofiles/pkg/metrics"
	"github.com/marmos91/dittofiles/pkg/registry"
	"github.com/marmos91/dittofiles/pkg/thumbnail"
)

// ErrAlreadyServed is returned by a second call to Serve.
var ErrAlreadyServed = errors.New("server: Serve has already been called")

// DittoServer runs the client-facing adapters together with the background
// workers that share their registry.
//
// Lifecycle:
//  1. Creation: New() with the registry
//  2. Registration: AddAdapter() for each transport, SetThumbnailWorker(),
//     SetCollector() and SetMetricsServer() for optional components
//  3. Startup: Serve() starts everything concurrently
//  4. Shutdown: Context cancellation stops adapters first, so no new jobs
//     arrive, then the background components
//
// The registry is not closed by the server; the caller owns it.
//
// Example usage:
//
//	srv := server.New(reg, server.Options{ShutdownTimeout: 30 * time.Second})
//	srv.AddAdapter(rest.New(restConfig, httpMetrics))
//	srv.SetThumbnailWorker(worker)
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := srv.Serve(ctx); err != nil && err != context.Canceled {
//	    log.Fatal(err)
//	}
type DittoServer struct {
	registry *registry.Registry
	options  Options

	adapters  []adapter.Adapter
	worker    *thumbnail.Worker
	collector *gc.Collector
	metrics   *metrics.Server

	mu     sync.Mutex
	served bool
}

// Options configures the server.
type Options struct {
	// ShutdownTimeout bounds the whole graceful shutdown. Default: 30s
	ShutdownTimeout time.Duration
}

// New creates a server around reg.
//
// Panics if reg is nil (indicates programmer error).
func New(reg *registry.Registry, opts Options) *DittoServer {
	if reg == nil {
		panic("registry cannot be nil")
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 30 * time.Second
	}

	return &DittoServer{
		registry: reg,
		options:  opts,
		adapters: make([]adapter.Adapter, 0, 2),
	}
}

// AddAdapter injects the registry into a and registers it.
//
// Returns an error if the server is already serving, or another adapter
// has the same protocol or port.
func (s *DittoServer) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		return fmt.Errorf("cannot add adapter after Serve() has been called")
	}

	protocol := a.Protocol()
	port := a.Port()
	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if port != 0 && existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter", port, existing.Protocol())
		}
	}

	a.SetRegistry(s.registry)
	s.adapters = append(s.adapters, a)

	logger.Info("Registered %s adapter on port %d", protocol, port)
	return nil
}

// SetThumbnailWorker registers the worker started and stopped with the
// server.
func (s *DittoServer) SetThumbnailWorker(w *thumbnail.Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.worker = w
}

// SetCollector registers the blob collector started and stopped with the
// server.
func (s *DittoServer) SetCollector(c *gc.Collector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collector = c
}

// SetMetricsServer registers the operational endpoint server.
func (s *DittoServer) SetMetricsServer(m *metrics.Server) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

// Adapters returns a snapshot of the registered adapters.
func (s *DittoServer) Adapters() []adapter.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}

// adapterError pairs an adapter protocol name with its error.
type adapterError struct {
	protocol string
	err      error
}

// Serve starts every registered component and blocks until ctx is
// cancelled or an adapter fails.
//
// Returns:
//   - ctx.Err() when shutdown was triggered by the context
//   - the adapter's error if one failed
//   - ErrAlreadyServed on a second call
func (s *DittoServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return ErrAlreadyServed
	}
	if len(s.adapters) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("no adapters registered; call AddAdapter() before Serve()")
	}
	s.served = true
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	worker, collector, metricsServer := s.worker, s.collector, s.metrics
	s.mu.Unlock()

	logger.Info("Starting DittoServer with %d adapter(s)", len(adapters))

	// ========================================================================
	// Step 1: Background components
	// ========================================================================

	// Components get their own context so they outlive the adapters during
	// shutdown.
	bgCtx, bgCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer bgCancel()

	if worker != nil {
		worker.Start(bgCtx)
	}
	if collector != nil {
		collector.Start()
	}

	metricsDone := make(chan struct{})
	if metricsServer != nil {
		go func() {
			defer close(metricsDone)
			if err := metricsServer.Start(bgCtx); err != nil {
				logger.Error("Metrics server failed: %v", err)
			}
		}()
	} else {
		close(metricsDone)
	}

	// ========================================================================
	// Step 2: Adapters
	// ========================================================================

	errChan := make(chan adapterError, len(adapters))
	var wg sync.WaitGroup

	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			protocol := a.Protocol()
			logger.Info("Starting %s adapter on port %d", protocol, a.Port())

			err := a.Serve(ctx)
			switch {
			case err == nil:
				logger.Info("%s adapter stopped", protocol)
			case ctx.Err() != nil:
				logger.Debug("%s adapter stopped: %v", protocol, err)
			default:
				errChan <- adapterError{protocol: protocol, err: err}
			}
		}(adp)
	}

	// ========================================================================
	// Step 3: Wait, then shut down in dependency order
	// ========================================================================

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		shutdownErr = ctx.Err()
	case adapterErr := <-errChan:
		logger.Error("Adapter %s failed: %v - initiating shutdown", adapterErr.protocol, adapterErr.err)
		shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), s.options.ShutdownTimeout)
	defer cancel()

	s.stopAllAdapters(stopCtx, adapters)
	wg.Wait()

	if worker != nil {
		if err := worker.Stop(stopCtx); err != nil {
			logger.Warn("Thumbnail worker did not stop cleanly: %v", err)
		}
	}
	if collector != nil {
		if err := collector.Stop(stopCtx); err != nil {
			logger.Warn("Garbage collector did not stop cleanly: %v", err)
		}
	}

	bgCancel()
	select {
	case <-metricsDone:
	case <-stopCtx.Done():
		logger.Warn("Metrics server shutdown timeout")
	}

	logger.Info("DittoServer stopped")
	return shutdownErr
}

// stopAllAdapters stops adapters in reverse registration order. Errors are
// logged and do not prevent the remaining adapters from stopping.
func (s *DittoServer) stopAllAdapters(ctx context.Context, adapters []adapter.Adapter) {
	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		if err := adp.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", adp.Protocol(), err)
		}
	}
}
