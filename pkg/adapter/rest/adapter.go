// Package rest exposes the file service over a JSON HTTP API.
//
// Routes are served by a chi router. Authenticated routes read the session
// token from the X-Token header; GET /connect takes Basic credentials and
// issues that token. Every error answers {"error": "<message>"}.
package rest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/metrics"
	"github.com/marmos91/dittofiles/pkg/registry"
)

// RESTConfig holds configuration parameters for the REST adapter.
//
// Default values (applied by New if zero):
//   - Port: 5000
//   - ReadTimeout: 30s
//   - WriteTimeout: 60s
//   - IdleTimeout: 2m
//   - ShutdownTimeout: 30s
//   - MaxBodyBytes: 32 MiB
type RESTConfig struct {
	// Enabled controls whether the REST adapter is started.
	Enabled bool `mapstructure:"enabled"`

	// Port is the TCP port to listen on. 0 selects the default; tests use
	// ListenAddr instead.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// ListenAddr overrides Port with a full address, e.g. "127.0.0.1:0".
	ListenAddr string `mapstructure:"listen_addr"`

	// ReadTimeout bounds reading a whole request, body included.
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"min=0"`

	// WriteTimeout bounds writing the response.
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0"`

	// IdleTimeout closes keep-alive connections left idle.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"min=0"`

	// ShutdownTimeout bounds graceful shutdown when Serve's context ends.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`

	// MaxBodyBytes caps request bodies. Uploads carry base64 inline, so this
	// is roughly 4/3 of the largest accepted file.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes" validate:"min=0"`
}

// applyDefaults fills in zero values with sensible defaults.
func (c *RESTConfig) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 5000
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 60 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 2 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 32 << 20
	}
}

func (c *RESTConfig) addr() string {
	if c.ListenAddr != "" {
		return c.ListenAddr
	}
	return fmt.Sprintf(":%d", c.Port)
}

// RESTAdapter implements adapter.Adapter for the JSON API.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. The listener closes; no new connections are accepted
//  3. In-flight requests finish, up to the shutdown deadline
//
// Thread safety:
// All methods are safe for concurrent use. Stop is idempotent.
type RESTAdapter struct {
	config  RESTConfig
	metrics metrics.HTTPMetrics

	server *http.Server

	mu       sync.Mutex
	port     int
	registry *registry.Registry

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a RESTAdapter in a stopped state. Call SetRegistry, then
// Serve.
//
// Parameters:
//   - config: Adapter configuration; zero values take defaults
//   - httpMetrics: Optional metrics collector (nil for no metrics)
func New(config RESTConfig, httpMetrics metrics.HTTPMetrics) *RESTAdapter {
	config.applyDefaults()

	if httpMetrics == nil {
		httpMetrics = metrics.NewNoopHTTPMetrics()
	}

	return &RESTAdapter{
		config:  config,
		metrics: httpMetrics,
		server: &http.Server{
			Addr:         config.addr(),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
	}
}

// SetRegistry injects the services and builds the router.
func (a *RESTAdapter) SetRegistry(reg *registry.Registry) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.registry = reg
	a.server.Handler = newRouter(reg, a.metrics, a.config.MaxBodyBytes)
	logger.Debug("REST routes configured")
}

// Handler returns the router built by SetRegistry, or nil before it.
func (a *RESTAdapter) Handler() http.Handler {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server.Handler
}

// Serve listens and blocks until ctx is cancelled or the server fails.
func (a *RESTAdapter) Serve(ctx context.Context) error {
	if a.Handler() == nil {
		return errors.New("REST adapter: SetRegistry must be called before Serve")
	}

	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to create REST listener on %s: %w", a.server.Addr, err)
	}

	a.mu.Lock()
	a.port = ln.Addr().(*net.TCPAddr).Port
	a.mu.Unlock()

	logger.Info("REST server listening on port %d", a.Port())
	logger.Debug("REST config: read_timeout=%v write_timeout=%v idle_timeout=%v max_body_bytes=%d",
		a.config.ReadTimeout, a.config.WriteTimeout, a.config.IdleTimeout, a.config.MaxBodyBytes)

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("REST shutdown signal received: %v", ctx.Err())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
		defer cancel()
		return a.Stop(shutdownCtx)
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("REST server failed: %w", err)
		}
		// Stop was called directly; wait for it to finish.
		return a.Stop(context.Background())
	}
}

// Stop gracefully shuts the server down. Safe to call multiple times.
func (a *RESTAdapter) Stop(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		if err := a.server.Shutdown(ctx); err != nil {
			a.shutdownErr = fmt.Errorf("REST shutdown: %w", err)
			logger.Warn("REST server shutdown error: %v", err)
			return
		}
		logger.Info("REST server stopped")
	})
	return a.shutdownErr
}

// Protocol returns "REST".
func (a *RESTAdapter) Protocol() string {
	return "REST"
}

// Port returns the bound port once Serve is listening, else the configured
// port.
func (a *RESTAdapter) Port() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.port != 0 {
		return a.port
	}
	return a.config.Port
}
