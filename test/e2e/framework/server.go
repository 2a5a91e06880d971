// Package framework runs a complete dittofiles server in-process for
// end-to-end tests and talks to it over HTTP.
package framework

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/config"
	"github.com/marmos91/dittofiles/pkg/registry"
	"github.com/marmos91/dittofiles/pkg/server"
)

// StoreType selects the backends of a test server.
type StoreType string

const (
	// StoreTypeMemory keeps every store in process memory.
	StoreTypeMemory StoreType = "memory"

	// StoreTypeBadger uses badger for metadata, sessions and the queue and
	// the filesystem for blobs. State survives a restart on the same DataDir.
	StoreTypeBadger StoreType = "badger"
)

// AllStoreTypes lists the configurations every end-to-end test runs on.
func AllStoreTypes() []StoreType {
	return []StoreType{StoreTypeMemory, StoreTypeBadger}
}

// TestServerConfig holds configuration for the test server.
type TestServerConfig struct {
	Stores StoreType

	// DataDir holds persistent stores. Defaults to a fresh t.TempDir().
	DataDir string

	LogLevel       string
	StartupTimeout time.Duration
}

// TestServer wraps a DittoServer for testing.
type TestServer struct {
	t      testing.TB
	config TestServerConfig

	reg     *registry.Registry
	port    int
	cancel  context.CancelFunc
	done    chan error
	started bool
	mu      sync.Mutex
}

// NewTestServer creates a test server. Call Start to serve.
func NewTestServer(t testing.TB, config TestServerConfig) *TestServer {
	t.Helper()

	if config.Stores == "" {
		config.Stores = StoreTypeMemory
	}
	if config.DataDir == "" {
		config.DataDir = t.TempDir()
	}
	if config.LogLevel == "" {
		config.LogLevel = "ERROR"
	}
	if config.StartupTimeout == 0 {
		config.StartupTimeout = 10 * time.Second
	}

	return &TestServer{t: t, config: config}
}

// appConfig builds the server configuration for the selected stores.
func (ts *TestServer) appConfig(port int) *config.Config {
	cfg := config.GetDefaultConfig()

	cfg.HTTP.Port = port
	cfg.HTTP.ListenAddr = fmt.Sprintf("127.0.0.1:%d", port)
	cfg.Queue.InitialBackoff = 10 * time.Millisecond
	cfg.Queue.MaxBackoff = 50 * time.Millisecond
	cfg.Queue.MaxAttempts = 2
	cfg.GC.Enabled = false

	switch ts.config.Stores {
	case StoreTypeBadger:
		cfg.Metadata.Type = "badger"
		cfg.Metadata.Badger["db_path"] = filepath.Join(ts.config.DataDir, "metadata")
		cfg.Session.Type = "badger"
		cfg.Session.Badger["db_path"] = filepath.Join(ts.config.DataDir, "sessions")
		cfg.Queue.Type = "badger"
		cfg.Queue.Badger["db_path"] = filepath.Join(ts.config.DataDir, "queue")
		cfg.Queue.Badger["poll_interval"] = "20ms"
		cfg.Content.Type = "filesystem"
		cfg.Content.Filesystem["path"] = filepath.Join(ts.config.DataDir, "content")
	default:
		cfg.Content.Type = "memory"
	}

	return cfg
}

// Start builds the registry from configuration and serves until Stop.
func (ts *TestServer) Start() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.started {
		return fmt.Errorf("server already started")
	}

	logger.SetLevel(ts.config.LogLevel)

	port := findFreePort(ts.t)
	cfg := ts.appConfig(port)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid test config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := config.InitializeMetrics(cfg)
	reg, err := config.InitializeRegistry(ctx, cfg, m)
	if err != nil {
		cancel()
		return err
	}

	srv := server.New(reg, server.Options{ShutdownTimeout: 5 * time.Second})
	adapters, err := config.CreateAdapters(cfg, m.HTTP)
	if err != nil {
		cancel()
		_ = reg.Close()
		return err
	}
	for _, a := range adapters {
		if err := srv.AddAdapter(a); err != nil {
			cancel()
			_ = reg.Close()
			return err
		}
	}
	if worker := config.CreateThumbnailWorker(cfg, reg, m); worker != nil {
		srv.SetThumbnailWorker(worker)
	}

	ts.done = make(chan error, 1)
	go func() { ts.done <- srv.Serve(ctx) }()

	ts.reg = reg
	ts.port = port
	ts.cancel = cancel

	if err := ts.waitForServer(); err != nil {
		cancel()
		<-ts.done
		_ = reg.Close()
		return fmt.Errorf("server failed to start: %w", err)
	}

	ts.started = true
	return nil
}

// Stop shuts the server down and closes its stores. Persistent state stays
// in DataDir, so Start can be called again.
func (ts *TestServer) Stop() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if !ts.started {
		return nil
	}

	ts.cancel()
	select {
	case <-ts.done:
	case <-time.After(10 * time.Second):
		ts.t.Logf("Server stop timeout")
	}

	ts.started = false
	return ts.reg.Close()
}

// BaseURL returns the root URL of the REST API.
func (ts *TestServer) BaseURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", ts.port)
}

// Registry returns the registry of the running server.
func (ts *TestServer) Registry() *registry.Registry {
	return ts.reg
}

// waitForServer polls /status until the adapter answers.
func (ts *TestServer) waitForServer() error {
	client := &http.Client{Timeout: 500 * time.Millisecond}
	deadline := time.Now().Add(ts.config.StartupTimeout)

	for time.Now().Before(deadline) {
		resp, err := client.Get(ts.BaseURL() + "/status")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for server to start")
}

// findFreePort finds an available port
func findFreePort(t testing.TB) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to find free port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	_ = listener.Close()
	return port
}
