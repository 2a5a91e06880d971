package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, cfg ServerConfig) *Server {
	t.Helper()

	srv := NewServer(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	select {
	case <-srv.Ready():
	case err := <-done:
		t.Fatalf("server failed to start: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not become ready")
	}

	t.Cleanup(func() {
		cancel()
		<-done
	})
	return srv
}

func get(t *testing.T, srv *Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d%s", srv.Port(), path))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Healthz(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := startServer(t, ServerConfig{
		Port: 0,
		Health: func(ctx context.Context) error {
			if healthy.Load() {
				return nil
			}
			return errors.New("metadata store closed")
		},
	})

	status, body := get(t, srv, "/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok\n", body)

	healthy.Store(false)
	status, body = get(t, srv, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, body, "metadata store closed")
}

func TestServer_MetricsEndpoint(t *testing.T) {
	ResetRegistryForTesting()
	srv := startServer(t, ServerConfig{Port: 0})

	status, body := get(t, srv, "/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "go_goroutines")
}

func TestInitRegistryKeepsFirstRegistry(t *testing.T) {
	ResetRegistryForTesting()
	first := GetRegistry()
	require.NotNil(t, first)

	InitRegistry()
	assert.Same(t, first, GetRegistry())
	assert.True(t, IsEnabled())
}

func TestServer_StopIdempotent(t *testing.T) {
	srv := NewServer(ServerConfig{Port: 0})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.NoError(t, srv.Stop(ctx))
	assert.NoError(t, srv.Stop(ctx))
}
