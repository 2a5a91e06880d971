package config

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/marmos91/dittofiles/pkg/service"
)

func memoryConfig(t *testing.T) *Config {
	t.Helper()
	cfg := GetDefaultConfig()
	cfg.Content.Type = "memory"
	return cfg
}

func TestInitializeRegistry_Memory(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig(t)

	reg, err := InitializeRegistry(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("InitializeRegistry failed: %v", err)
	}
	defer func() { _ = reg.Close() }()

	if reg.Queue() == nil {
		t.Fatal("Expected a queue when thumbnails are enabled")
	}

	if _, err := reg.Users().Register(ctx, "alice@example.com", "secret"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := reg.Auth().Authenticate(ctx, service.Credentials{Email: "alice@example.com", Password: "secret"}); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if err := reg.Healthcheck(ctx); err != nil {
		t.Errorf("Healthcheck failed: %v", err)
	}
}

func TestInitializeRegistry_Badger(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := memoryConfig(t)
	cfg.Metadata.Type = "badger"
	cfg.Metadata.Badger["db_path"] = filepath.Join(dir, "metadata")
	cfg.Session.Type = "badger"
	cfg.Session.Badger["db_path"] = filepath.Join(dir, "sessions")
	cfg.Queue.Type = "badger"
	cfg.Queue.Badger["db_path"] = filepath.Join(dir, "queue")
	cfg.Content.Type = "filesystem"
	cfg.Content.Filesystem["path"] = filepath.Join(dir, "content")

	reg, err := InitializeRegistry(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("InitializeRegistry failed: %v", err)
	}
	if err := reg.Healthcheck(ctx); err != nil {
		t.Errorf("Healthcheck failed: %v", err)
	}
	if err := reg.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Persistent stores reopen on the same paths
	reg, err = InitializeRegistry(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("Reopening failed: %v", err)
	}
	_ = reg.Close()
}

func TestInitializeRegistry_ThumbnailsDisabled(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Thumbnails.Enabled = false

	reg, err := InitializeRegistry(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("InitializeRegistry failed: %v", err)
	}
	defer func() { _ = reg.Close() }()

	if reg.Queue() != nil {
		t.Error("Expected no queue when thumbnails are disabled")
	}
	if w := CreateThumbnailWorker(cfg, reg, InitializeMetrics(cfg)); w != nil {
		t.Error("Expected no worker when thumbnails are disabled")
	}
}

func TestInitializeRegistry_StoreFailure(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Content.Type = "filesystem"
	cfg.Content.Filesystem["path"] = ""

	if _, err := InitializeRegistry(context.Background(), cfg, nil); err == nil {
		t.Fatal("Expected error for a filesystem store without path")
	}
}

func TestInitializeRegistry_NilConfig(t *testing.T) {
	if _, err := InitializeRegistry(context.Background(), nil, nil); err == nil {
		t.Fatal("Expected error for nil config")
	}
}

func TestCreateComponents(t *testing.T) {
	cfg := memoryConfig(t)
	m := InitializeMetrics(cfg)
	if m.Enabled {
		t.Fatal("Expected metrics disabled by default")
	}
	if m.Metadata == nil || m.S3 == nil {
		t.Fatal("Expected no-op metadata and S3 metrics when disabled")
	}
	if CreateMetricsServer(cfg, nil) != nil {
		t.Error("Expected no metrics server when disabled")
	}

	reg, err := InitializeRegistry(context.Background(), cfg, m)
	if err != nil {
		t.Fatalf("InitializeRegistry failed: %v", err)
	}
	defer func() { _ = reg.Close() }()

	adapters, err := CreateAdapters(cfg, m.HTTP)
	if err != nil {
		t.Fatalf("CreateAdapters failed: %v", err)
	}
	if len(adapters) != 1 || adapters[0].Protocol() != "REST" {
		t.Errorf("adapters = %v", adapters)
	}

	if CreateThumbnailWorker(cfg, reg, m) == nil {
		t.Error("Expected a thumbnail worker")
	}
	if CreateCollector(cfg, reg, m) == nil {
		t.Error("Expected a collector")
	}

	cfg.GC.Enabled = false
	if CreateCollector(cfg, reg, m) != nil {
		t.Error("Expected no collector when disabled")
	}

	cfg.HTTP.Enabled = false
	if _, err := CreateAdapters(cfg, m.HTTP); err == nil {
		t.Error("Expected error with no adapters enabled")
	}
}
