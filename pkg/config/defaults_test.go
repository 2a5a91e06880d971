package config

import (
	"testing"
	"time"
)

func TestApplyDefaults_Empty(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" || cfg.Logging.Output != "stdout" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Session.Type != "memory" || cfg.Metadata.Type != "memory" || cfg.Queue.Type != "memory" {
		t.Errorf("store types: session=%q metadata=%q queue=%q", cfg.Session.Type, cfg.Metadata.Type, cfg.Queue.Type)
	}
	if cfg.Content.Filesystem["path"] != "/tmp/dittofiles/content" {
		t.Errorf("content.filesystem.path = %v", cfg.Content.Filesystem["path"])
	}
	if cfg.Session.Redis["addr"] != "localhost:6379" {
		t.Errorf("session.redis.addr = %v", cfg.Session.Redis["addr"])
	}
	if !cfg.Thumbnails.Enabled {
		t.Error("Expected thumbnails enabled by default")
	}
	if len(cfg.Thumbnails.Widths) != 3 || cfg.Thumbnails.Widths[0] != 500 {
		t.Errorf("thumbnails.widths = %v", cfg.Thumbnails.Widths)
	}
	if !cfg.GC.Enabled || cfg.GC.Interval != time.Hour || cfg.GC.GracePeriod != time.Hour {
		t.Errorf("gc = %+v", cfg.GC)
	}
	if cfg.Server.Metrics.Enabled {
		t.Error("Expected metrics disabled by default")
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{Level: "warn", Format: "json", Output: "stderr"},
		Content: ContentConfig{
			Type:       "filesystem",
			Filesystem: map[string]any{"path": "/data"},
		},
		Thumbnails: ThumbnailsConfig{Widths: []int{64}, Concurrency: 2},
	}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "WARN" || cfg.Logging.Format != "json" || cfg.Logging.Output != "stderr" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Content.Filesystem["path"] != "/data" {
		t.Errorf("content.filesystem.path = %v", cfg.Content.Filesystem["path"])
	}
	// Configured but not enabled stays disabled
	if cfg.Thumbnails.Enabled {
		t.Error("Expected explicitly configured thumbnails to stay disabled")
	}
	if len(cfg.Thumbnails.Widths) != 1 || cfg.Thumbnails.Widths[0] != 64 {
		t.Errorf("thumbnails.widths = %v", cfg.Thumbnails.Widths)
	}
}

func TestApplyDefaults_DisabledHTTPWithPort(t *testing.T) {
	cfg := &Config{}
	cfg.HTTP.Port = 8080
	ApplyDefaults(cfg)

	if cfg.HTTP.Enabled {
		t.Error("Expected http adapter with an explicit port to keep enabled=false")
	}
}

func TestGetDefaultConfig_Valid(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Fatalf("Default config does not validate: %v", err)
	}
}
