package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: "info"

content:
  type: "memory"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected normalized level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if !cfg.HTTP.Enabled || cfg.HTTP.Port != 5000 {
		t.Errorf("Expected enabled http adapter on 5000, got enabled=%v port=%d", cfg.HTTP.Enabled, cfg.HTTP.Port)
	}
	if cfg.Auth.SessionTTL != 24*time.Hour {
		t.Errorf("Expected default session_ttl 24h, got %v", cfg.Auth.SessionTTL)
	}
	if cfg.Auth.PasswordHasher != "sha1" {
		t.Errorf("Expected default hasher sha1, got %q", cfg.Auth.PasswordHasher)
	}
	if cfg.Content.Type != "memory" {
		t.Errorf("Expected content type 'memory', got %q", cfg.Content.Type)
	}
	if cfg.Queue.MaxAttempts != 5 {
		t.Errorf("Expected default max_attempts 5, got %d", cfg.Queue.MaxAttempts)
	}
}

func TestLoad_ParsesEverySection(t *testing.T) {
	path := writeConfig(t, `
server:
  shutdown_timeout: 10s
  metrics:
    enabled: true
    port: 9191

http:
  enabled: true
  port: 8080
  max_body_bytes: 1048576

auth:
  session_ttl: 1h
  password_hasher: bcrypt

session:
  type: redis
  redis:
    addr: "redis:6379"

metadata:
  type: badger
  badger:
    db_path: /var/lib/dittofiles/meta

content:
  type: s3
  s3:
    bucket: files
    region: eu-west-1

queue:
  type: badger
  max_attempts: 3
  initial_backoff: 2s
  max_backoff: 30s

thumbnails:
  enabled: true
  widths: [320, 160]
  concurrency: 4
  job_timeout: 1m
  jobs_per_second: 2.5
  max_pixels: 1000000

gc:
  enabled: true
  interval: 30m
  grace_period: 2h
  dry_run: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("shutdown_timeout = %v", cfg.Server.ShutdownTimeout)
	}
	if !cfg.Server.Metrics.Enabled || cfg.Server.Metrics.Port != 9191 {
		t.Errorf("metrics = %+v", cfg.Server.Metrics)
	}
	if cfg.HTTP.Port != 8080 || cfg.HTTP.MaxBodyBytes != 1<<20 {
		t.Errorf("http = %+v", cfg.HTTP)
	}
	if cfg.Auth.SessionTTL != time.Hour || cfg.Auth.PasswordHasher != "bcrypt" {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if cfg.Session.Type != "redis" || cfg.Session.Redis["addr"] != "redis:6379" {
		t.Errorf("session = %+v", cfg.Session)
	}
	if cfg.Metadata.Type != "badger" || cfg.Metadata.Badger["db_path"] != "/var/lib/dittofiles/meta" {
		t.Errorf("metadata = %+v", cfg.Metadata)
	}
	if cfg.Content.S3["bucket"] != "files" {
		t.Errorf("content.s3 = %+v", cfg.Content.S3)
	}
	if cfg.Queue.MaxAttempts != 3 || cfg.Queue.InitialBackoff != 2*time.Second || cfg.Queue.MaxBackoff != 30*time.Second {
		t.Errorf("queue = %+v", cfg.Queue)
	}
	if len(cfg.Thumbnails.Widths) != 2 || cfg.Thumbnails.Widths[0] != 320 || cfg.Thumbnails.Concurrency != 4 {
		t.Errorf("thumbnails = %+v", cfg.Thumbnails)
	}
	if cfg.Thumbnails.JobsPerSecond != 2.5 || cfg.Thumbnails.JobTimeout != time.Minute || cfg.Thumbnails.MaxPixels != 1000000 {
		t.Errorf("thumbnails = %+v", cfg.Thumbnails)
	}
	if cfg.GC.Interval != 30*time.Minute || cfg.GC.GracePeriod != 2*time.Hour || !cfg.GC.DryRun {
		t.Errorf("gc = %+v", cfg.GC)
	}
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: INFO
http:
  port: 5000
`)

	t.Setenv("DITTOFILES_LOGGING_LEVEL", "DEBUG")
	t.Setenv("DITTOFILES_HTTP_PORT", "7000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected env override DEBUG, got %q", cfg.Logging.Level)
	}
	if cfg.HTTP.Port != 7000 {
		t.Errorf("Expected env override 7000, got %d", cfg.HTTP.Port)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Expected defaults without a config file, got: %v", err)
	}
	if cfg.Content.Type != "filesystem" {
		t.Errorf("Expected default content type 'filesystem', got %q", cfg.Content.Type)
	}
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Expected error for a missing explicit config file")
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	path := writeConfig(t, `
auth:
  password_hasher: md5
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Expected validation error")
	}
	if !strings.Contains(err.Error(), "PasswordHasher") {
		t.Errorf("Expected error to name the field, got: %v", err)
	}
}

func TestGetConfigDir(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	if got := GetConfigDir(); got != filepath.Join(xdg, "dittofiles") {
		t.Errorf("GetConfigDir() = %q", got)
	}
	if got := GetDefaultConfigPath(); got != filepath.Join(xdg, "dittofiles", "config.yaml") {
		t.Errorf("GetDefaultConfigPath() = %q", got)
	}
	if ConfigExists() {
		t.Error("ConfigExists() = true for an empty directory")
	}
}
