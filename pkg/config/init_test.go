package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestInitConfig_Success(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	contentStr := string(content)
	expectedSections := []string{
		"# dittofiles configuration file",
		"logging:",
		"server:",
		"http:",
		"auth:",
		"session:",
		"metadata:",
		"content:",
		"queue:",
		"thumbnails:",
		"gc:",
		"# type: filesystem, memory or s3",
	}
	for _, section := range expectedSections {
		if !strings.Contains(contentStr, section) {
			t.Errorf("Config file missing section: %s", section)
		}
	}

	var raw map[string]any
	if err := yaml.Unmarshal(content, &raw); err != nil {
		t.Fatalf("Generated config is not valid YAML: %v", err)
	}
}

func TestInitConfig_LoadsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := InitConfigToPath(path, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Generated config does not load: %v", err)
	}

	def := GetDefaultConfig()
	if cfg.Auth.SessionTTL != def.Auth.SessionTTL {
		t.Errorf("session_ttl = %v, want %v", cfg.Auth.SessionTTL, def.Auth.SessionTTL)
	}
	if cfg.HTTP.Port != def.HTTP.Port || cfg.HTTP.MaxBodyBytes != def.HTTP.MaxBodyBytes {
		t.Errorf("http = %+v", cfg.HTTP)
	}
	if len(cfg.Thumbnails.Widths) != len(def.Thumbnails.Widths) {
		t.Errorf("widths = %v", cfg.Thumbnails.Widths)
	}
	if cfg.Queue.MaxBackoff != def.Queue.MaxBackoff {
		t.Errorf("max_backoff = %v", cfg.Queue.MaxBackoff)
	}
	if cfg.Content.Filesystem["path"] != def.Content.Filesystem["path"] {
		t.Errorf("content.filesystem.path = %v", cfg.Content.Filesystem["path"])
	}
}

func TestInitConfig_AlreadyExists(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if _, err := InitConfig(false); err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}

	_, err := InitConfig(false)
	if err == nil {
		t.Fatal("Expected error when config already exists")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Expected 'already exists' error, got: %v", err)
	}
}

func TestInitConfig_ForceOverwrite(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}

	if err := os.WriteFile(configPath, []byte("modified"), 0644); err != nil {
		t.Fatalf("Failed to modify config: %v", err)
	}

	if _, err := InitConfig(true); err != nil {
		t.Fatalf("InitConfig with force failed: %v", err)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config: %v", err)
	}
	if string(content) == "modified" {
		t.Error("Config file was not overwritten")
	}
}
