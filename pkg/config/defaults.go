package config

import (
	"strings"
	"time"

	"github.com/marmos91/dittofiles/pkg/adapter/rest"
	"github.com/marmos91/dittofiles/pkg/service"
	"github.com/marmos91/dittofiles/pkg/store/session"
	"github.com/marmos91/dittofiles/pkg/thumbnail"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Every store map gets the keys of its implementation, so a generated
//     config file documents all of them
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyHTTPDefaults(&cfg.HTTP)
	applyAuthDefaults(&cfg.Auth)
	applySessionDefaults(&cfg.Session)
	applyMetadataDefaults(&cfg.Metadata)
	applyContentDefaults(&cfg.Content)
	applyQueueDefaults(&cfg.Queue)
	applyThumbnailsDefaults(&cfg.Thumbnails)
	applyGCDefaults(&cfg.GC)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
}

// applyHTTPDefaults sets REST adapter defaults.
func applyHTTPDefaults(cfg *rest.RESTConfig) {
	// An unconfigured adapter (no port either) is enabled, so a config
	// loaded without a file still passes validation. Users can set
	// enabled: false together with a port to turn it off.
	if !cfg.Enabled && cfg.Port == 0 && cfg.ListenAddr == "" {
		cfg.Enabled = true
	}

	if cfg.Port == 0 {
		cfg.Port = 5000
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 32 << 20
	}
}

func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = session.DefaultTTL
	}
	if cfg.PasswordHasher == "" {
		cfg.PasswordHasher = service.HasherSHA1
	}
	cfg.PasswordHasher = strings.ToLower(cfg.PasswordHasher)
}

func applySessionDefaults(cfg *SessionConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}

	cfg.Memory = withDefaults(cfg.Memory, map[string]any{
		"max_entries": 0,
	})
	cfg.Badger = withDefaults(cfg.Badger, map[string]any{
		"db_path":     "/tmp/dittofiles/sessions",
		"gc_interval": "10m",
	})
	cfg.Redis = withDefaults(cfg.Redis, map[string]any{
		"addr":       "localhost:6379",
		"key_prefix": "dittofiles:session:",
	})
}

func applyMetadataDefaults(cfg *MetadataConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}

	cfg.Memory = withDefaults(cfg.Memory, map[string]any{})
	cfg.Badger = withDefaults(cfg.Badger, map[string]any{
		"db_path": "/tmp/dittofiles/metadata",
	})
}

func applyContentDefaults(cfg *ContentConfig) {
	if cfg.Type == "" {
		cfg.Type = "filesystem"
	}

	cfg.Filesystem = withDefaults(cfg.Filesystem, map[string]any{
		"path": "/tmp/dittofiles/content",
	})
	cfg.Memory = withDefaults(cfg.Memory, map[string]any{
		"max_size_bytes": uint64(1 << 30), // 1GB
	})
	cfg.S3 = withDefaults(cfg.S3, map[string]any{
		"region": "us-east-1",
	})
}

func applyQueueDefaults(cfg *QueueConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}

	cfg.Badger = withDefaults(cfg.Badger, map[string]any{
		"db_path": "/tmp/dittofiles/queue",
	})
	cfg.RetryPolicy = cfg.RetryPolicy.WithDefaults()
}

func applyThumbnailsDefaults(cfg *ThumbnailsConfig) {
	// Same rule as the HTTP adapter: untouched means enabled.
	if !cfg.Enabled && len(cfg.Widths) == 0 && cfg.Concurrency == 0 {
		cfg.Enabled = true
	}

	if len(cfg.Widths) == 0 {
		cfg.Widths = append([]int(nil), service.ThumbnailWidths...)
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 1
	}
	if cfg.JobTimeout == 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	if cfg.MaxPixels == 0 {
		cfg.MaxPixels = thumbnail.DefaultMaxPixels
	}
}

func applyGCDefaults(cfg *GCConfig) {
	if !cfg.Enabled && cfg.Interval == 0 {
		cfg.Enabled = true
	}

	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}
	if cfg.GracePeriod == 0 {
		cfg.GracePeriod = time.Hour
	}
}

// withDefaults returns options with every missing key of defaults added.
func withDefaults(options, defaults map[string]any) map[string]any {
	if options == nil {
		options = make(map[string]any, len(defaults))
	}
	for k, v := range defaults {
		if _, ok := options[k]; !ok {
			options[k] = v
		}
	}
	return options
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
