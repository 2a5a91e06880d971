// Package config loads the server configuration and builds the stores,
// adapters and background components it describes.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/dittofiles/pkg/adapter/rest"
	"github.com/marmos91/dittofiles/pkg/queue"
	"github.com/spf13/viper"
)

// Config represents the complete dittofiles configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DITTOFILES_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values
//
// Store Configuration Pattern:
// Each store section has a Type and one map per implementation (e.g.
// content.filesystem, content.s3). Only the map matching Type is decoded,
// by the factory of that implementation.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains process-wide settings
	Server ServerConfig `mapstructure:"server"`

	// HTTP configures the REST adapter
	HTTP rest.RESTConfig `mapstructure:"http"`

	// Auth configures password hashing and session lifetime
	Auth AuthConfig `mapstructure:"auth"`

	// Session selects the session store
	Session SessionConfig `mapstructure:"session"`

	// Metadata selects the user and file tree store
	Metadata MetadataConfig `mapstructure:"metadata"`

	// Content selects the blob store
	Content ContentConfig `mapstructure:"content"`

	// Queue selects the thumbnail job queue and its retry policy
	Queue QueueConfig `mapstructure:"queue"`

	// Thumbnails configures the thumbnail worker
	Thumbnails ThumbnailsConfig `mapstructure:"thumbnails"`

	// GC configures the orphaned blob collector
	GC GCConfig `mapstructure:"gc"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig contains process-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig controls the operational HTTP endpoint.
type MetricsConfig struct {
	// Enabled starts the /metrics and /healthz server
	Enabled bool `mapstructure:"enabled"`

	// Port of the metrics server
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
}

// AuthConfig controls credential checks and tokens.
type AuthConfig struct {
	// SessionTTL is the lifetime of an issued token
	SessionTTL time.Duration `mapstructure:"session_ttl" validate:"required,gt=0"`

	// PasswordHasher selects how passwords are stored
	// Valid values: sha1, bcrypt
	PasswordHasher string `mapstructure:"password_hasher" validate:"required,oneof=sha1 bcrypt"`
}

// SessionConfig specifies the session store.
type SessionConfig struct {
	// Type specifies which session store implementation to use
	// Valid values: memory, badger, redis
	Type string `mapstructure:"type" validate:"required,oneof=memory badger redis"`

	Memory map[string]any `mapstructure:"memory"`
	Badger map[string]any `mapstructure:"badger"`
	Redis  map[string]any `mapstructure:"redis"`
}

// MetadataConfig specifies the metadata store.
type MetadataConfig struct {
	// Type specifies which metadata store implementation to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" validate:"required,oneof=memory badger"`

	Memory map[string]any `mapstructure:"memory"`
	Badger map[string]any `mapstructure:"badger"`
}

// ContentConfig specifies the blob store.
type ContentConfig struct {
	// Type specifies which content store implementation to use
	// Valid values: filesystem, memory, s3
	Type string `mapstructure:"type" validate:"required,oneof=filesystem memory s3"`

	Filesystem map[string]any `mapstructure:"filesystem"`
	Memory     map[string]any `mapstructure:"memory"`
	S3         map[string]any `mapstructure:"s3"`
}

// QueueConfig specifies the thumbnail job queue.
type QueueConfig struct {
	// Type specifies which queue implementation to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" validate:"required,oneof=memory badger"`

	Badger map[string]any `mapstructure:"badger"`

	// RetryPolicy bounds redelivery before a job is dead-lettered
	queue.RetryPolicy `mapstructure:",squash"`
}

// ThumbnailsConfig configures the thumbnail worker.
type ThumbnailsConfig struct {
	// Enabled queues image uploads and runs the worker
	Enabled bool `mapstructure:"enabled"`

	// Widths are the variant widths generated for every image
	Widths []int `mapstructure:"widths" validate:"omitempty,unique,dive,gt=0"`

	// Concurrency is the number of jobs processed in parallel
	Concurrency int `mapstructure:"concurrency" validate:"omitempty,gte=1"`

	// JobTimeout bounds one delivery
	JobTimeout time.Duration `mapstructure:"job_timeout" validate:"omitempty,gt=0"`

	// JobsPerSecond paces job intake. 0 means unlimited.
	JobsPerSecond float64 `mapstructure:"jobs_per_second" validate:"gte=0"`

	// MaxPixels rejects images whose header declares more than width*height
	// pixels, before decoding them. Default: 40000000
	MaxPixels int64 `mapstructure:"max_pixels" validate:"gte=0"`
}

// GCConfig configures the orphaned blob collector.
type GCConfig struct {
	// Enabled runs the collector in the background
	Enabled bool `mapstructure:"enabled"`

	// Interval between runs
	Interval time.Duration `mapstructure:"interval" validate:"omitempty,gt=0"`

	// GracePeriod is the minimum age of a blob before it can be collected
	GracePeriod time.Duration `mapstructure:"grace_period" validate:"omitempty,gt=0"`

	// DryRun logs what would be deleted without deleting anything
	DryRun bool `mapstructure:"dry_run"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns the loaded and validated configuration.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: DITTOFILES_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DITTOFILES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No file at the default location; defaults apply
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittofiles")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittofiles")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
