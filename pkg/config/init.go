package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const configHeader = `dittofiles configuration file

Every key can be overridden with an environment variable prefixed by
DITTOFILES_, e.g. DITTOFILES_LOGGING_LEVEL=DEBUG.`

// InitConfig writes a default configuration file at the default location
// and returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default configuration file at path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	data, err := renderConfig(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

type configSection struct {
	key     string
	comment string
	value   any
}

// renderConfig encodes cfg as commented YAML, one section per top-level key.
func renderConfig(cfg *Config) ([]byte, error) {
	sections := []configSection{
		{
			key:     "logging",
			comment: "level: DEBUG, INFO, WARN or ERROR\nformat: text or json\noutput: stdout, stderr or a file path",
			value: map[string]any{
				"level":  cfg.Logging.Level,
				"format": cfg.Logging.Format,
				"output": cfg.Logging.Output,
			},
		},
		{
			key:     "server",
			comment: "Prometheus metrics and /healthz are served on their own port when enabled",
			value: map[string]any{
				"shutdown_timeout": cfg.Server.ShutdownTimeout.String(),
				"metrics": map[string]any{
					"enabled": cfg.Server.Metrics.Enabled,
					"port":    cfg.Server.Metrics.Port,
				},
			},
		},
		{
			key:     "http",
			comment: "REST API",
			value: map[string]any{
				"enabled":          cfg.HTTP.Enabled,
				"port":             cfg.HTTP.Port,
				"read_timeout":     cfg.HTTP.ReadTimeout.String(),
				"write_timeout":    cfg.HTTP.WriteTimeout.String(),
				"idle_timeout":     cfg.HTTP.IdleTimeout.String(),
				"shutdown_timeout": cfg.HTTP.ShutdownTimeout.String(),
				"max_body_bytes":   cfg.HTTP.MaxBodyBytes,
			},
		},
		{
			key:     "auth",
			comment: "password_hasher: sha1 or bcrypt",
			value: map[string]any{
				"session_ttl":     cfg.Auth.SessionTTL.String(),
				"password_hasher": cfg.Auth.PasswordHasher,
			},
		},
		{
			key:     "session",
			comment: "type: memory, badger or redis",
			value: map[string]any{
				"type":   cfg.Session.Type,
				"memory": cfg.Session.Memory,
				"badger": cfg.Session.Badger,
				"redis":  cfg.Session.Redis,
			},
		},
		{
			key:     "metadata",
			comment: "type: memory or badger",
			value: map[string]any{
				"type":   cfg.Metadata.Type,
				"memory": cfg.Metadata.Memory,
				"badger": cfg.Metadata.Badger,
			},
		},
		{
			key:     "content",
			comment: "type: filesystem, memory or s3",
			value: map[string]any{
				"type":       cfg.Content.Type,
				"filesystem": cfg.Content.Filesystem,
				"memory":     cfg.Content.Memory,
				"s3":         cfg.Content.S3,
			},
		},
		{
			key:     "queue",
			comment: "type: memory or badger\nFailed jobs are retried with exponential backoff, then dead-lettered",
			value: map[string]any{
				"type":            cfg.Queue.Type,
				"badger":          cfg.Queue.Badger,
				"max_attempts":    cfg.Queue.MaxAttempts,
				"initial_backoff": cfg.Queue.InitialBackoff.String(),
				"max_backoff":     cfg.Queue.MaxBackoff.String(),
			},
		},
		{
			key:     "thumbnails",
			comment: "jobs_per_second: 0 means unlimited",
			value: map[string]any{
				"enabled":         cfg.Thumbnails.Enabled,
				"widths":          cfg.Thumbnails.Widths,
				"concurrency":     cfg.Thumbnails.Concurrency,
				"job_timeout":     cfg.Thumbnails.JobTimeout.String(),
				"jobs_per_second": cfg.Thumbnails.JobsPerSecond,
				"max_pixels":      cfg.Thumbnails.MaxPixels,
			},
		},
		{
			key:     "gc",
			comment: "Removes blobs no file references once older than grace_period",
			value: map[string]any{
				"enabled":      cfg.GC.Enabled,
				"interval":     cfg.GC.Interval.String(),
				"grace_period": cfg.GC.GracePeriod.String(),
				"dry_run":      cfg.GC.DryRun,
			},
		},
	}

	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, s := range sections {
		var value yaml.Node
		if err := value.Encode(s.value); err != nil {
			return nil, fmt.Errorf("failed to encode %s section: %w", s.key, err)
		}
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: s.key, HeadComment: asComment(s.comment)},
			&value,
		)
	}

	doc := &yaml.Node{
		Kind:        yaml.DocumentNode,
		HeadComment: asComment(configHeader),
		Content:     []*yaml.Node{root},
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// asComment prefixes every line of text with "# ".
func asComment(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line == "" {
			lines[i] = "#"
		} else {
			lines[i] = "# " + line
		}
	}
	return strings.Join(lines, "\n")
}
