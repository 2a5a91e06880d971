package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	sessionmemory "github.com/marmos91/dittofiles/pkg/store/session/memory"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs validation that cannot be expressed in tags.
func validateCustomRules(cfg *Config) error {
	if !cfg.HTTP.Enabled {
		return fmt.Errorf("http: the REST adapter must be enabled")
	}

	if cfg.Queue.InitialBackoff > cfg.Queue.MaxBackoff {
		return fmt.Errorf("queue: initial_backoff (%v) exceeds max_backoff (%v)",
			cfg.Queue.InitialBackoff, cfg.Queue.MaxBackoff)
	}

	if cfg.Session.Type == "memory" {
		var memCfg sessionmemory.MemorySessionStoreConfig
		if err := decodeOptions(cfg.Session.Memory, &memCfg); err != nil {
			return fmt.Errorf("session.memory: %w", err)
		}
		if memCfg.MaxTTL > 0 && memCfg.MaxTTL < cfg.Auth.SessionTTL {
			return fmt.Errorf("session.memory: max_ttl (%v) is shorter than auth.session_ttl (%v)",
				memCfg.MaxTTL, cfg.Auth.SessionTTL)
		}
	}

	if cfg.Server.Metrics.Enabled && cfg.Server.Metrics.Port == cfg.HTTP.Port {
		return fmt.Errorf("server.metrics: port %d is already used by the http adapter", cfg.HTTP.Port)
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
