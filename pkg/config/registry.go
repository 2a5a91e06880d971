package config

import (
	"context"
	"fmt"

	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/metrics"
	"github.com/marmos91/dittofiles/pkg/registry"
	"github.com/marmos91/dittofiles/pkg/service"
)

// closer is satisfied by every store and the queue.
type closer interface {
	Close() error
}

// InitializeRegistry creates every store described by cfg and wires them
// into a Registry.
//
// The queue is only created when thumbnails are enabled; without it uploads
// never schedule thumbnail jobs. If any step fails, the stores created so
// far are closed before returning. m supplies the store and queue metrics;
// nil disables them.
//
// Example:
//
//	cfg, _ := config.Load("config.yaml")
//	reg, err := config.InitializeRegistry(ctx, cfg, nil)
//	if err != nil {
//	    log.Fatalf("Failed to initialize registry: %v", err)
//	}
//	defer reg.Close()
func InitializeRegistry(ctx context.Context, cfg *Config, m *MetricsResult) (reg *registry.Registry, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is nil")
	}
	if m == nil {
		m = &MetricsResult{
			Queue:    metrics.NewNoopQueueMetrics(),
			Metadata: metrics.NewNoopMetadataMetrics(),
			S3:       metrics.NewNoopS3Metrics(),
		}
	}

	logger.Debug("Initializing registry from configuration")

	var opened []closer
	defer func() {
		if err == nil {
			return
		}
		for i := len(opened) - 1; i >= 0; i-- {
			if closeErr := opened[i].Close(); closeErr != nil {
				logger.Warn("Failed to close store after init error: %v", closeErr)
			}
		}
	}()

	hasher, err := service.NewPasswordHasher(cfg.Auth.PasswordHasher)
	if err != nil {
		return nil, err
	}

	// Step 1: Metadata
	metaStore, err := CreateMetadataStore(ctx, &cfg.Metadata, m.Metadata)
	if err != nil {
		return nil, err
	}
	opened = append(opened, metaStore)
	logger.Info("Metadata store: %s", cfg.Metadata.Type)

	// Step 2: Content
	contentStore, err := CreateContentStore(ctx, &cfg.Content, m.S3)
	if err != nil {
		return nil, err
	}
	opened = append(opened, contentStore)
	logger.Info("Content store: %s", cfg.Content.Type)

	// Step 3: Sessions
	sessionStore, err := CreateSessionStore(ctx, &cfg.Session, cfg.Auth.SessionTTL)
	if err != nil {
		return nil, err
	}
	opened = append(opened, sessionStore)
	logger.Info("Session store: %s", cfg.Session.Type)

	stores := registry.Stores{
		Metadata: metaStore,
		Content:  contentStore,
		Sessions: sessionStore,
	}

	// Step 4: Queue, only when something consumes it
	if cfg.Thumbnails.Enabled {
		jobs, err := CreateQueue(ctx, &cfg.Queue)
		if err != nil {
			return nil, err
		}
		opened = append(opened, jobs)
		stores.Queue = jobs
		logger.Info("Thumbnail queue: %s (max attempts %d)", cfg.Queue.Type, cfg.Queue.MaxAttempts)
	}

	reg, err = registry.New(stores, registry.Options{
		Hasher:          hasher,
		SessionTTL:      cfg.Auth.SessionTTL,
		ThumbnailWidths: cfg.Thumbnails.Widths,
		QueueMetrics:    m.Queue,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}

	return reg, nil
}
