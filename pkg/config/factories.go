package config

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/metrics"
	"github.com/marmos91/dittofiles/pkg/queue"
	queuebadger "github.com/marmos91/dittofiles/pkg/queue/badger"
	queuememory "github.com/marmos91/dittofiles/pkg/queue/memory"
	"github.com/marmos91/dittofiles/pkg/store/content"
	contentfs "github.com/marmos91/dittofiles/pkg/store/content/fs"
	contentmemory "github.com/marmos91/dittofiles/pkg/store/content/memory"
	contents3 "github.com/marmos91/dittofiles/pkg/store/content/s3"
	"github.com/marmos91/dittofiles/pkg/store/metadata"
	metadatabadger "github.com/marmos91/dittofiles/pkg/store/metadata/badger"
	metadatamemory "github.com/marmos91/dittofiles/pkg/store/metadata/memory"
	"github.com/marmos91/dittofiles/pkg/store/session"
	sessionbadger "github.com/marmos91/dittofiles/pkg/store/session/badger"
	sessionmemory "github.com/marmos91/dittofiles/pkg/store/session/memory"
	sessionredis "github.com/marmos91/dittofiles/pkg/store/session/redis"
	"github.com/mitchellh/mapstructure"
)

// decodeOptions decodes a type-specific store section into out. Durations
// may be given as strings ("10m").
func decodeOptions(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return decoder.Decode(options)
}

// CreateSessionStore creates the session store selected by cfg.Type.
//
// Supported types:
//   - "memory": expiring LRU, lost on restart
//   - "badger": BadgerDB entries with native TTL
//   - "redis": Redis keys with EXPIRE
func CreateSessionStore(ctx context.Context, cfg *SessionConfig, ttl time.Duration) (session.Store, error) {
	switch cfg.Type {
	case "memory":
		var storeCfg sessionmemory.MemorySessionStoreConfig
		if err := decodeOptions(cfg.Memory, &storeCfg); err != nil {
			return nil, fmt.Errorf("invalid memory session store config: %w", err)
		}
		if storeCfg.MaxTTL == 0 {
			storeCfg.MaxTTL = ttl
		}
		if storeCfg.MaxTTL < ttl {
			return nil, fmt.Errorf("memory session store: max_ttl %v is shorter than the session ttl %v", storeCfg.MaxTTL, ttl)
		}
		return sessionmemory.NewMemorySessionStore(storeCfg), nil

	case "badger":
		var storeCfg sessionbadger.BadgerSessionStoreConfig
		if err := decodeOptions(cfg.Badger, &storeCfg); err != nil {
			return nil, fmt.Errorf("invalid badger session store config: %w", err)
		}
		store, err := sessionbadger.NewBadgerSessionStore(ctx, storeCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create badger session store: %w", err)
		}
		return store, nil

	case "redis":
		var storeCfg sessionredis.RedisSessionStoreConfig
		if err := decodeOptions(cfg.Redis, &storeCfg); err != nil {
			return nil, fmt.Errorf("invalid redis session store config: %w", err)
		}
		store, err := sessionredis.NewRedisSessionStore(ctx, storeCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis session store: %w", err)
		}
		logger.Info("Redis session store initialized: addr=%s", storeCfg.Addr)
		return store, nil

	default:
		return nil, fmt.Errorf("unknown session store type: %q (supported: memory, badger, redis)", cfg.Type)
	}
}

// CreateMetadataStore creates the metadata store selected by cfg.Type.
//
// Supported types:
//   - "memory": in-memory storage, ephemeral
//   - "badger": BadgerDB storage, persistent; mm records per-operation latency
//
// A nil mm disables store metrics.
func CreateMetadataStore(ctx context.Context, cfg *MetadataConfig, mm metrics.MetadataMetrics) (metadata.MetadataStore, error) {
	switch cfg.Type {
	case "memory":
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var storeCfg metadatamemory.MemoryMetadataStoreConfig
		if err := decodeOptions(cfg.Memory, &storeCfg); err != nil {
			return nil, fmt.Errorf("invalid memory metadata store config: %w", err)
		}
		return metadatamemory.NewMemoryMetadataStore(storeCfg), nil

	case "badger":
		var storeCfg metadatabadger.BadgerMetadataStoreConfig
		if err := decodeOptions(cfg.Badger, &storeCfg); err != nil {
			return nil, fmt.Errorf("invalid badger metadata store config: %w", err)
		}
		storeCfg.Metrics = mm
		store, err := metadatabadger.NewBadgerMetadataStore(ctx, storeCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create badger metadata store: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown metadata store type: %q (supported: memory, badger)", cfg.Type)
	}
}

// CreateContentStore creates the blob store selected by cfg.Type.
//
// Supported types:
//   - "filesystem": one file per blob under a base directory
//   - "memory": in-memory storage, ephemeral
//   - "s3": Amazon S3 or a compatible service; s3m records API calls
//
// A nil s3m disables store metrics.
func CreateContentStore(ctx context.Context, cfg *ContentConfig, s3m metrics.S3Metrics) (content.ContentStore, error) {
	switch cfg.Type {
	case "filesystem":
		var storeCfg contentfs.FSContentStoreConfig
		if err := decodeOptions(cfg.Filesystem, &storeCfg); err != nil {
			return nil, fmt.Errorf("invalid filesystem content store config: %w", err)
		}
		store, err := contentfs.NewFSContentStore(ctx, storeCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create filesystem content store: %w", err)
		}
		return store, nil

	case "memory":
		var storeCfg contentmemory.MemoryContentStoreConfig
		if err := decodeOptions(cfg.Memory, &storeCfg); err != nil {
			return nil, fmt.Errorf("invalid memory content store config: %w", err)
		}
		return contentmemory.NewMemoryContentStore(ctx, storeCfg)

	case "s3":
		return createS3ContentStore(ctx, cfg.S3, s3m)

	default:
		return nil, fmt.Errorf("unknown content store type: %q (supported: filesystem, memory, s3)", cfg.Type)
	}
}

// s3Options is the content.s3 section.
type s3Options struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

// createS3ContentStore creates an S3-based content store.
func createS3ContentStore(ctx context.Context, options map[string]any, s3m metrics.S3Metrics) (content.ContentStore, error) {
	var storeCfg s3Options
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("invalid S3 content store config: %w", err)
	}

	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 content store: bucket is required")
	}
	if storeCfg.Region == "" {
		return nil, fmt.Errorf("S3 content store: region is required")
	}

	client, err := newS3Client(ctx, storeCfg)
	if err != nil {
		return nil, err
	}

	store, err := contents3.NewS3ContentStore(ctx, contents3.S3ContentStoreConfig{
		Client:    client,
		Bucket:    storeCfg.Bucket,
		KeyPrefix: storeCfg.KeyPrefix,
		Metrics:   s3m,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 content store: %w", err)
	}

	logger.Info("S3 content store initialized: bucket=%s, region=%s, prefix=%s",
		storeCfg.Bucket, storeCfg.Region, storeCfg.KeyPrefix)

	return store, nil
}

// newS3Client builds an S3 client from the content.s3 section.
func newS3Client(ctx context.Context, storeCfg s3Options) (*s3.Client, error) {
	// ========================================================================
	// Step 1: Build AWS Config
	// ========================================================================

	configOptions := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(storeCfg.Region),
	}

	// Static credentials if provided, otherwise the default credential chain
	if storeCfg.AccessKeyID != "" && storeCfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			storeCfg.AccessKeyID,
			storeCfg.SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := storeCfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// ========================================================================
	// Step 2: Create S3 Client
	// ========================================================================

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if storeCfg.Endpoint != "" {
			// MinIO, Localstack and friends
			o.BaseEndpoint = aws.String(storeCfg.Endpoint)
			o.UsePathStyle = true
		}
		if storeCfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	}), nil
}

// CreateQueue creates the job queue selected by cfg.Type, using the retry
// policy of the same section.
//
// Supported types:
//   - "memory": in-process queue, pending jobs are lost on restart
//   - "badger": BadgerDB-backed queue that survives restarts
func CreateQueue(ctx context.Context, cfg *QueueConfig) (queue.Queue, error) {
	policy := cfg.RetryPolicy.WithDefaults()

	switch cfg.Type {
	case "memory":
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return queuememory.NewMemoryQueue(policy), nil

	case "badger":
		var queueCfg queuebadger.BadgerQueueConfig
		if err := decodeOptions(cfg.Badger, &queueCfg); err != nil {
			return nil, fmt.Errorf("invalid badger queue config: %w", err)
		}
		q, err := queuebadger.NewBadgerQueue(ctx, queueCfg, policy)
		if err != nil {
			return nil, fmt.Errorf("failed to create badger queue: %w", err)
		}
		return q, nil

	default:
		return nil, fmt.Errorf("unknown queue type: %q (supported: memory, badger)", cfg.Type)
	}
}
