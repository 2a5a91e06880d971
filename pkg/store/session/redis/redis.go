// Package redis implements the session store on Redis using SET with EX.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/dittofiles/pkg/store/session"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix matches the key layout of earlier deployments so existing
// sessions stay valid.
const DefaultKeyPrefix = "auth_"

// RedisSessionStoreConfig configures the Redis session store.
type RedisSessionStoreConfig struct {
	Addr      string        `mapstructure:"addr"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	Timeout   time.Duration `mapstructure:"timeout"`

	// Client overrides the connection settings above when set
	Client *goredis.Client `mapstructure:"-"`
}

// RedisSessionStore keeps sessions as Redis string keys with an expiry.
type RedisSessionStore struct {
	client *goredis.Client
	prefix string
}

// NewRedisSessionStore connects to Redis and verifies the connection with PING.
func NewRedisSessionStore(ctx context.Context, cfg RedisSessionStoreConfig) (*RedisSessionStore, error) {
	client := cfg.Client
	if client == nil {
		if cfg.Addr == "" {
			return nil, fmt.Errorf("redis session store: addr is required")
		}

		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 3 * time.Second
		}

		client = goredis.NewClient(&goredis.Options{
			Addr:         cfg.Addr,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  timeout,
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		})
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return &RedisSessionStore{client: client, prefix: prefix}, nil
}

func (s *RedisSessionStore) key(token string) string {
	return s.prefix + token
}

func (s *RedisSessionStore) Set(ctx context.Context, token, userID string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("session ttl must be positive")
	}
	return s.client.Set(ctx, s.key(token), userID, ttl).Err()
}

func (s *RedisSessionStore) Get(ctx context.Context, token string) (string, error) {
	userID, err := s.client.Get(ctx, s.key(token)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", session.ErrSessionNotFound
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, token string) error {
	removed, err := s.client.Del(ctx, s.key(token)).Result()
	if err != nil {
		return err
	}
	if removed == 0 {
		return session.ErrSessionNotFound
	}
	return nil
}

func (s *RedisSessionStore) Healthcheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}
