package config

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/marmos91/dittofiles/pkg/queue"
)

func TestDecodeOptions_Durations(t *testing.T) {
	var out struct {
		Timeout time.Duration `mapstructure:"timeout"`
		Count   int           `mapstructure:"count"`
	}

	err := decodeOptions(map[string]any{"timeout": "90s", "count": "3"}, &out)
	if err != nil {
		t.Fatalf("decodeOptions failed: %v", err)
	}
	if out.Timeout != 90*time.Second || out.Count != 3 {
		t.Errorf("decoded = %+v", out)
	}
}

func TestCreateSessionStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		cfg := GetDefaultConfig().Session
		store, err := CreateSessionStore(ctx, &cfg, 24*time.Hour)
		if err != nil {
			t.Fatalf("CreateSessionStore failed: %v", err)
		}
		defer func() { _ = store.Close() }()
		roundTripSession(t, store.Set, store.Get)
	})

	t.Run("memory ttl above default", func(t *testing.T) {
		cfg := GetDefaultConfig().Session
		store, err := CreateSessionStore(ctx, &cfg, 48*time.Hour)
		if err != nil {
			t.Fatalf("CreateSessionStore failed: %v", err)
		}
		defer func() { _ = store.Close() }()
		if err := store.Set(ctx, "token", "user", 48*time.Hour); err != nil {
			t.Fatalf("Set with a 48h ttl failed: %v", err)
		}
	})

	t.Run("memory max_ttl below ttl", func(t *testing.T) {
		cfg := GetDefaultConfig().Session
		cfg.Memory["max_ttl"] = "1h"
		if _, err := CreateSessionStore(ctx, &cfg, 24*time.Hour); err == nil {
			t.Fatal("Expected error for max_ttl shorter than the session ttl")
		}
	})

	t.Run("badger", func(t *testing.T) {
		cfg := GetDefaultConfig().Session
		cfg.Type = "badger"
		cfg.Badger["db_path"] = filepath.Join(t.TempDir(), "sessions")
		store, err := CreateSessionStore(ctx, &cfg, 24*time.Hour)
		if err != nil {
			t.Fatalf("CreateSessionStore failed: %v", err)
		}
		defer func() { _ = store.Close() }()
		roundTripSession(t, store.Set, store.Get)
	})

	t.Run("redis", func(t *testing.T) {
		srv := miniredis.RunT(t)
		cfg := GetDefaultConfig().Session
		cfg.Type = "redis"
		cfg.Redis["addr"] = srv.Addr()
		store, err := CreateSessionStore(ctx, &cfg, 24*time.Hour)
		if err != nil {
			t.Fatalf("CreateSessionStore failed: %v", err)
		}
		defer func() { _ = store.Close() }()
		roundTripSession(t, store.Set, store.Get)

		if keys := srv.Keys(); len(keys) != 1 || !strings.HasPrefix(keys[0], "dittofiles:session:") {
			t.Errorf("redis keys = %v", keys)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := SessionConfig{Type: "memcached"}
		if _, err := CreateSessionStore(ctx, &cfg, 24*time.Hour); err == nil {
			t.Fatal("Expected error for unknown session store type")
		}
	})
}

func roundTripSession(
	t *testing.T,
	set func(context.Context, string, string, time.Duration) error,
	get func(context.Context, string) (string, error),
) {
	t.Helper()
	ctx := context.Background()

	if err := set(ctx, "token", "user-1", time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := get(ctx, "token")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "user-1" {
		t.Errorf("Get = %q, want user-1", got)
	}
}

func TestCreateMetadataStore(t *testing.T) {
	ctx := context.Background()

	for _, typ := range []string{"memory", "badger"} {
		t.Run(typ, func(t *testing.T) {
			cfg := GetDefaultConfig().Metadata
			cfg.Type = typ
			cfg.Badger["db_path"] = filepath.Join(t.TempDir(), "metadata")

			store, err := CreateMetadataStore(ctx, &cfg, nil)
			if err != nil {
				t.Fatalf("CreateMetadataStore failed: %v", err)
			}
			defer func() { _ = store.Close() }()

			if err := store.Healthcheck(ctx); err != nil {
				t.Errorf("Healthcheck failed: %v", err)
			}
		})
	}

	t.Run("badger without path", func(t *testing.T) {
		cfg := MetadataConfig{Type: "badger", Badger: map[string]any{}}
		if _, err := CreateMetadataStore(ctx, &cfg, nil); err == nil {
			t.Fatal("Expected error for missing db_path")
		}
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := MetadataConfig{Type: "postgres"}
		if _, err := CreateMetadataStore(ctx, &cfg, nil); err == nil {
			t.Fatal("Expected error for unknown metadata store type")
		}
	})
}

func TestCreateContentStore(t *testing.T) {
	ctx := context.Background()

	for _, typ := range []string{"filesystem", "memory"} {
		t.Run(typ, func(t *testing.T) {
			cfg := GetDefaultConfig().Content
			cfg.Type = typ
			cfg.Filesystem["path"] = filepath.Join(t.TempDir(), "content")

			store, err := CreateContentStore(ctx, &cfg, nil)
			if err != nil {
				t.Fatalf("CreateContentStore failed: %v", err)
			}
			defer func() { _ = store.Close() }()

			if err := store.WriteContent(ctx, "blob", []byte("hello")); err != nil {
				t.Fatalf("WriteContent failed: %v", err)
			}
			size, err := store.GetContentSize(ctx, "blob")
			if err != nil {
				t.Fatalf("GetContentSize failed: %v", err)
			}
			if size != 5 {
				t.Errorf("size = %d, want 5", size)
			}
		})
	}

	t.Run("s3 without bucket", func(t *testing.T) {
		cfg := ContentConfig{Type: "s3", S3: map[string]any{"region": "us-east-1"}}
		_, err := CreateContentStore(ctx, &cfg, nil)
		if err == nil || !strings.Contains(err.Error(), "bucket is required") {
			t.Fatalf("Expected bucket error, got: %v", err)
		}
	})

	t.Run("s3 without region", func(t *testing.T) {
		cfg := ContentConfig{Type: "s3", S3: map[string]any{"bucket": "files"}}
		_, err := CreateContentStore(ctx, &cfg, nil)
		if err == nil || !strings.Contains(err.Error(), "region is required") {
			t.Fatalf("Expected region error, got: %v", err)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := ContentConfig{Type: "ftp"}
		if _, err := CreateContentStore(ctx, &cfg, nil); err == nil {
			t.Fatal("Expected error for unknown content store type")
		}
	})
}

func TestCreateQueue(t *testing.T) {
	ctx := context.Background()

	for _, typ := range []string{"memory", "badger"} {
		t.Run(typ, func(t *testing.T) {
			cfg := GetDefaultConfig().Queue
			cfg.Type = typ
			cfg.Badger["db_path"] = filepath.Join(t.TempDir(), "queue")

			q, err := CreateQueue(ctx, &cfg)
			if err != nil {
				t.Fatalf("CreateQueue failed: %v", err)
			}
			defer func() { _ = q.Close() }()

			if _, err := q.Enqueue(ctx, queue.Job{UserID: "u", FileID: "f"}); err != nil {
				t.Fatalf("Enqueue failed: %v", err)
			}
			stats, err := q.Stats(ctx)
			if err != nil {
				t.Fatalf("Stats failed: %v", err)
			}
			if stats.Ready != 1 {
				t.Errorf("stats = %+v, want 1 ready", stats)
			}
		})
	}

	t.Run("unknown", func(t *testing.T) {
		cfg := QueueConfig{Type: "kafka"}
		if _, err := CreateQueue(ctx, &cfg); err == nil {
			t.Fatal("Expected error for unknown queue type")
		}
	})
}
