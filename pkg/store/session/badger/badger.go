// Package badger implements a persistent session store on BadgerDB using
// per-entry TTLs.
package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/dittofiles/pkg/store/session"
)

// keyPrefix namespaces session keys so the database can be shared.
const keyPrefix = "s:"

// BadgerSessionStoreConfig configures the BadgerDB session store.
type BadgerSessionStoreConfig struct {
	// DBPath is the directory where BadgerDB stores its files
	DBPath string `mapstructure:"db_path"`

	// InMemory runs Badger without touching disk
	InMemory bool `mapstructure:"in_memory"`

	// GCInterval controls how often value-log GC runs. 0 disables it.
	// Default: 10m
	GCInterval time.Duration `mapstructure:"gc_interval"`
}

// BadgerSessionStore stores sessions as Badger entries with a TTL, so Badger
// hides and eventually compacts expired sessions on its own.
type BadgerSessionStore struct {
	db     *badgerdb.DB
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewBadgerSessionStore opens (or creates) the session database.
func NewBadgerSessionStore(ctx context.Context, cfg BadgerSessionStoreConfig) (*BadgerSessionStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badgerdb.Options
	if cfg.InMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.DBPath == "" {
			return nil, fmt.Errorf("badger session store: db_path is required")
		}
		opts = badgerdb.DefaultOptions(cfg.DBPath)
	}
	opts = opts.WithLoggingLevel(badgerdb.WARNING)
	opts = opts.WithCompression(options.None)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.DBPath, err)
	}

	s := &BadgerSessionStore{
		db:     db,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	interval := cfg.GCInterval
	if interval == 0 {
		interval = 10 * time.Minute
	}
	if cfg.InMemory || interval < 0 {
		close(s.doneCh)
	} else {
		go s.runValueLogGC(interval)
	}

	return s, nil
}

func (s *BadgerSessionStore) Set(ctx context.Context, token, userID string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		return errors.New("session ttl must be positive")
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		e := badgerdb.NewEntry([]byte(keyPrefix+token), []byte(userID)).WithTTL(ttl)
		return txn.SetEntry(e)
	})
}

func (s *BadgerSessionStore) Get(ctx context.Context, token string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var userID string
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + token))
		if err == badgerdb.ErrKeyNotFound {
			return session.ErrSessionNotFound
		}
		if err != nil {
			return err
		}

		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		userID = string(value)
		return nil
	})
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *BadgerSessionStore) Delete(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		key := []byte(keyPrefix + token)
		if _, err := txn.Get(key); err == badgerdb.ErrKeyNotFound {
			return session.ErrSessionNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

func (s *BadgerSessionStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return errors.New("session store is closed")
	}
	return nil
}

// Close stops the GC loop and closes the database.
func (s *BadgerSessionStore) Close() error {
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	<-s.doneCh

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}

func (s *BadgerSessionStore) runValueLogGC(interval time.Duration) {
	defer close(s.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			// RunValueLogGC returns ErrNoRewrite when there is nothing to reclaim.
			for s.db.RunValueLogGC(0.5) == nil {
			}
		}
	}
}
