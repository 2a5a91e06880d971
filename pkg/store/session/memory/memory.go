// Package memory implements an in-process session store on top of an
// expirable LRU cache.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/marmos91/dittofiles/pkg/store/session"
)

// MemorySessionStoreConfig configures the memory session store.
type MemorySessionStoreConfig struct {
	// MaxEntries bounds the number of cached sessions. When set, the least
	// recently used session is evicted once the bound is reached, even if it
	// has not expired. Default: 0 (unbounded)
	MaxEntries int `mapstructure:"max_entries"`

	// MaxTTL is the longest ttl Set accepts. Expired entries are reaped in
	// the background after at most MaxTTL. Default: session.DefaultTTL
	MaxTTL time.Duration `mapstructure:"max_ttl"`
}

type entry struct {
	userID    string
	expiresAt time.Time
}

// MemorySessionStore keeps sessions in an expirable LRU.
//
// The LRU reaps entries after MaxTTL; each entry also stores its own
// deadline which Get checks, so a Set with a shorter ttl expires on time.
type MemorySessionStore struct {
	cache  *expirable.LRU[string, entry]
	maxTTL time.Duration
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
}

// NewMemorySessionStore creates a memory session store.
func NewMemorySessionStore(cfg MemorySessionStoreConfig) *MemorySessionStore {
	if cfg.MaxEntries < 0 {
		cfg.MaxEntries = 0
	}
	if cfg.MaxTTL <= 0 {
		cfg.MaxTTL = session.DefaultTTL
	}

	return &MemorySessionStore{
		cache:  expirable.NewLRU[string, entry](cfg.MaxEntries, nil, cfg.MaxTTL),
		maxTTL: cfg.MaxTTL,
		now:    time.Now,
	}
}

func (s *MemorySessionStore) Set(ctx context.Context, token, userID string, ttl time.Duration) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if ttl <= 0 {
		return errors.New("session ttl must be positive")
	}
	if ttl > s.maxTTL {
		return fmt.Errorf("session ttl %v exceeds max_ttl %v", ttl, s.maxTTL)
	}

	s.cache.Add(token, entry{userID: userID, expiresAt: s.now().Add(ttl)})
	return nil
}

func (s *MemorySessionStore) Get(ctx context.Context, token string) (string, error) {
	if err := s.check(ctx); err != nil {
		return "", err
	}

	e, ok := s.cache.Get(token)
	if !ok {
		return "", session.ErrSessionNotFound
	}
	if !s.now().Before(e.expiresAt) {
		s.cache.Remove(token)
		return "", session.ErrSessionNotFound
	}
	return e.userID, nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, token string) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	e, ok := s.cache.Peek(token)
	if !ok {
		return session.ErrSessionNotFound
	}
	s.cache.Remove(token)

	if !s.now().Before(e.expiresAt) {
		return session.ErrSessionNotFound
	}
	return nil
}

func (s *MemorySessionStore) Healthcheck(ctx context.Context) error {
	return s.check(ctx)
}

func (s *MemorySessionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.cache.Purge()
	return nil
}

// Len returns the number of cached sessions, including expired ones not yet
// evicted.
func (s *MemorySessionStore) Len() int {
	return s.cache.Len()
}

func (s *MemorySessionStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New("session store is closed")
	}
	return nil
}
