package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/dittofiles/pkg/store/session"
	sessiontesting "github.com/marmos91/dittofiles/pkg/store/session/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock for expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(cfg MemorySessionStoreConfig) (*MemorySessionStore, *fakeClock) {
	clock := &fakeClock{now: time.Now()}
	store := NewMemorySessionStore(cfg)
	store.now = clock.Now
	return store, clock
}

func TestMemorySessionStore(t *testing.T) {
	suite := &sessiontesting.StoreTestSuite{
		NewStore: func(t *testing.T) (session.Store, sessiontesting.Clock) {
			store, clock := newTestStore(MemorySessionStoreConfig{})
			return store, clock.Advance
		},
	}

	suite.Run(t)
}

func TestMemorySessionStore_EvictsLeastRecentlyUsed(t *testing.T) {
	store, _ := newTestStore(MemorySessionStoreConfig{MaxEntries: 2})
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", "u1", time.Hour))
	require.NoError(t, store.Set(ctx, "b", "u2", time.Hour))
	require.NoError(t, store.Set(ctx, "c", "u3", time.Hour))

	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.Equal(t, 2, store.Len())
}

func TestMemorySessionStore_LongTTL(t *testing.T) {
	store, clock := newTestStore(MemorySessionStoreConfig{MaxTTL: 48 * time.Hour})
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", "u1", 48*time.Hour))

	clock.Advance(30 * time.Hour)
	userID, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)

	clock.Advance(18 * time.Hour)
	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestMemorySessionStore_RejectsTTLAboveMax(t *testing.T) {
	store, _ := newTestStore(MemorySessionStoreConfig{})
	assert.Error(t, store.Set(context.Background(), "a", "u1", 48*time.Hour))
}

func TestMemorySessionStore_UnboundedByDefault(t *testing.T) {
	store, _ := newTestStore(MemorySessionStoreConfig{})
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		require.NoError(t, store.Set(ctx, fmt.Sprintf("t%d", i), "u1", time.Hour))
	}
	_, err := store.Get(ctx, "t0")
	assert.NoError(t, err)
	assert.Equal(t, 1000, store.Len())
}

func TestMemorySessionStore_RejectsNonPositiveTTL(t *testing.T) {
	store, _ := newTestStore(MemorySessionStoreConfig{})
	assert.Error(t, store.Set(context.Background(), "a", "u1", 0))
}

func TestMemorySessionStore_Closed(t *testing.T) {
	store, _ := newTestStore(MemorySessionStoreConfig{})
	require.NoError(t, store.Close())

	assert.Error(t, store.Healthcheck(context.Background()))
	_, err := store.Get(context.Background(), "a")
	assert.Error(t, err)
}
