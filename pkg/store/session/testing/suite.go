package testing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittofiles/pkg/store/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Clock advances a store's notion of time. Implementations backed by real
// time return nil and the suite sleeps instead.
type Clock func(d time.Duration)

// StoreTestSuite is a conformance test suite for session.Store implementations.
//
// Usage:
//
//	func TestMySessionStore(t *testing.T) {
//	    suite := &testing.StoreTestSuite{
//	        NewStore: func(t *testing.T) (session.Store, testing.Clock) {
//	            return mystore.New(), nil
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh store for each test and optionally a clock
	// that moves the store's time forward.
	NewStore func(t *testing.T) (session.Store, Clock)
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("SetGet", suite.testSetGet)
	t.Run("Get_Unknown", suite.testGetUnknown)
	t.Run("Set_Overwrites", suite.testSetOverwrites)
	t.Run("Delete", suite.testDelete)
	t.Run("Delete_Twice", suite.testDeleteTwice)
	t.Run("Expiry", suite.testExpiry)
	t.Run("MultipleSessionsPerUser", suite.testMultipleSessions)
	t.Run("ConcurrentAccess", suite.testConcurrent)
	t.Run("Healthcheck", suite.testHealthcheck)
}

func (suite *StoreTestSuite) newStore(t *testing.T) (session.Store, Clock) {
	t.Helper()
	store, clock := suite.NewStore(t)
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func ctx() context.Context {
	return context.Background()
}

func (suite *StoreTestSuite) testSetGet(t *testing.T) {
	store, _ := suite.newStore(t)
	token := uuid.NewString()

	require.NoError(t, store.Set(ctx(), token, "user-1", time.Hour))

	userID, err := store.Get(ctx(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func (suite *StoreTestSuite) testGetUnknown(t *testing.T) {
	store, _ := suite.newStore(t)

	_, err := store.Get(ctx(), uuid.NewString())
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func (suite *StoreTestSuite) testSetOverwrites(t *testing.T) {
	store, _ := suite.newStore(t)
	token := uuid.NewString()

	require.NoError(t, store.Set(ctx(), token, "user-1", time.Hour))
	require.NoError(t, store.Set(ctx(), token, "user-2", time.Hour))

	userID, err := store.Get(ctx(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-2", userID)
}

func (suite *StoreTestSuite) testDelete(t *testing.T) {
	store, _ := suite.newStore(t)
	token := uuid.NewString()

	require.NoError(t, store.Set(ctx(), token, "user-1", time.Hour))
	require.NoError(t, store.Delete(ctx(), token))

	_, err := store.Get(ctx(), token)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func (suite *StoreTestSuite) testDeleteTwice(t *testing.T) {
	store, _ := suite.newStore(t)
	token := uuid.NewString()

	require.NoError(t, store.Set(ctx(), token, "user-1", time.Hour))
	require.NoError(t, store.Delete(ctx(), token))

	assert.ErrorIs(t, store.Delete(ctx(), token), session.ErrSessionNotFound)
}

func (suite *StoreTestSuite) testExpiry(t *testing.T) {
	store, clock := suite.newStore(t)
	token := uuid.NewString()
	ttl := time.Second

	require.NoError(t, store.Set(ctx(), token, "user-1", ttl))

	_, err := store.Get(ctx(), token)
	require.NoError(t, err)

	if clock != nil {
		clock(ttl + time.Second)
	} else {
		// Badger tracks expiry with one-second resolution.
		time.Sleep(ttl + 1100*time.Millisecond)
	}

	_, err = store.Get(ctx(), token)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.ErrorIs(t, store.Delete(ctx(), token), session.ErrSessionNotFound)
}

func (suite *StoreTestSuite) testMultipleSessions(t *testing.T) {
	store, _ := suite.newStore(t)
	first := uuid.NewString()
	second := uuid.NewString()

	require.NoError(t, store.Set(ctx(), first, "user-1", time.Hour))
	require.NoError(t, store.Set(ctx(), second, "user-1", time.Hour))
	require.NoError(t, store.Delete(ctx(), first))

	userID, err := store.Get(ctx(), second)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func (suite *StoreTestSuite) testConcurrent(t *testing.T) {
	store, _ := suite.newStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token := uuid.NewString()
			userID := uuid.NewString()

			if !assert.NoError(t, store.Set(ctx(), token, userID, time.Hour)) {
				return
			}
			got, err := store.Get(ctx(), token)
			if assert.NoError(t, err) {
				assert.Equal(t, userID, got)
			}
			assert.NoError(t, store.Delete(ctx(), token))
		}()
	}
	wg.Wait()
}

func (suite *StoreTestSuite) testHealthcheck(t *testing.T) {
	store, _ := suite.newStore(t)
	assert.NoError(t, store.Healthcheck(ctx()))
}
