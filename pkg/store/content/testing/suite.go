package testing

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/marmos91/dittofiles/pkg/store/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite is a conformance test suite for ContentStore implementations.
// It tests the interface contract, not implementation details, so the same
// suite runs against memory, filesystem and S3 stores.
//
// Usage:
//
//	func TestMyContentStore(t *testing.T) {
//	    suite := &testing.StoreTestSuite{
//	        NewStore: func(t *testing.T) content.ContentStore {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty ContentStore for each test.
	NewStore func(t *testing.T) content.ContentStore
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("WriteRead", suite.testWriteRead)
	t.Run("Write_Replaces", suite.testWriteReplaces)
	t.Run("Write_Empty", suite.testWriteEmpty)
	t.Run("Write_CopiesInput", suite.testWriteCopiesInput)
	t.Run("Read_Unknown", suite.testReadUnknown)
	t.Run("Size", suite.testSize)
	t.Run("Exists", suite.testExists)
	t.Run("Delete", suite.testDelete)
	t.Run("Delete_Missing", suite.testDeleteMissing)
	t.Run("List", suite.testList)
	t.Run("InvalidIDs", suite.testInvalidIDs)
	t.Run("ConcurrentWrites", suite.testConcurrentWrites)
	t.Run("CancelledContext", suite.testCancelledContext)
	t.Run("Healthcheck", suite.testHealthcheck)
}

func (suite *StoreTestSuite) newStore(t *testing.T) content.ContentStore {
	t.Helper()
	store := suite.NewStore(t)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// testContext returns a standard test context.
func testContext() context.Context {
	return context.Background()
}

func (suite *StoreTestSuite) testWriteRead(t *testing.T) {
	store := suite.newStore(t)
	payload := []byte("hello world")

	require.NoError(t, store.WriteContent(testContext(), "blob-1", payload))

	got, err := content.ReadAll(testContext(), store, "blob-1")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func (suite *StoreTestSuite) testWriteReplaces(t *testing.T) {
	store := suite.newStore(t)

	require.NoError(t, store.WriteContent(testContext(), "blob-1", []byte("first version, longer")))
	require.NoError(t, store.WriteContent(testContext(), "blob-1", []byte("second")))

	got, err := content.ReadAll(testContext(), store, "blob-1")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func (suite *StoreTestSuite) testWriteEmpty(t *testing.T) {
	store := suite.newStore(t)

	require.NoError(t, store.WriteContent(testContext(), "empty", nil))

	size, err := store.GetContentSize(testContext(), "empty")
	require.NoError(t, err)
	assert.Zero(t, size)

	got, err := content.ReadAll(testContext(), store, "empty")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func (suite *StoreTestSuite) testWriteCopiesInput(t *testing.T) {
	store := suite.newStore(t)
	payload := []byte("original")

	require.NoError(t, store.WriteContent(testContext(), "blob-1", payload))
	copy(payload, "mutated!")

	got, err := content.ReadAll(testContext(), store, "blob-1")
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))
}

func (suite *StoreTestSuite) testReadUnknown(t *testing.T) {
	store := suite.newStore(t)

	_, err := store.ReadContent(testContext(), "missing")
	assert.ErrorIs(t, err, content.ErrContentNotFound)
}

func (suite *StoreTestSuite) testSize(t *testing.T) {
	store := suite.newStore(t)
	payload := bytes.Repeat([]byte("x"), 4096)

	require.NoError(t, store.WriteContent(testContext(), "blob-1", payload))

	size, err := store.GetContentSize(testContext(), "blob-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4096), size)

	_, err = store.GetContentSize(testContext(), "missing")
	assert.ErrorIs(t, err, content.ErrContentNotFound)
}

func (suite *StoreTestSuite) testExists(t *testing.T) {
	store := suite.newStore(t)

	exists, err := store.ContentExists(testContext(), "blob-1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.WriteContent(testContext(), "blob-1", []byte("data")))

	exists, err = store.ContentExists(testContext(), "blob-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func (suite *StoreTestSuite) testDelete(t *testing.T) {
	store := suite.newStore(t)

	require.NoError(t, store.WriteContent(testContext(), "blob-1", []byte("data")))
	require.NoError(t, store.Delete(testContext(), "blob-1"))

	_, err := store.ReadContent(testContext(), "blob-1")
	assert.ErrorIs(t, err, content.ErrContentNotFound)
}

func (suite *StoreTestSuite) testDeleteMissing(t *testing.T) {
	store := suite.newStore(t)

	assert.NoError(t, store.Delete(testContext(), "never-written"))
}

func (suite *StoreTestSuite) testList(t *testing.T) {
	store := suite.newStore(t)

	infos, err := store.List(testContext())
	require.NoError(t, err)
	assert.Empty(t, infos)

	require.NoError(t, store.WriteContent(testContext(), "a", []byte("1")))
	require.NoError(t, store.WriteContent(testContext(), "a_100", []byte("22")))
	require.NoError(t, store.WriteContent(testContext(), "b", []byte("333")))

	infos, err = store.List(testContext())
	require.NoError(t, err)

	sizes := make(map[string]int64, len(infos))
	for _, info := range infos {
		sizes[info.ID] = info.Size
		assert.False(t, info.ModTime.IsZero(), "blob %s has no modification time", info.ID)
	}
	assert.Equal(t, map[string]int64{"a": 1, "a_100": 2, "b": 3}, sizes)
}

func (suite *StoreTestSuite) testInvalidIDs(t *testing.T) {
	store := suite.newStore(t)

	for _, id := range []string{"", "..", "../escape", "nested/id"} {
		err := store.WriteContent(testContext(), id, []byte("x"))
		assert.ErrorIs(t, err, content.ErrInvalidContentID, "id %q", id)
	}
}

func (suite *StoreTestSuite) testConcurrentWrites(t *testing.T) {
	store := suite.newStore(t)

	const writers = 10
	var wg sync.WaitGroup
	errs := make(chan error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("blob-%d", i)
			errs <- store.WriteContent(testContext(), id, []byte(id))
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	for i := 0; i < writers; i++ {
		id := fmt.Sprintf("blob-%d", i)
		got, err := content.ReadAll(testContext(), store, id)
		require.NoError(t, err)
		assert.Equal(t, id, string(got))
	}
}

func (suite *StoreTestSuite) testCancelledContext(t *testing.T) {
	store := suite.newStore(t)

	ctx, cancel := context.WithCancel(testContext())
	cancel()

	assert.ErrorIs(t, store.WriteContent(ctx, "blob-1", []byte("x")), context.Canceled)
	_, err := store.ReadContent(ctx, "blob-1")
	assert.ErrorIs(t, err, context.Canceled)
}

func (suite *StoreTestSuite) testHealthcheck(t *testing.T) {
	store := suite.newStore(t)

	assert.NoError(t, store.Healthcheck(testContext()))
}
