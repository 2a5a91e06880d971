package memory

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/dittofiles/pkg/store/content"
	contenttesting "github.com/marmos91/dittofiles/pkg/store/content/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryContentStore(t *testing.T) {
	suite := &contenttesting.StoreTestSuite{
		NewStore: func(t *testing.T) content.ContentStore {
			store, err := NewMemoryContentStore(context.Background(), MemoryContentStoreConfig{})
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}

func TestMemoryContentStore_MaxSize(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryContentStore(ctx, MemoryContentStoreConfig{MaxSizeBytes: 10})
	require.NoError(t, err)

	require.NoError(t, store.WriteContent(ctx, "a", []byte("123456")))
	assert.Error(t, store.WriteContent(ctx, "b", []byte("123456")))

	// Replacing a blob only counts the difference.
	require.NoError(t, store.WriteContent(ctx, "a", []byte("1234567890")))
	assert.Equal(t, uint64(10), store.UsedBytes())

	require.NoError(t, store.Delete(ctx, "a"))
	assert.Zero(t, store.UsedBytes())
	require.NoError(t, store.WriteContent(ctx, "b", []byte("123456")))
}

func TestMemoryContentStore_SetModTime(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryContentStore(ctx, MemoryContentStoreConfig{})
	require.NoError(t, err)

	require.NoError(t, store.WriteContent(ctx, "a", []byte("x")))
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	store.SetModTime("a", old)

	infos, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.True(t, infos[0].ModTime.Equal(old))
}
