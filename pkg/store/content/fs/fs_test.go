package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/dittofiles/pkg/store/content"
	contenttesting "github.com/marmos91/dittofiles/pkg/store/content/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FSContentStore {
	t.Helper()
	store, err := NewFSContentStore(context.Background(), FSContentStoreConfig{Path: t.TempDir()})
	require.NoError(t, err)
	return store
}

func TestFSContentStore(t *testing.T) {
	suite := &contenttesting.StoreTestSuite{
		NewStore: func(t *testing.T) content.ContentStore {
			return newTestStore(t)
		},
	}
	suite.Run(t)
}

func TestFSContentStore_RequiresPath(t *testing.T) {
	_, err := NewFSContentStore(context.Background(), FSContentStoreConfig{})
	assert.Error(t, err)
}

func TestFSContentStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "blobs")

	_, err := NewFSContentStore(context.Background(), FSContentStoreConfig{Path: dir})
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFSContentStore_BlobIsPlainFile(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.WriteContent(ctx, "abc_250", []byte("thumb")))

	data, err := os.ReadFile(filepath.Join(store.BasePath(), "abc_250"))
	require.NoError(t, err)
	assert.Equal(t, "thumb", string(data))
}

func TestFSContentStore_ListSkipsTempFiles(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.WriteContent(ctx, "real", []byte("x")))
	require.NoError(t, os.WriteFile(filepath.Join(store.BasePath(), tempPrefix+"real-123"), []byte("partial"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(store.BasePath(), "subdir"), 0755))

	infos, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "real", infos[0].ID)
}

func TestFSContentStore_NoTempLeftBehind(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.WriteContent(ctx, "blob", []byte("payload")))
	}

	entries, err := os.ReadDir(store.BasePath())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "blob", entries[0].Name())
}

func TestFSContentStore_HealthcheckMissingRoot(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.RemoveAll(store.BasePath()))

	assert.Error(t, store.Healthcheck(context.Background()))
}
