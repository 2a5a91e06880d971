package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/marmos91/dittofiles/pkg/store/metadata"
	metadatatesting "github.com/marmos91/dittofiles/pkg/store/metadata/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMemoryMetadataStore runs the conformance suite against the memory store.
func TestMemoryMetadataStore(t *testing.T) {
	suite := &metadatatesting.StoreTestSuite{
		NewStore: func() metadata.MetadataStore {
			return NewMemoryMetadataStoreWithDefaults()
		},
	}

	suite.Run(t)
}

func TestMemoryMetadataStore_MaxFiles(t *testing.T) {
	store := NewMemoryMetadataStore(MemoryMetadataStoreConfig{MaxFiles: 1})
	ctx := context.Background()

	first := &metadata.FileNode{ID: uuid.NewString(), OwnerID: "o", ParentID: metadata.RootID, Kind: metadata.KindFolder}
	require.NoError(t, store.CreateFile(ctx, first))

	second := &metadata.FileNode{ID: uuid.NewString(), OwnerID: "o", ParentID: metadata.RootID, Kind: metadata.KindFolder}
	err := store.CreateFile(ctx, second)
	assert.True(t, metadata.HasCode(err, metadata.ErrIOError), "got %v", err)
}

func TestMemoryMetadataStore_ClosedHealthcheck(t *testing.T) {
	store := NewMemoryMetadataStoreWithDefaults()
	require.NoError(t, store.Close())

	assert.Error(t, store.Healthcheck(context.Background()))
}
