package gc

import (
	"context"
	"testing"
	"time"

	contentmemory "github.com/marmos91/dittofiles/pkg/store/content/memory"
	"github.com/marmos91/dittofiles/pkg/store/metadata"
	metadatamemory "github.com/marmos91/dittofiles/pkg/store/metadata/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMetrics struct {
	scanned, removed int
	bytes            int64
	err              error
	runs             int
}

func (m *recordingMetrics) RecordRun(scanned, removed int, bytes int64, _ time.Duration, err error) {
	m.scanned, m.removed, m.bytes, m.err = scanned, removed, bytes, err
	m.runs++
}

func setup(t *testing.T) (*metadatamemory.MemoryMetadataStore, *contentmemory.MemoryContentStore) {
	t.Helper()
	blobs, err := contentmemory.NewMemoryContentStore(context.Background(), contentmemory.MemoryContentStoreConfig{})
	require.NoError(t, err)
	meta := metadatamemory.NewMemoryMetadataStoreWithDefaults()
	t.Cleanup(func() { _ = meta.Close() })
	return meta, blobs
}

func put(t *testing.T, blobs *contentmemory.MemoryContentStore, id string, data string, age time.Duration) {
	t.Helper()
	require.NoError(t, blobs.WriteContent(context.Background(), id, []byte(data)))
	blobs.SetModTime(id, time.Now().Add(-age))
}

func exists(t *testing.T, blobs *contentmemory.MemoryContentStore, id string) bool {
	t.Helper()
	ok, err := blobs.ContentExists(context.Background(), id)
	require.NoError(t, err)
	return ok
}

func TestCollectRemovesOldOrphans(t *testing.T) {
	ctx := context.Background()
	meta, blobs := setup(t)

	require.NoError(t, meta.CreateFile(ctx, &metadata.FileNode{
		ID:        "f1",
		OwnerID:   "u1",
		Name:      "cat.png",
		Kind:      metadata.KindImage,
		ParentID:  metadata.RootID,
		LocalPath: "kept",
	}))

	put(t, blobs, "kept", "original", 2*time.Hour)
	put(t, blobs, "kept_500", "variant", 2*time.Hour)
	put(t, blobs, "orphan", "12345", 2*time.Hour)
	put(t, blobs, "orphan_250", "678", 2*time.Hour)
	put(t, blobs, "fresh", "in-flight upload", time.Minute)

	gm := &recordingMetrics{}
	c := NewCollector(meta, blobs, Config{GracePeriod: time.Hour}, gm)

	stats, err := c.RunNow(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.ReferencedCount)
	assert.Equal(t, 5, stats.ExistingCount)
	assert.Equal(t, 1, stats.YoungCount)
	assert.Equal(t, 2, stats.OrphanedCount)
	assert.Equal(t, 2, stats.DeletedCount)
	assert.Equal(t, int64(8), stats.ReclaimedBytes)

	assert.True(t, exists(t, blobs, "kept"))
	assert.True(t, exists(t, blobs, "kept_500"))
	assert.True(t, exists(t, blobs, "fresh"))
	assert.False(t, exists(t, blobs, "orphan"))
	assert.False(t, exists(t, blobs, "orphan_250"))

	assert.Equal(t, 1, gm.runs)
	assert.Equal(t, 5, gm.scanned)
	assert.Equal(t, 2, gm.removed)
	assert.Equal(t, int64(8), gm.bytes)
	assert.NoError(t, gm.err)
}

func TestCollectDryRun(t *testing.T) {
	meta, blobs := setup(t)
	put(t, blobs, "orphan", "x", 2*time.Hour)

	c := NewCollector(meta, blobs, Config{DryRun: true}, nil)
	stats, err := c.RunNow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.OrphanedCount)
	assert.Equal(t, 0, stats.DeletedCount)
	assert.True(t, exists(t, blobs, "orphan"))
}

func TestCollectCancelled(t *testing.T) {
	meta, blobs := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewCollector(meta, blobs, Config{}, nil)
	_, err := c.RunNow(ctx)
	assert.Error(t, err)
}

func TestBaseKey(t *testing.T) {
	tests := map[string]string{
		"abc":         "abc",
		"abc_500":     "abc",
		"abc_100":     "abc",
		"abc_large":   "abc_large",
		"abc_0":       "abc_0",
		"_500":        "_500",
		"a-b-c_250":   "a-b-c",
		"abc_500_250": "abc_500",
	}
	for in, want := range tests {
		assert.Equal(t, want, BaseKey(in), in)
	}
}

func TestStartStop(t *testing.T) {
	meta, blobs := setup(t)
	put(t, blobs, "orphan", "x", 2*time.Hour)

	c := NewCollector(meta, blobs, Config{Interval: 10 * time.Millisecond}, nil)
	c.Start()
	c.Start()

	require.Eventually(t, func() bool {
		ok, err := blobs.ContentExists(context.Background(), "orphan")
		return err == nil && !ok
	}, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))
	require.NoError(t, c.Stop(ctx))
}

func TestDisabledCollector(t *testing.T) {
	meta, blobs := setup(t)
	c := NewCollector(meta, blobs, Config{}, nil)
	c.Start()
	assert.NoError(t, c.Stop(context.Background()))
}
