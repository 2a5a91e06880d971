package testing

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittofiles/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunFileTests executes the file node tests.
func (suite *StoreTestSuite) RunFileTests(t *testing.T) {
	t.Run("CreateFile_Success", suite.testCreateFile)
	t.Run("CreateFile_AssignsIncreasingSeq", suite.testCreateFileSeq)
	t.Run("CreateFile_DuplicateID", suite.testCreateFileDuplicate)
	t.Run("CreateFile_InvalidArgument", suite.testCreateFileInvalid)
	t.Run("GetFile_NotFound", suite.testGetFileNotFound)
	t.Run("ListFiles_InsertionOrder", suite.testListFilesOrder)
	t.Run("ListFiles_Pagination", suite.testListFilesPagination)
	t.Run("ListFiles_ScopedByOwnerAndParent", suite.testListFilesScope)
	t.Run("ListFiles_OffsetBeyondEnd", suite.testListFilesBeyondEnd)
	t.Run("SetPublic_Success", suite.testSetPublic)
	t.Run("SetPublic_NotFound", suite.testSetPublicNotFound)
	t.Run("CountFiles", suite.testCountFiles)
	t.Run("WalkFiles", suite.testWalkFiles)
	t.Run("ReturnedRecordsAreCopies", suite.testReturnedCopies)
}

func (suite *StoreTestSuite) testCreateFile(t *testing.T) {
	store := suite.newStore(t)
	node := newNode(uuid.NewString(), metadata.RootID, "photo.png", metadata.KindImage)

	require.NoError(t, store.CreateFile(testContext(), node))
	assert.NotZero(t, node.Seq)

	got, err := store.GetFile(testContext(), node.ID)
	require.NoError(t, err)
	assert.Equal(t, node.ID, got.ID)
	assert.Equal(t, node.OwnerID, got.OwnerID)
	assert.Equal(t, node.Name, got.Name)
	assert.Equal(t, node.Kind, got.Kind)
	assert.Equal(t, node.ParentID, got.ParentID)
	assert.Equal(t, node.LocalPath, got.LocalPath)
	assert.Equal(t, node.Seq, got.Seq)
	assert.False(t, got.IsPublic)
	assert.True(t, node.CreatedAt.Equal(got.CreatedAt))
}

func (suite *StoreTestSuite) testCreateFileSeq(t *testing.T) {
	store := suite.newStore(t)
	owner := uuid.NewString()

	var last uint64
	for i := 0; i < 5; i++ {
		node := newNode(owner, metadata.RootID, fmt.Sprintf("f%d", i), metadata.KindFile)
		require.NoError(t, store.CreateFile(testContext(), node))
		assert.Greater(t, node.Seq, last)
		last = node.Seq
	}
}

func (suite *StoreTestSuite) testCreateFileDuplicate(t *testing.T) {
	store := suite.newStore(t)
	node := newNode(uuid.NewString(), metadata.RootID, "a", metadata.KindFolder)
	require.NoError(t, store.CreateFile(testContext(), node))

	dup := newNode(node.OwnerID, metadata.RootID, "b", metadata.KindFolder)
	dup.ID = node.ID

	err := store.CreateFile(testContext(), dup)
	assert.True(t, metadata.IsAlreadyExists(err), "got %v", err)

	got, err := store.GetFile(testContext(), node.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Name)
}

func (suite *StoreTestSuite) testCreateFileInvalid(t *testing.T) {
	store := suite.newStore(t)

	err := store.CreateFile(testContext(), &metadata.FileNode{OwnerID: uuid.NewString()})
	assert.True(t, metadata.HasCode(err, metadata.ErrInvalidArgument), "got %v", err)

	err = store.CreateFile(testContext(), &metadata.FileNode{ID: uuid.NewString()})
	assert.True(t, metadata.HasCode(err, metadata.ErrInvalidArgument), "got %v", err)
}

func (suite *StoreTestSuite) testGetFileNotFound(t *testing.T) {
	store := suite.newStore(t)

	_, err := store.GetFile(testContext(), uuid.NewString())
	assert.True(t, metadata.IsNotFound(err), "got %v", err)
}

func (suite *StoreTestSuite) testListFilesOrder(t *testing.T) {
	store := suite.newStore(t)
	owner := uuid.NewString()

	// Names sort opposite to insertion order to catch name-ordered listings.
	names := []string{"z", "y", "x", "w"}
	for _, name := range names {
		require.NoError(t, store.CreateFile(testContext(), newNode(owner, metadata.RootID, name, metadata.KindFile)))
	}

	nodes, err := store.ListFiles(testContext(), owner, metadata.RootID, 0, 10)
	require.NoError(t, err)
	require.Len(t, nodes, len(names))
	for i, node := range nodes {
		assert.Equal(t, names[i], node.Name)
	}
}

func (suite *StoreTestSuite) testListFilesPagination(t *testing.T) {
	store := suite.newStore(t)
	owner := uuid.NewString()

	var ids []string
	for i := 0; i < 25; i++ {
		node := newNode(owner, metadata.RootID, fmt.Sprintf("file-%02d", i), metadata.KindFile)
		require.NoError(t, store.CreateFile(testContext(), node))
		ids = append(ids, node.ID)
	}

	first, err := store.ListFiles(testContext(), owner, metadata.RootID, 0, 20)
	require.NoError(t, err)
	second, err := store.ListFiles(testContext(), owner, metadata.RootID, 20, 20)
	require.NoError(t, err)

	require.Len(t, first, 20)
	require.Len(t, second, 5)

	var got []string
	for _, node := range append(first, second...) {
		got = append(got, node.ID)
	}
	assert.Equal(t, ids, got)
}

func (suite *StoreTestSuite) testListFilesScope(t *testing.T) {
	store := suite.newStore(t)
	alice := uuid.NewString()
	bob := uuid.NewString()

	folder := newNode(alice, metadata.RootID, "docs", metadata.KindFolder)
	require.NoError(t, store.CreateFile(testContext(), folder))
	require.NoError(t, store.CreateFile(testContext(), newNode(alice, folder.ID, "inside.txt", metadata.KindFile)))
	require.NoError(t, store.CreateFile(testContext(), newNode(alice, metadata.RootID, "top.txt", metadata.KindFile)))
	require.NoError(t, store.CreateFile(testContext(), newNode(bob, metadata.RootID, "bob.txt", metadata.KindFile)))

	root, err := store.ListFiles(testContext(), alice, metadata.RootID, 0, 20)
	require.NoError(t, err)
	require.Len(t, root, 2)
	assert.Equal(t, "docs", root[0].Name)
	assert.Equal(t, "top.txt", root[1].Name)

	inside, err := store.ListFiles(testContext(), alice, folder.ID, 0, 20)
	require.NoError(t, err)
	require.Len(t, inside, 1)
	assert.Equal(t, "inside.txt", inside[0].Name)

	bobs, err := store.ListFiles(testContext(), bob, metadata.RootID, 0, 20)
	require.NoError(t, err)
	require.Len(t, bobs, 1)
	assert.Equal(t, "bob.txt", bobs[0].Name)
}

func (suite *StoreTestSuite) testListFilesBeyondEnd(t *testing.T) {
	store := suite.newStore(t)
	owner := uuid.NewString()
	require.NoError(t, store.CreateFile(testContext(), newNode(owner, metadata.RootID, "only", metadata.KindFile)))

	nodes, err := store.ListFiles(testContext(), owner, metadata.RootID, 20, 20)
	require.NoError(t, err)
	assert.NotNil(t, nodes)
	assert.Empty(t, nodes)

	_, err = store.ListFiles(testContext(), owner, metadata.RootID, -1, 20)
	assert.True(t, metadata.HasCode(err, metadata.ErrInvalidArgument), "got %v", err)
}

func (suite *StoreTestSuite) testSetPublic(t *testing.T) {
	store := suite.newStore(t)
	node := newNode(uuid.NewString(), metadata.RootID, "a.txt", metadata.KindFile)
	require.NoError(t, store.CreateFile(testContext(), node))

	later := node.UpdatedAt.Add(time.Minute)
	updated, err := store.SetPublic(testContext(), node.ID, true, later)
	require.NoError(t, err)
	assert.True(t, updated.IsPublic)
	assert.True(t, later.Equal(updated.UpdatedAt))

	// Setting the same value again succeeds and leaves the state unchanged.
	again, err := store.SetPublic(testContext(), node.ID, true, later)
	require.NoError(t, err)
	assert.True(t, again.IsPublic)

	got, err := store.GetFile(testContext(), node.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPublic)
	assert.Equal(t, node.Seq, got.Seq)

	_, err = store.SetPublic(testContext(), node.ID, false, later)
	require.NoError(t, err)
	got, err = store.GetFile(testContext(), node.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPublic)
}

func (suite *StoreTestSuite) testSetPublicNotFound(t *testing.T) {
	store := suite.newStore(t)

	_, err := store.SetPublic(testContext(), uuid.NewString(), true, time.Now())
	assert.True(t, metadata.IsNotFound(err), "got %v", err)
}

func (suite *StoreTestSuite) testCountFiles(t *testing.T) {
	store := suite.newStore(t)
	owner := uuid.NewString()

	require.NoError(t, store.CreateFile(testContext(), newNode(owner, metadata.RootID, "a", metadata.KindFolder)))
	require.NoError(t, store.CreateFile(testContext(), newNode(owner, metadata.RootID, "b", metadata.KindFile)))
	require.NoError(t, store.CreateFile(testContext(), newNode(uuid.NewString(), metadata.RootID, "c", metadata.KindImage)))

	count, err := store.CountFiles(testContext())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func (suite *StoreTestSuite) testWalkFiles(t *testing.T) {
	store := suite.newStore(t)
	owner := uuid.NewString()

	want := map[string]bool{}
	for i := 0; i < 4; i++ {
		node := newNode(owner, metadata.RootID, fmt.Sprintf("n%d", i), metadata.KindFile)
		require.NoError(t, store.CreateFile(testContext(), node))
		want[node.ID] = true
	}

	seen := map[string]bool{}
	err := store.WalkFiles(testContext(), func(node *metadata.FileNode) error {
		seen[node.ID] = true
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, want, seen)

	stop := fmt.Errorf("stop")
	calls := 0
	err = store.WalkFiles(testContext(), func(node *metadata.FileNode) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func (suite *StoreTestSuite) testReturnedCopies(t *testing.T) {
	store := suite.newStore(t)
	node := newNode(uuid.NewString(), metadata.RootID, "original", metadata.KindFile)
	require.NoError(t, store.CreateFile(testContext(), node))

	got, err := store.GetFile(testContext(), node.ID)
	require.NoError(t, err)
	got.Name = "mutated"
	got.IsPublic = true

	again, err := store.GetFile(testContext(), node.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Name)
	assert.False(t, again.IsPublic)
}
