package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/marmos91/dittofiles/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFolder_Root(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice@example.com")

	for _, parent := range []string{"", "0", " 0 "} {
		node := f.folder(t, alice.ID, "docs", parent)
		assert.Equal(t, metadata.RootID, node.ParentID)
		assert.Equal(t, metadata.KindFolder, node.Kind)
		assert.Empty(t, node.LocalPath)
		assert.False(t, node.IsPublic)
	}
}

func TestCreate_ParentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice@example.com")
	bob := f.register(t, "bob@example.com")

	folder := f.folder(t, alice.ID, "docs", "")
	file := f.upload(t, alice.ID, "a.txt", "file", []byte("hi"))
	bobFolder := f.folder(t, bob.ID, "private", "")

	tests := []struct {
		name    string
		parent  string
		wantErr error
	}{
		{name: "existing folder", parent: folder.ID},
		{name: "missing parent", parent: "does-not-exist", wantErr: ErrParentNotFound},
		{name: "file parent", parent: file.ID, wantErr: ErrParentNotAFolder},
		{name: "other user's folder", parent: bobFolder.ID, wantErr: ErrParentNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, folderErr := f.files.CreateFolder(ctx, alice.ID, "sub", tt.parent, false)
			_, uploadErr := f.files.UploadContent(ctx, CreateRequest{
				OwnerID: alice.ID, Name: "b.txt", Kind: "file", ParentID: tt.parent, Data: "aGk=",
			})

			if tt.wantErr == nil {
				assert.NoError(t, folderErr)
				assert.NoError(t, uploadErr)
				return
			}
			assert.ErrorIs(t, folderErr, tt.wantErr)
			assert.ErrorIs(t, uploadErr, tt.wantErr)
			assert.Equal(t, KindValidation, KindOf(uploadErr))
		})
	}
}

func TestUpload_ValidationOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice@example.com")

	tests := []struct {
		name    string
		req     CreateRequest
		wantErr error
	}{
		{name: "nothing", req: CreateRequest{}, wantErr: ErrMissingName},
		{name: "name only", req: CreateRequest{Name: "x"}, wantErr: ErrMissingType},
		{name: "bad type", req: CreateRequest{Name: "x", Kind: "video", Data: "aGk="}, wantErr: ErrMissingType},
		{name: "no data", req: CreateRequest{Name: "x", Kind: "file"}, wantErr: ErrMissingData},
		{name: "no data before parent", req: CreateRequest{Name: "x", Kind: "image", ParentID: "nope"}, wantErr: ErrMissingData},
		{name: "parent before payload", req: CreateRequest{Name: "x", Kind: "file", ParentID: "nope", Data: "%%%"}, wantErr: ErrParentNotFound},
		{name: "bad base64", req: CreateRequest{Name: "x", Kind: "file", Data: "%%%"}, wantErr: ErrInvalidData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.OwnerID = alice.ID
			_, err := f.files.Create(ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	count, err := f.meta.CountFiles(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "rejected requests must not create nodes")

	blobs, err := f.blobs.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, blobs, "rejected requests must not write blobs")
}

func TestCreate_FolderIgnoresData(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice@example.com")

	node, err := f.files.Create(context.Background(), CreateRequest{
		OwnerID: alice.ID, Name: "docs", Kind: "folder", Data: "aGk=", IsPublic: true,
	})
	require.NoError(t, err)
	assert.Equal(t, metadata.KindFolder, node.Kind)
	assert.Empty(t, node.LocalPath)
	assert.True(t, node.IsPublic)
}

func TestUpload_ReadBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice@example.com")
	payload := []byte("Hello Webstack!\n")

	node := f.upload(t, alice.ID, "hello.txt", "file", payload)
	assert.NotEmpty(t, node.LocalPath)
	assert.Equal(t, metadata.RootID, node.ParentID)

	c, err := f.files.ReadContent(ctx, alice.ID, node.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, payload, readAll(t, c))
	assert.Equal(t, int64(len(payload)), c.Size)
	assert.Equal(t, "text/plain; charset=utf-8", c.ContentType)
}

func TestUpload_UnpaddedBase64(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice@example.com")

	node, err := f.files.UploadContent(context.Background(), CreateRequest{
		OwnerID: alice.ID, Name: "a.bin", Kind: "file", Data: "aGk",
	})
	require.NoError(t, err)

	c, err := f.files.ReadContent(context.Background(), alice.ID, node.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(readAll(t, c)))
}

func TestUpload_ImageEnqueuesJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice@example.com")

	f.upload(t, alice.ID, "notes.txt", "file", []byte("x"))
	image := f.upload(t, alice.ID, "cat.png", "image", []byte("not really a png"))

	stats, err := f.jobs.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Ready, "only images are queued")

	d, err := f.jobs.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, image.ID, d.Job.FileID)
	assert.Equal(t, alice.ID, d.Job.UserID)
}

func TestUpload_EnqueueFailureDoesNotFailUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice@example.com")
	require.NoError(t, f.jobs.Close())

	node := f.upload(t, alice.ID, "cat.png", "image", []byte("png"))

	got, err := f.files.Get(ctx, alice.ID, node.ID)
	require.NoError(t, err)
	assert.Equal(t, node.ID, got.ID)
}

func TestUpload_NilQueue(t *testing.T) {
	f := newFixture(t)
	files := NewFileService(f.meta, f.blobs, nil, nil)
	alice := f.register(t, "alice@example.com")

	_, err := files.UploadContent(context.Background(), CreateRequest{
		OwnerID: alice.ID, Name: "cat.png", Kind: "image", Data: "aGk=",
	})
	assert.NoError(t, err)
}

func TestGet_Visibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice@example.com")
	bob := f.register(t, "bob@example.com")

	secret := f.upload(t, bob.ID, "secret.txt", "file", []byte("bob only"))

	_, err := f.files.Get(ctx, alice.ID, secret.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.files.ReadContent(ctx, alice.ID, secret.ID, 0)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.files.ReadContent(ctx, "", secret.ID, 0)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.files.SetPublic(ctx, bob.ID, secret.ID, true)
	require.NoError(t, err)

	got, err := f.files.Get(ctx, alice.ID, secret.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPublic)

	c, err := f.files.ReadContent(ctx, "", secret.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "bob only", string(readAll(t, c)))

	_, err = f.files.Get(ctx, alice.ID, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetPublic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice@example.com")
	bob := f.register(t, "bob@example.com")
	node := f.folder(t, alice.ID, "docs", "")

	first, err := f.files.SetPublic(ctx, alice.ID, node.ID, true)
	require.NoError(t, err)
	assert.True(t, first.IsPublic)

	second, err := f.files.SetPublic(ctx, alice.ID, node.ID, true)
	require.NoError(t, err)
	assert.True(t, second.IsPublic)
	assert.Equal(t, first.ID, second.ID)
	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))

	// Public does not mean writable by others.
	_, err = f.files.SetPublic(ctx, bob.ID, node.ID, false)
	assert.ErrorIs(t, err, ErrNotFound)

	off, err := f.files.SetPublic(ctx, alice.ID, node.ID, false)
	require.NoError(t, err)
	assert.False(t, off.IsPublic)

	_, err = f.files.SetPublic(ctx, alice.ID, "unknown", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_Pagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice@example.com")
	bob := f.register(t, "bob@example.com")
	docs := f.folder(t, alice.ID, "docs", "")

	for i := 0; i < 25; i++ {
		f.upload(t, alice.ID, fmt.Sprintf("file-%02d.txt", i), "file", []byte("x"))
	}
	f.upload(t, alice.ID, "nested.txt", "file", []byte("x"))
	f.upload(t, bob.ID, "bob.txt", "file", []byte("x"))

	page0, err := f.files.List(ctx, alice.ID, "", 0)
	require.NoError(t, err)
	page1, err := f.files.List(ctx, alice.ID, "0", 1)
	require.NoError(t, err)
	page2, err := f.files.List(ctx, alice.ID, "0", 2)
	require.NoError(t, err)

	// docs + 25 files + nested.txt live at the root: 27 entries.
	require.Len(t, page0, 20)
	require.Len(t, page1, 7)
	assert.Empty(t, page2)

	assert.Equal(t, "docs", page0[0].Name)
	assert.Equal(t, "file-00.txt", page0[1].Name)
	assert.Equal(t, "file-18.txt", page0[19].Name)
	assert.Equal(t, "file-19.txt", page1[0].Name)

	seen := make(map[string]bool)
	for _, node := range append(page0, page1...) {
		assert.False(t, seen[node.ID], "node %s on two pages", node.ID)
		seen[node.ID] = true
		assert.Equal(t, alice.ID, node.OwnerID)
	}

	negative, err := f.files.List(ctx, alice.ID, "0", -3)
	require.NoError(t, err)
	assert.Equal(t, page0, negative)

	empty, err := f.files.List(ctx, alice.ID, docs.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestList_TwentyFive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice@example.com")
	docs := f.folder(t, alice.ID, "docs", "")

	var created []string
	for i := 0; i < 25; i++ {
		node, err := f.files.CreateFolder(ctx, alice.ID, fmt.Sprintf("sub-%d", i), docs.ID, false)
		require.NoError(t, err)
		created = append(created, node.ID)
	}

	page0, err := f.files.List(ctx, alice.ID, docs.ID, 0)
	require.NoError(t, err)
	page1, err := f.files.List(ctx, alice.ID, docs.ID, 1)
	require.NoError(t, err)

	require.Len(t, page0, 20)
	require.Len(t, page1, 5)

	var listed []string
	for _, node := range append(page0, page1...) {
		listed = append(listed, node.ID)
	}
	assert.Equal(t, created, listed)
}

func TestReadContent_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice@example.com")

	folder := f.folder(t, alice.ID, "docs", "")
	_, err := f.files.ReadContent(ctx, alice.ID, folder.ID, 0)
	assert.ErrorIs(t, err, ErrNotAFile)
	assert.Equal(t, "A folder doesn't have content", MessageOf(err))

	image := f.upload(t, alice.ID, "cat.png", "image", []byte("png"))

	_, err = f.files.ReadContent(ctx, alice.ID, image.ID, 300)
	assert.ErrorIs(t, err, ErrInvalidSize)

	// No worker has run: the variant does not exist yet.
	_, err = f.files.ReadContent(ctx, alice.ID, image.ID, 250)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.blobs.WriteContent(ctx, ThumbnailKey(image.LocalPath, 250), []byte("thumb")))
	c, err := f.files.ReadContent(ctx, alice.ID, image.ID, 250)
	require.NoError(t, err)
	assert.Equal(t, "thumb", string(readAll(t, c)))
	assert.Equal(t, "image/png", c.ContentType)

	// Metadata pointing at a vanished blob.
	require.NoError(t, f.blobs.Delete(ctx, image.LocalPath))
	_, err = f.files.ReadContent(ctx, alice.ID, image.ID, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestContentTypeFor(t *testing.T) {
	tests := map[string]string{
		"photo.PNG":   "image/png",
		"photo.jpg":   "image/jpeg",
		"index.html":  "text/html; charset=utf-8",
		"archive":     "application/octet-stream",
		"weird.zzzzz": "application/octet-stream",
	}
	for name, want := range tests {
		assert.Equal(t, want, ContentTypeFor(name), name)
	}
}

func TestThumbnailKey(t *testing.T) {
	assert.Equal(t, "abc_500", ThumbnailKey("abc", 500))
}

func TestSetThumbnailWidths(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice@example.com")
	image := f.upload(t, alice.ID, "cat.png", "image", []byte("png"))

	f.files.SetThumbnailWidths([]int{300})
	require.NoError(t, f.blobs.WriteContent(ctx, ThumbnailKey(image.LocalPath, 300), []byte("thumb")))

	c, err := f.files.ReadContent(ctx, alice.ID, image.ID, 300)
	require.NoError(t, err)
	assert.Equal(t, "thumb", string(readAll(t, c)))

	_, err = f.files.ReadContent(ctx, alice.ID, image.ID, 500)
	assert.ErrorIs(t, err, ErrInvalidSize)

	// An empty list keeps the current widths.
	f.files.SetThumbnailWidths(nil)
	_, err = f.files.ReadContent(ctx, alice.ID, image.ID, 300)
	assert.NoError(t, err)
}
