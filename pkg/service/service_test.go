package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"testing"

	"github.com/marmos91/dittofiles/pkg/queue"
	queuememory "github.com/marmos91/dittofiles/pkg/queue/memory"
	contentmemory "github.com/marmos91/dittofiles/pkg/store/content/memory"
	"github.com/marmos91/dittofiles/pkg/store/metadata"
	metadatamemory "github.com/marmos91/dittofiles/pkg/store/metadata/memory"
	sessionmemory "github.com/marmos91/dittofiles/pkg/store/session/memory"
	"github.com/stretchr/testify/require"
)

// fixture wires every service on memory stores.
type fixture struct {
	meta     *metadatamemory.MemoryMetadataStore
	blobs    *contentmemory.MemoryContentStore
	sessions *sessionmemory.MemorySessionStore
	jobs     *queuememory.MemoryQueue

	auth   *AuthService
	users  *UserService
	files  *FileService
	status *StatusService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	blobs, err := contentmemory.NewMemoryContentStore(context.Background(), contentmemory.MemoryContentStoreConfig{})
	require.NoError(t, err)

	f := &fixture{
		meta:     metadatamemory.NewMemoryMetadataStoreWithDefaults(),
		blobs:    blobs,
		sessions: sessionmemory.NewMemorySessionStore(sessionmemory.MemorySessionStoreConfig{}),
		jobs:     queuememory.NewMemoryQueue(queue.RetryPolicy{}),
	}
	t.Cleanup(func() {
		_ = f.jobs.Close()
		_ = f.sessions.Close()
		_ = f.meta.Close()
	})

	f.auth = NewAuthService(f.meta, f.sessions, nil, 0)
	f.users = NewUserService(f.meta, nil)
	f.files = NewFileService(f.meta, f.blobs, f.jobs, nil)
	f.status = NewStatusService(f.sessions, f.meta)
	return f
}

func (f *fixture) register(t *testing.T, email string) *metadata.User {
	t.Helper()
	user, err := f.users.Register(context.Background(), email, "secret")
	require.NoError(t, err)
	return user
}

func (f *fixture) folder(t *testing.T, owner, name, parent string) *metadata.FileNode {
	t.Helper()
	node, err := f.files.CreateFolder(context.Background(), owner, name, parent, false)
	require.NoError(t, err)
	return node
}

func (f *fixture) upload(t *testing.T, owner, name, kind string, data []byte) *metadata.FileNode {
	t.Helper()
	node, err := f.files.UploadContent(context.Background(), CreateRequest{
		OwnerID: owner,
		Name:    name,
		Kind:    kind,
		Data:    base64.StdEncoding.EncodeToString(data),
	})
	require.NoError(t, err)
	return node
}

func readAll(t *testing.T, c *Content) []byte {
	t.Helper()
	defer func() { _ = c.Body.Close() }()
	data, err := io.ReadAll(c.Body)
	require.NoError(t, err)
	return data
}

func basic(email, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%s:%s", email, password)))
}
