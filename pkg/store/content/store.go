// Package content defines the blob store holding file bodies and thumbnails.
//
// Blobs are opaque byte payloads addressed by an ID chosen by the caller
// (a UUID for uploads, the upload ID plus "_<width>" for thumbnails). Writes
// replace the whole blob and are atomic: readers see either the previous
// payload or the new one, never a partial write.
package content

import (
	"context"
	"io"
	"time"
)

// ContentInfo describes a stored blob.
type ContentInfo struct {
	ID      string
	Size    int64
	ModTime time.Time
}

// ContentStore is the blob storage abstraction.
//
// Implementations:
//   - fs: files under a local directory, temp file + rename writes
//   - memory: byte slices in a map, for tests and ephemeral setups
//   - s3: objects in an S3-compatible bucket
//
// All implementations must be safe for concurrent use. IDs are validated
// with ValidateID.
type ContentStore interface {
	// WriteContent stores data under id, replacing any previous blob.
	WriteContent(ctx context.Context, id string, data []byte) error

	// ReadContent opens the blob for reading. The caller must close the
	// reader. Returns ErrContentNotFound for unknown IDs.
	ReadContent(ctx context.Context, id string) (io.ReadCloser, error)

	// GetContentSize returns the blob size or ErrContentNotFound.
	GetContentSize(ctx context.Context, id string) (int64, error)

	// ContentExists reports whether the blob exists.
	ContentExists(ctx context.Context, id string) (bool, error)

	// Delete removes the blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, id string) error

	// List returns every stored blob.
	List(ctx context.Context) ([]ContentInfo, error)

	// Healthcheck verifies the backend is usable.
	Healthcheck(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}

// ReadAll reads a whole blob into memory.
func ReadAll(ctx context.Context, store ContentStore, id string) ([]byte, error) {
	reader, err := store.ReadContent(ctx, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	return io.ReadAll(reader)
}
