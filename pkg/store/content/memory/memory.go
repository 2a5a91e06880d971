// Package memory implements an in-memory blob store.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/marmos91/dittofiles/pkg/store/content"
)

type blob struct {
	data    []byte
	modTime time.Time
}

// MemoryContentStore keeps blobs in a map.
//
// Content is lost when the process exits.
type MemoryContentStore struct {
	// data stores the blob content keyed by ID
	data map[string]blob

	// maxSizeBytes caps the total stored bytes. 0 means unlimited.
	maxSizeBytes uint64
	usedBytes    uint64

	// mu protects concurrent access to data
	mu sync.RWMutex
}

// MemoryContentStoreConfig configures the memory store.
type MemoryContentStoreConfig struct {
	MaxSizeBytes uint64 `mapstructure:"max_size_bytes"`
}

// NewMemoryContentStore creates an empty store.
func NewMemoryContentStore(ctx context.Context, cfg MemoryContentStoreConfig) (*MemoryContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &MemoryContentStore{
		data:         make(map[string]blob),
		maxSizeBytes: cfg.MaxSizeBytes,
	}, nil
}

func (s *MemoryContentStore) WriteContent(ctx context.Context, id string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := content.ValidateID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var previous uint64
	if existing, ok := s.data[id]; ok {
		previous = uint64(len(existing.data))
	}
	used := s.usedBytes - previous + uint64(len(data))
	if s.maxSizeBytes > 0 && used > s.maxSizeBytes {
		return fmt.Errorf("content %s: memory store full (%d of %d bytes used)", id, s.usedBytes, s.maxSizeBytes)
	}

	stored := make([]byte, len(data))
	copy(stored, data)

	s.data[id] = blob{data: stored, modTime: time.Now()}
	s.usedBytes = used
	return nil
}

func (s *MemoryContentStore) ReadContent(ctx context.Context, id string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.data[id]
	if !ok {
		return nil, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
	}

	// Stored slices are never mutated in place, so readers can share them.
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

func (s *MemoryContentStore) GetContentSize(ctx context.Context, id string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.data[id]
	if !ok {
		return 0, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
	}
	return int64(len(b.data)), nil
}

func (s *MemoryContentStore) ContentExists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.data[id]
	return ok, nil
}

func (s *MemoryContentStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.data[id]; ok {
		s.usedBytes -= uint64(len(b.data))
		delete(s.data, id)
	}
	return nil
}

func (s *MemoryContentStore) List(ctx context.Context) ([]content.ContentInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]content.ContentInfo, 0, len(s.data))
	for id, b := range s.data {
		result = append(result, content.ContentInfo{
			ID:      id,
			Size:    int64(len(b.data)),
			ModTime: b.modTime,
		})
	}
	return result, nil
}

func (s *MemoryContentStore) Healthcheck(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryContentStore) Close() error {
	return nil
}

// SetModTime overrides the modification time of a blob. Used by tests that
// exercise age-based cleanup.
func (s *MemoryContentStore) SetModTime(id string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.data[id]; ok {
		b.modTime = t
		s.data[id] = b
	}
}

// UsedBytes returns the total size of stored blobs.
func (s *MemoryContentStore) UsedBytes() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usedBytes
}
