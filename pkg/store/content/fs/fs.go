// Package fs implements filesystem-based blob storage.
//
// Each blob is a regular file named by its ID directly under the base
// directory. Writes go to a temporary file in the same directory, are synced,
// then renamed over the target, so a crash never leaves a partial blob under
// a real ID.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/marmos91/dittofiles/pkg/store/content"
)

// tempPrefix marks in-progress writes. List skips these files.
const tempPrefix = ".tmp-"

// FSContentStoreConfig configures the filesystem store.
type FSContentStoreConfig struct {
	// Path is the root directory for blobs. Created if absent.
	Path string `mapstructure:"path"`

	// Fsync forces a sync before rename. Default: true
	Fsync *bool `mapstructure:"fsync"`
}

// FSContentStore implements content.ContentStore using the local filesystem.
//
// Thread Safety:
// Concurrent writes to different IDs never interact. Concurrent writes to the
// same ID are each atomic; the last rename wins.
type FSContentStore struct {
	basePath string
	fsync    bool
}

// NewFSContentStore creates a new filesystem-based content store.
//
// The base directory is created with permissions 0755 if it doesn't exist.
//
// Parameters:
//   - ctx: Context for cancellation
//   - cfg: Store configuration
//
// Returns:
//   - *FSContentStore: Initialized store
//   - error: If the path is empty, directory creation fails, or ctx is cancelled
func NewFSContentStore(ctx context.Context, cfg FSContentStoreConfig) (*FSContentStore, error) {
	// ========================================================================
	// Step 1: Check context before filesystem operation
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("filesystem content store: path is required")
	}

	// ========================================================================
	// Step 2: Create the base directory if it doesn't exist
	// ========================================================================

	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	fsync := true
	if cfg.Fsync != nil {
		fsync = *cfg.Fsync
	}

	return &FSContentStore{
		basePath: cfg.Path,
		fsync:    fsync,
	}, nil
}

// BasePath returns the root directory of the store.
func (s *FSContentStore) BasePath() string {
	return s.basePath
}

// getFilePath returns the full path for a blob ID.
func (s *FSContentStore) getFilePath(id string) string {
	return filepath.Join(s.basePath, id)
}

func (s *FSContentStore) WriteContent(ctx context.Context, id string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := content.ValidateID(id); err != nil {
		return err
	}

	// The root may have been removed since startup.
	if err := os.MkdirAll(s.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create base directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.basePath, tempPrefix+id+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", id, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write content %s: %w", id, err)
	}

	if s.fsync {
		if err := tmp.Sync(); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
			return fmt.Errorf("failed to sync content %s: %w", id, err)
		}
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close content %s: %w", id, err)
	}

	if err := os.Chmod(tmpPath, 0644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions on %s: %w", id, err)
	}

	if err := os.Rename(tmpPath, s.getFilePath(id)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to commit content %s: %w", id, err)
	}

	return nil
}

func (s *FSContentStore) ReadContent(ctx context.Context, id string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := content.ValidateID(id); err != nil {
		return nil, err
	}

	f, err := os.Open(s.getFilePath(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open content %s: %w", id, err)
	}
	return f, nil
}

func (s *FSContentStore) GetContentSize(ctx context.Context, id string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := content.ValidateID(id); err != nil {
		return 0, err
	}

	info, err := os.Stat(s.getFilePath(id))
	if errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to stat content %s: %w", id, err)
	}
	return info.Size(), nil
}

func (s *FSContentStore) ContentExists(ctx context.Context, id string) (bool, error) {
	_, err := s.GetContentSize(ctx, id)
	if errors.Is(err, content.ErrContentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *FSContentStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := content.ValidateID(id); err != nil {
		return err
	}

	err := os.Remove(s.getFilePath(id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete content %s: %w", id, err)
	}
	return nil
}

func (s *FSContentStore) List(ctx context.Context) ([]content.ContentInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.basePath)
	if errors.Is(err, os.ErrNotExist) {
		return []content.ContentInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}

	result := make([]content.ContentInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), tempPrefix) {
			continue
		}

		info, err := entry.Info()
		if errors.Is(err, os.ErrNotExist) {
			// Removed between ReadDir and Info.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}

		result = append(result, content.ContentInfo{
			ID:      entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return result, nil
}

func (s *FSContentStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := os.Stat(s.basePath)
	if err != nil {
		return fmt.Errorf("content root unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("content root %s is not a directory", s.basePath)
	}
	return nil
}

// Close is a no-op; the filesystem store holds no open handles.
func (s *FSContentStore) Close() error {
	return nil
}
