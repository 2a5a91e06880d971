// Package memory implements an in-memory metadata store.
//
// Data lives in maps guarded by a single RWMutex and is lost when the process
// exits. It is the default store for development and the reference
// implementation for the conformance suite.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/dittofiles/pkg/store/metadata"
)

// MemoryMetadataStoreConfig holds the options of the memory store.
type MemoryMetadataStoreConfig struct {
	// MaxFiles caps the number of nodes. 0 means unlimited.
	MaxFiles uint64 `mapstructure:"max_files"`
}

// childrenKey indexes the nodes of one owner under one parent.
type childrenKey struct {
	owner  string
	parent string
}

// MemoryMetadataStore implements metadata.MetadataStore with Go maps.
type MemoryMetadataStore struct {
	mu sync.RWMutex

	users        map[string]*metadata.User
	usersByEmail map[string]string

	files    map[string]*metadata.FileNode
	children map[childrenKey][]string

	seq      uint64
	maxFiles uint64
	closed   bool
}

// NewMemoryMetadataStore creates an empty store.
func NewMemoryMetadataStore(cfg MemoryMetadataStoreConfig) *MemoryMetadataStore {
	return &MemoryMetadataStore{
		users:        make(map[string]*metadata.User),
		usersByEmail: make(map[string]string),
		files:        make(map[string]*metadata.FileNode),
		children:     make(map[childrenKey][]string),
		maxFiles:     cfg.MaxFiles,
	}
}

// NewMemoryMetadataStoreWithDefaults creates an unbounded store.
func NewMemoryMetadataStoreWithDefaults() *MemoryMetadataStore {
	return NewMemoryMetadataStore(MemoryMetadataStoreConfig{})
}

func (s *MemoryMetadataStore) CreateUser(ctx context.Context, user *metadata.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user == nil || user.ID == "" || user.Email == "" {
		return metadata.NewInvalidArgumentError("user id and email are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, exists := s.users[user.ID]; exists {
		return metadata.NewAlreadyExistsError("user", user.ID)
	}
	if _, exists := s.usersByEmail[user.Email]; exists {
		return metadata.NewAlreadyExistsError("user", user.Email)
	}

	s.users[user.ID] = user.Clone()
	s.usersByEmail[user.Email] = user.ID
	return nil
}

func (s *MemoryMetadataStore) GetUser(ctx context.Context, id string) (*metadata.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	user, ok := s.users[id]
	if !ok {
		return nil, metadata.NewNotFoundError("user", id)
	}
	return user.Clone(), nil
}

func (s *MemoryMetadataStore) GetUserByEmail(ctx context.Context, email string) (*metadata.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	id, ok := s.usersByEmail[email]
	if !ok {
		return nil, metadata.NewNotFoundError("user", email)
	}
	return s.users[id].Clone(), nil
}

func (s *MemoryMetadataStore) CountUsers(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	return int64(len(s.users)), nil
}

func (s *MemoryMetadataStore) CreateFile(ctx context.Context, node *metadata.FileNode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if node == nil || node.ID == "" || node.OwnerID == "" {
		return metadata.NewInvalidArgumentError("file id and owner id are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, exists := s.files[node.ID]; exists {
		return metadata.NewAlreadyExistsError("file", node.ID)
	}
	if s.maxFiles > 0 && uint64(len(s.files)) >= s.maxFiles {
		return &metadata.StoreError{Code: metadata.ErrIOError, Message: "file limit reached"}
	}

	s.seq++
	node.Seq = s.seq

	stored := node.Clone()
	s.files[node.ID] = stored

	key := childrenKey{owner: node.OwnerID, parent: node.ParentID}
	s.children[key] = append(s.children[key], node.ID)
	return nil
}

func (s *MemoryMetadataStore) GetFile(ctx context.Context, id string) (*metadata.FileNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	node, ok := s.files[id]
	if !ok {
		return nil, metadata.NewNotFoundError("file", id)
	}
	return node.Clone(), nil
}

func (s *MemoryMetadataStore) ListFiles(ctx context.Context, ownerID, parentID string, offset, limit int) ([]*metadata.FileNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 || limit < 0 {
		return nil, metadata.NewInvalidArgumentError("offset and limit must not be negative")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	// ids are appended on insert, so the slice is already in Seq order
	ids := s.children[childrenKey{owner: ownerID, parent: parentID}]
	if offset >= len(ids) || limit == 0 {
		return []*metadata.FileNode{}, nil
	}

	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}

	result := make([]*metadata.FileNode, 0, end-offset)
	for _, id := range ids[offset:end] {
		result = append(result, s.files[id].Clone())
	}
	return result, nil
}

func (s *MemoryMetadataStore) SetPublic(ctx context.Context, id string, isPublic bool, updatedAt time.Time) (*metadata.FileNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	node, ok := s.files[id]
	if !ok {
		return nil, metadata.NewNotFoundError("file", id)
	}

	node.IsPublic = isPublic
	node.UpdatedAt = updatedAt
	return node.Clone(), nil
}

func (s *MemoryMetadataStore) CountFiles(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	return int64(len(s.files)), nil
}

func (s *MemoryMetadataStore) WalkFiles(ctx context.Context, fn func(*metadata.FileNode) error) error {
	// Snapshot under the lock so fn may call back into the store.
	s.mu.RLock()
	if err := s.checkOpen(); err != nil {
		s.mu.RUnlock()
		return err
	}
	nodes := make([]*metadata.FileNode, 0, len(s.files))
	for _, node := range s.files {
		nodes = append(nodes, node.Clone())
	}
	s.mu.RUnlock()

	for _, node := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(node); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryMetadataStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkOpen()
}

func (s *MemoryMetadataStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// checkOpen must be called with mu held.
func (s *MemoryMetadataStore) checkOpen() error {
	if s.closed {
		return &metadata.StoreError{Code: metadata.ErrIOError, Message: "store is closed"}
	}
	return nil
}
