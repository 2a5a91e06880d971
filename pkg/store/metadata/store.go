package metadata

import (
	"context"
	"time"
)

// UserStore persists user accounts.
type UserStore interface {
	// CreateUser inserts a new user.
	//
	// Returns ErrAlreadyExists if the ID or the email is already taken and
	// ErrInvalidArgument if ID or Email is empty.
	CreateUser(ctx context.Context, user *User) error

	// GetUser returns the user with the given ID or ErrNotFound.
	GetUser(ctx context.Context, id string) (*User, error)

	// GetUserByEmail returns the user registered with email or ErrNotFound.
	// Emails are matched exactly.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// CountUsers returns the number of registered users.
	CountUsers(ctx context.Context) (int64, error)
}

// FileStore persists file and folder nodes.
type FileStore interface {
	// CreateFile inserts a node and assigns its Seq.
	//
	// The store does not check hierarchy rules; the caller validates the
	// parent. Returns ErrAlreadyExists on a duplicate ID and
	// ErrInvalidArgument if ID or OwnerID is empty.
	CreateFile(ctx context.Context, node *FileNode) error

	// GetFile returns the node with the given ID or ErrNotFound.
	GetFile(ctx context.Context, id string) (*FileNode, error)

	// ListFiles returns up to limit nodes owned by ownerID directly under
	// parentID, in insertion order, skipping the first offset matches.
	ListFiles(ctx context.Context, ownerID, parentID string, offset, limit int) ([]*FileNode, error)

	// SetPublic updates the visibility flag and UpdatedAt of a node and
	// returns the updated node, or ErrNotFound.
	SetPublic(ctx context.Context, id string, isPublic bool, updatedAt time.Time) (*FileNode, error)

	// CountFiles returns the number of nodes of any kind.
	CountFiles(ctx context.Context) (int64, error)

	// WalkFiles calls fn for every node. Iteration stops at the first
	// error returned by fn, which WalkFiles returns.
	WalkFiles(ctx context.Context, fn func(*FileNode) error) error
}

// MetadataStore is the persistent store for users and files.
//
// Implementations must be safe for concurrent use. Every mutation touches a
// single record, so implementations only need single-record atomicity plus
// an atomic check for email uniqueness.
//
// Returned records are copies; mutating them does not affect the store.
type MetadataStore interface {
	UserStore
	FileStore

	// Healthcheck verifies the store is usable.
	Healthcheck(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}
