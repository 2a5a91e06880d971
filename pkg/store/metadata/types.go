package metadata

import "time"

// RootID is the parent identifier of every top-level node.
//
// It is the only accepted representation of the root; callers normalize empty
// and numeric zero inputs to it before reaching the store.
const RootID = "0"

// FileKind is the type of a FileNode.
type FileKind string

const (
	KindFolder FileKind = "folder"
	KindFile   FileKind = "file"
	KindImage  FileKind = "image"
)

// Valid reports whether k is one of the known kinds.
func (k FileKind) Valid() bool {
	switch k {
	case KindFolder, KindFile, KindImage:
		return true
	default:
		return false
	}
}

// HasContent reports whether nodes of this kind are backed by a blob.
func (k FileKind) HasContent() bool {
	return k == KindFile || k == KindImage
}

// User is a registered account.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
}

// FileNode is a file or folder record in a user's hierarchy.
//
// Invariants enforced by the file service:
//   - ParentID is RootID or the ID of an existing folder
//   - folders have an empty LocalPath
//   - files and images have a LocalPath naming exactly one blob
//   - OwnerID never changes after creation
type FileNode struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Kind      FileKind  `json:"kind"`
	IsPublic  bool      `json:"is_public"`
	ParentID  string    `json:"parent_id"`
	LocalPath string    `json:"local_path,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Seq is the insertion sequence assigned by the store. Listings are
	// ordered by it.
	Seq uint64 `json:"seq"`
}

// Clone returns a copy of the node safe to hand out across goroutines.
func (n *FileNode) Clone() *FileNode {
	if n == nil {
		return nil
	}
	c := *n
	return &c
}

// Clone returns a copy of the user.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
