package testing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittofiles/pkg/store/metadata"
)

// StoreTestSuite is a conformance test suite for MetadataStore implementations.
// It tests the interface contract, not implementation details, so the same
// tests run against memory and BadgerDB stores.
//
// Usage:
//
//	func TestMyMetadataStore(t *testing.T) {
//	    suite := &testing.StoreTestSuite{
//	        NewStore: func() metadata.MetadataStore {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty MetadataStore for each test.
	NewStore func() metadata.MetadataStore
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("UserOperations", suite.RunUserTests)
	t.Run("FileOperations", suite.RunFileTests)
	t.Run("Lifecycle", suite.RunLifecycleTests)
}

func testContext() context.Context {
	return context.Background()
}

// newStore creates a store and closes it when the test ends.
func (suite *StoreTestSuite) newStore(t *testing.T) metadata.MetadataStore {
	t.Helper()
	store := suite.NewStore()
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newUser(email string) *metadata.User {
	return &metadata.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: "hash-of-" + email,
	}
}

func newNode(ownerID, parentID, name string, kind metadata.FileKind) *metadata.FileNode {
	now := time.Now().UTC().Truncate(time.Millisecond)
	node := &metadata.FileNode{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		Kind:      kind,
		ParentID:  parentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if kind.HasContent() {
		node.LocalPath = uuid.NewString()
	}
	return node
}
