package content

import (
	"errors"
	"fmt"
	"strings"
)

// ============================================================================
// Standard Content Store Errors
// ============================================================================

// These errors give every blob store implementation the same way to report
// common failures. Callers check them with errors.Is; implementations wrap
// them with the blob ID:
//
//	return fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)

var (
	// ErrContentNotFound indicates the requested blob does not exist.
	//
	// Returned by ReadContent and GetContentSize for unknown IDs. The file
	// service maps it to a NotFound response when metadata and blobs diverge.
	ErrContentNotFound = errors.New("content not found")

	// ErrInvalidContentID indicates an ID that could escape the store's
	// namespace (path separators, "..") or is empty.
	ErrInvalidContentID = errors.New("invalid content id")
)

// ValidateID rejects IDs that are empty or could address anything outside
// the store root.
func ValidateID(id string) error {
	if id == "" || id == "." || id == ".." ||
		strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("content %q: %w", id, ErrInvalidContentID)
	}
	return nil
}
