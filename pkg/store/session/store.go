// Package session defines the expiring token store used for authentication.
//
// A session maps an opaque token to a user ID and disappears on its own when
// its TTL elapses. Implementations differ in durability: the memory store
// loses sessions on restart, while BadgerDB and Redis keep them.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrSessionNotFound is returned when a token has no active session, either
// because it never existed, was deleted, or expired.
var ErrSessionNotFound = errors.New("session not found")

// DefaultTTL is the session lifetime used when none is configured.
const DefaultTTL = 24 * time.Hour

// Store is an expiring key-value store for session tokens.
//
// Implementations must be safe for concurrent use. Expired entries must never
// be returned by Get, even if they have not been physically evicted yet.
type Store interface {
	// Set stores token -> userID, expiring after ttl. An existing entry for
	// the same token is replaced.
	Set(ctx context.Context, token, userID string, ttl time.Duration) error

	// Get returns the user ID bound to token or ErrSessionNotFound.
	Get(ctx context.Context, token string) (string, error)

	// Delete removes the session. Returns ErrSessionNotFound if the token has
	// no active session.
	Delete(ctx context.Context, token string) error

	// Healthcheck verifies the backend is reachable.
	Healthcheck(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}
