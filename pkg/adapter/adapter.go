package adapter

import (
	"context"

	"github.com/marmos91/dittofiles/pkg/registry"
)

// Adapter is a client-facing transport managed by the server.
//
// Every adapter exposes the same services from the shared registry; adapters
// differ only in wire format.
//
// Lifecycle:
//  1. Creation: Adapter is created with transport-specific configuration
//  2. Registry injection: SetRegistry() provides the services
//  3. Startup: Serve() starts listening and blocks until shutdown
//  4. Shutdown: Stop() initiates graceful shutdown with timeout
//
// Thread safety:
// SetRegistry() is called once before Serve(); Stop() may be called
// concurrently with Serve().
type Adapter interface {
	// Serve starts the transport and blocks until the context is cancelled
	// or an unrecoverable error occurs. Cancelling ctx triggers a graceful
	// shutdown.
	//
	// If Serve returns before context cancellation, the server treats it as
	// fatal and stops everything else.
	//
	// Returns:
	//   - nil on graceful shutdown
	//   - error if startup fails or shutdown is not graceful
	Serve(ctx context.Context) error

	// SetRegistry injects the registry holding the stores and services.
	SetRegistry(reg *registry.Registry)

	// Stop initiates graceful shutdown. It must be idempotent and safe to
	// call concurrently with Serve. In-flight requests get until ctx expires.
	Stop(ctx context.Context) error

	// Protocol returns the transport name for logging and metrics,
	// e.g. "REST".
	Protocol() string

	// Port returns the TCP port the adapter listens on, or 0 before Serve
	// has bound it.
	Port() int
}
