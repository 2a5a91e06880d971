// Package registry holds the stores and services of a running server.
//
// The Registry owns every backend built from configuration and the
// services layered on top of them. Adapters, the thumbnail worker and the
// blob collector all take what they need from it, so each store exists
// exactly once per process.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/metrics"
	"github.com/marmos91/dittofiles/pkg/queue"
	"github.com/marmos91/dittofiles/pkg/service"
	"github.com/marmos91/dittofiles/pkg/store/content"
	"github.com/marmos91/dittofiles/pkg/store/metadata"
	"github.com/marmos91/dittofiles/pkg/store/session"
)

// Stores groups the backends a Registry is built from.
type Stores struct {
	Metadata metadata.MetadataStore
	Content  content.ContentStore
	Sessions session.Store

	// Queue carries thumbnail jobs. Nil disables thumbnail scheduling.
	Queue queue.Queue
}

// Options tune the services built on top of the stores.
type Options struct {
	// Hasher hashes passwords. Nil selects SHA-1.
	Hasher service.PasswordHasher

	// SessionTTL is the token lifetime. 0 selects session.DefaultTTL.
	SessionTTL time.Duration

	// ThumbnailWidths are the variant widths served by file reads. Empty
	// keeps service.ThumbnailWidths.
	ThumbnailWidths []int

	// QueueMetrics records enqueue outcomes. Nil discards them.
	QueueMetrics metrics.QueueMetrics
}

// Registry wires stores to services.
//
// Example usage:
//
//	reg, err := registry.New(registry.Stores{
//	    Metadata: metaStore,
//	    Content:  blobStore,
//	    Sessions: sessionStore,
//	    Queue:    jobs,
//	}, registry.Options{})
//	defer reg.Close()
//
//	token, err := reg.Auth().Authenticate(ctx, creds)
type Registry struct {
	stores Stores

	auth   *service.AuthService
	users  *service.UserService
	files  *service.FileService
	status *service.StatusService
}

// New builds the services on top of stores. Metadata, Content and Sessions
// are required.
func New(stores Stores, opts Options) (*Registry, error) {
	if stores.Metadata == nil {
		return nil, fmt.Errorf("registry: metadata store is required")
	}
	if stores.Content == nil {
		return nil, fmt.Errorf("registry: content store is required")
	}
	if stores.Sessions == nil {
		return nil, fmt.Errorf("registry: session store is required")
	}

	files := service.NewFileService(stores.Metadata, stores.Content, stores.Queue, opts.QueueMetrics)
	files.SetThumbnailWidths(opts.ThumbnailWidths)

	r := &Registry{
		stores: stores,
		auth:   service.NewAuthService(stores.Metadata, stores.Sessions, opts.Hasher, opts.SessionTTL),
		users:  service.NewUserService(stores.Metadata, opts.Hasher),
		files:  files,
		status: service.NewStatusService(stores.Sessions, stores.Metadata),
	}

	logger.Debug("Registry initialized (thumbnails queued: %v)", stores.Queue != nil)
	return r, nil
}

// Metadata returns the metadata store.
func (r *Registry) Metadata() metadata.MetadataStore { return r.stores.Metadata }

// Content returns the blob store.
func (r *Registry) Content() content.ContentStore { return r.stores.Content }

// Sessions returns the session store.
func (r *Registry) Sessions() session.Store { return r.stores.Sessions }

// Queue returns the thumbnail job queue, or nil when thumbnails are disabled.
func (r *Registry) Queue() queue.Queue { return r.stores.Queue }

// Auth returns the authentication service.
func (r *Registry) Auth() *service.AuthService { return r.auth }

// Users returns the user service.
func (r *Registry) Users() *service.UserService { return r.users }

// Files returns the file service.
func (r *Registry) Files() *service.FileService { return r.files }

// Status returns the status service.
func (r *Registry) Status() *service.StatusService { return r.status }

// Healthcheck checks every store and joins the failures.
func (r *Registry) Healthcheck(ctx context.Context) error {
	var errs []error
	if err := r.stores.Metadata.Healthcheck(ctx); err != nil {
		errs = append(errs, fmt.Errorf("metadata: %w", err))
	}
	if err := r.stores.Content.Healthcheck(ctx); err != nil {
		errs = append(errs, fmt.Errorf("content: %w", err))
	}
	if err := r.stores.Sessions.Healthcheck(ctx); err != nil {
		errs = append(errs, fmt.Errorf("sessions: %w", err))
	}
	return errors.Join(errs...)
}

// Close releases every store. Consumers of the queue must be stopped
// first. Close keeps going after a failure and joins the errors.
func (r *Registry) Close() error {
	var errs []error

	closeOne := func(name string, c interface{ Close() error }) {
		if err := c.Close(); err != nil {
			logger.Error("Failed to close %s: %v", name, err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if r.stores.Queue != nil {
		closeOne("queue", r.stores.Queue)
	}
	closeOne("sessions", r.stores.Sessions)
	closeOne("content", r.stores.Content)
	closeOne("metadata", r.stores.Metadata)

	return errors.Join(errs...)
}
