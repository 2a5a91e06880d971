// Package gc removes orphaned blobs from the content store.
//
// A blob is orphaned when no FileNode references it. This happens when an
// upload writes its blob and then fails to commit the metadata record, or
// when the process dies between the two steps. Thumbnail variants
// ("<key>_<width>") belong to their original and live or die with it.
//
// Blobs younger than the grace period are never removed, so an upload that is
// between its blob write and its metadata commit is safe.
package gc

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/metrics"
	"github.com/marmos91/dittofiles/pkg/store/content"
	"github.com/marmos91/dittofiles/pkg/store/metadata"
)

// Collector performs periodic garbage collection on the content store.
//
// Thread Safety: Safe for concurrent use. Runs are serialized.
type Collector struct {
	files   metadata.FileStore
	blobs   content.ContentStore
	config  Config
	metrics metrics.GCMetrics
	now     func() time.Time

	runMu    sync.Mutex
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  bool
	stopOnce sync.Once
}

// Config contains configuration for the garbage collector.
type Config struct {
	// Interval is how often to run garbage collection. 0 disables the
	// background loop; RunNow still works.
	Interval time.Duration

	// GracePeriod is the minimum age of a blob before it can be collected
	// (default: 1h)
	GracePeriod time.Duration

	// DryRun logs what would be deleted without deleting anything
	DryRun bool
}

// NewCollector creates a new garbage collector.
//
// The collector is initialized but not started. Call Start to begin
// background collection.
//
// Parameters:
//   - files: Metadata store holding the referenced blob keys
//   - blobs: Content store to scan
//   - config: Collection configuration
//   - gm: Metrics sink; nil selects the no-op implementation
func NewCollector(
	files metadata.FileStore,
	blobs content.ContentStore,
	config Config,
	gm metrics.GCMetrics,
) *Collector {
	if config.GracePeriod <= 0 {
		config.GracePeriod = time.Hour
	}
	if gm == nil {
		gm = metrics.NewNoopGCMetrics()
	}

	return &Collector{
		files:   files,
		blobs:   blobs,
		config:  config,
		metrics: gm,
		now:     time.Now,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start begins background garbage collection. It does nothing when the
// interval is 0. Subsequent calls are no-ops.
func (c *Collector) Start() {
	if c.config.Interval <= 0 {
		logger.Info("Garbage collection disabled")
		return
	}

	c.runMu.Lock()
	if c.started {
		c.runMu.Unlock()
		return
	}
	c.started = true
	c.runMu.Unlock()

	logger.Info("Starting garbage collector: interval=%s grace_period=%s dry_run=%v",
		c.config.Interval, c.config.GracePeriod, c.config.DryRun)

	go c.worker()
}

// Stop stops the garbage collector and waits for an in-progress run to
// finish. Safe to call multiple times and without Start.
//
// Returns ctx.Err() if ctx expires before the worker exits.
func (c *Collector) Stop(ctx context.Context) error {
	c.runMu.Lock()
	started := c.started
	c.runMu.Unlock()
	if !started {
		return nil
	}

	c.stopOnce.Do(func() {
		logger.Info("Stopping garbage collector...")
		close(c.stopCh)
	})

	select {
	case <-c.doneCh:
		logger.Info("Garbage collector stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("Garbage collector shutdown timeout")
		return ctx.Err()
	}
}

// RunNow runs one collection pass and blocks until it completes.
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	logger.Info("Running garbage collection (manual trigger)...")
	return c.collect(ctx)
}

func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			// Abort the pass if Stop is called mid-run.
			go func() {
				select {
				case <-c.stopCh:
					cancel()
				case <-ctx.Done():
				}
			}()

			stats, err := c.collect(ctx)
			cancel()

			if err != nil {
				logger.Error("Garbage collection failed: %v", err)
			} else {
				logger.Info("Garbage collection completed: %s", stats.Summary())
			}

		case <-c.stopCh:
			return
		}
	}
}

// collect performs a single pass:
//  1. Collect every LocalPath referenced by metadata
//  2. List the blobs in the content store
//  3. Delete blobs whose base key is unreferenced and older than the grace
//     period
func (c *Collector) collect(ctx context.Context) (stats *Stats, err error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	stats = &Stats{StartTime: c.now()}
	defer func() {
		stats.EndTime = c.now()
		c.metrics.RecordRun(stats.ExistingCount, stats.DeletedCount, stats.ReclaimedBytes, stats.Duration(), err)
	}()

	// ========================================================================
	// Phase 1: Referenced keys
	// ========================================================================

	referenced := make(map[string]struct{})
	err = c.files.WalkFiles(ctx, func(node *metadata.FileNode) error {
		if node.LocalPath != "" {
			referenced[node.LocalPath] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("failed to walk metadata: %w", err)
	}
	stats.ReferencedCount = len(referenced)

	// ========================================================================
	// Phase 2: Existing blobs
	// ========================================================================

	existing, err := c.blobs.List(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list content: %w", err)
	}
	stats.ExistingCount = len(existing)

	// ========================================================================
	// Phase 3: Orphans past the grace period
	// ========================================================================

	cutoff := c.now().Add(-c.config.GracePeriod)
	var orphaned []content.ContentInfo
	for _, info := range existing {
		if _, ok := referenced[BaseKey(info.ID)]; ok {
			continue
		}
		if info.ModTime.After(cutoff) {
			stats.YoungCount++
			continue
		}
		orphaned = append(orphaned, info)
	}
	stats.OrphanedCount = len(orphaned)

	if len(orphaned) == 0 {
		logger.Debug("GC: No orphaned content found")
		return stats, nil
	}

	if c.config.DryRun {
		logger.Info("GC: DRY RUN - would delete %d blobs", len(orphaned))
		for i, info := range orphaned {
			if i == 10 {
				logger.Info("  ... and %d more", len(orphaned)-10)
				break
			}
			logger.Info("  - %s (%d bytes)", info.ID, info.Size)
		}
		return stats, nil
	}

	// ========================================================================
	// Phase 4: Delete
	// ========================================================================

	for _, info := range orphaned {
		if err = ctx.Err(); err != nil {
			return stats, err
		}

		if delErr := c.blobs.Delete(ctx, info.ID); delErr != nil {
			logger.Debug("GC: Failed to delete %s: %v", info.ID, delErr)
			stats.FailedCount++
			continue
		}
		stats.DeletedCount++
		stats.ReclaimedBytes += info.Size
	}

	return stats, nil
}

// BaseKey returns the original blob key for a thumbnail variant key
// ("<key>_<width>") and the key itself otherwise. Upload keys are UUIDs and
// never contain '_'.
func BaseKey(id string) string {
	i := strings.LastIndexByte(id, '_')
	if i <= 0 {
		return id
	}
	if width, err := strconv.Atoi(id[i+1:]); err != nil || width <= 0 {
		return id
	}
	return id[:i]
}

// Stats contains statistics from a garbage collection run.
type Stats struct {
	StartTime       time.Time
	EndTime         time.Time
	ReferencedCount int   // Blob keys referenced by metadata
	ExistingCount   int   // Blobs found in the content store
	YoungCount      int   // Unreferenced blobs still inside the grace period
	OrphanedCount   int   // Unreferenced blobs eligible for deletion
	DeletedCount    int   // Orphans deleted
	FailedCount     int   // Orphans that failed to delete
	ReclaimedBytes  int64 // Bytes freed by deletions
}

// Duration returns the total collection duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the collection.
func (s *Stats) Summary() string {
	return fmt.Sprintf("referenced=%d existing=%d young=%d orphaned=%d deleted=%d failed=%d reclaimed=%dB duration=%s",
		s.ReferencedCount, s.ExistingCount, s.YoungCount, s.OrphanedCount,
		s.DeletedCount, s.FailedCount, s.ReclaimedBytes, s.Duration())
}
