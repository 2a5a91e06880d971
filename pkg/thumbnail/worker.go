package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/internal/ratelimiter"
	"github.com/marmos91/dittofiles/pkg/metrics"
	"github.com/marmos91/dittofiles/pkg/queue"
	"github.com/marmos91/dittofiles/pkg/service"
	"github.com/marmos91/dittofiles/pkg/store/content"
	"github.com/marmos91/dittofiles/pkg/store/metadata"
)

// Config contains configuration for the thumbnail worker.
type Config struct {
	// Widths to generate, in order. Default: 500, 250, 100
	Widths []int

	// Concurrency is the number of jobs processed in parallel. Default: 1
	Concurrency int

	// JobTimeout bounds one delivery, including blob I/O. Default: 30s
	JobTimeout time.Duration

	// JobsPerSecond paces job intake. 0 means unlimited.
	JobsPerSecond float64

	// MaxPixels rejects sources whose width*height exceeds it.
	// Default: DefaultMaxPixels
	MaxPixels int64
}

func (c *Config) applyDefaults() {
	if len(c.Widths) == 0 {
		c.Widths = append([]int(nil), service.ThumbnailWidths...)
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 30 * time.Second
	}
	if c.MaxPixels <= 0 {
		c.MaxPixels = DefaultMaxPixels
	}
}

// Worker turns queued thumbnail jobs into width variants.
//
// Delivery is at-least-once, so processing is idempotent: a redelivered job
// overwrites the same variant keys. Validation failures (missing ids, a
// file that does not exist, is not an image, or belongs to someone else,
// an undecodable payload) are permanent and dead-letter the job at once.
// Everything else is nacked and retried by the queue's policy.
//
// The worker never modifies metadata.
type Worker struct {
	config       Config
	jobs         queue.Queue
	files        metadata.FileStore
	blobs        content.ContentStore
	limiter      *ratelimiter.RateLimiter
	metrics      metrics.ThumbnailMetrics
	queueMetrics metrics.QueueMetrics

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	doneCh    chan struct{}
}

// NewWorker creates a worker. It does nothing until Start is called.
//
// Parameters:
//   - config: Worker configuration; zero fields take defaults
//   - jobs: Queue to consume
//   - files: Metadata store used to validate jobs
//   - blobs: Blob store holding originals and variants
//   - tm, qm: Metrics sinks; nil selects no-op implementations
func NewWorker(
	config Config,
	jobs queue.Queue,
	files metadata.FileStore,
	blobs content.ContentStore,
	tm metrics.ThumbnailMetrics,
	qm metrics.QueueMetrics,
) *Worker {
	config.applyDefaults()
	if tm == nil {
		tm = metrics.NewNoopThumbnailMetrics()
	}
	if qm == nil {
		qm = metrics.NewNoopQueueMetrics()
	}

	return &Worker{
		config:       config,
		jobs:         jobs,
		files:        files,
		blobs:        blobs,
		limiter:      ratelimiter.New(config.JobsPerSecond, 1),
		metrics:      tm,
		queueMetrics: qm,
		doneCh:       make(chan struct{}),
	}
}

// Start launches the consumer goroutines. They run until Stop is called or
// ctx is cancelled. Subsequent calls are no-ops.
func (w *Worker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		w.cancel = cancel

		logger.Info("Starting thumbnail worker: widths=%v concurrency=%d timeout=%s",
			w.config.Widths, w.config.Concurrency, w.config.JobTimeout)

		for i := 0; i < w.config.Concurrency; i++ {
			w.wg.Add(1)
			go w.consume(runCtx, i)
		}

		go func() {
			w.wg.Wait()
			close(w.doneCh)
		}()
	})
}

// Stop cancels the consumers and waits for in-progress jobs to settle.
// A job interrupted by Stop is nacked and redelivered later.
//
// Returns ctx.Err() if ctx expires first.
func (w *Worker) Stop(ctx context.Context) error {
	started := false
	w.startOnce.Do(func() { close(w.doneCh) })
	if w.cancel != nil {
		started = true
		w.cancel()
	}

	select {
	case <-w.doneCh:
		if started {
			logger.Info("Thumbnail worker stopped")
		}
		return nil
	case <-ctx.Done():
		logger.Warn("Thumbnail worker shutdown timeout")
		return ctx.Err()
	}
}

func (w *Worker) consume(ctx context.Context, id int) {
	defer w.wg.Done()
	logger.Debug("Thumbnail consumer %d started", id)

	for {
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}

		d, err := w.jobs.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				logger.Debug("Thumbnail consumer %d exiting: %v", id, err)
				return
			}
			logger.Error("Thumbnail consumer %d: dequeue failed: %v", id, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		w.handle(ctx, d)
	}
}

// handle runs one delivery and settles it with the queue.
func (w *Worker) handle(ctx context.Context, d *queue.Delivery) {
	start := time.Now()

	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	err := w.Process(jobCtx, d.Job)
	cancel()

	// Settle even when ctx is cancelled, so shutdown does not strand jobs in
	// flight.
	settleCtx, settleCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer settleCancel()

	if err == nil {
		if ackErr := w.jobs.Ack(settleCtx, d); ackErr != nil {
			logger.Warn("Thumbnail job %s: ack failed: %v", d.Job.ID, ackErr)
		}
		w.metrics.RecordJob(metrics.JobSucceeded, time.Since(start))
		logger.Debug("Thumbnail job %s done for file %s (attempt %d)", d.Job.ID, d.Job.FileID, d.Attempt)
		w.publishDepth(settleCtx)
		return
	}

	dead, nackErr := w.jobs.Nack(settleCtx, d, err)
	switch {
	case nackErr != nil:
		logger.Error("Thumbnail job %s: nack failed: %v (cause: %v)", d.Job.ID, nackErr, err)
	case dead:
		w.metrics.RecordJob(metrics.JobDead, time.Since(start))
		logger.Error("Thumbnail job %s for file %s dead-lettered after %d attempt(s): %v",
			d.Job.ID, d.Job.FileID, d.Attempt, err)
	default:
		w.metrics.RecordJob(metrics.JobRetried, time.Since(start))
		logger.Warn("Thumbnail job %s for file %s failed (attempt %d), will retry: %v",
			d.Job.ID, d.Job.FileID, d.Attempt, err)
	}
	w.publishDepth(settleCtx)
}

func (w *Worker) publishDepth(ctx context.Context) {
	stats, err := w.jobs.Stats(ctx)
	if err != nil {
		return
	}
	w.queueMetrics.SetDepth(stats.Ready, stats.InFlight, stats.Dead)
}

// Process generates every configured variant for job. It is exported so
// variants can be rebuilt synchronously (tests, maintenance tools).
//
// Returns an error wrapping queue.ErrPermanent for jobs that can never
// succeed. When some widths fail, the others are still written and the
// joined error is returned.
func (w *Worker) Process(ctx context.Context, job queue.Job) error {
	// ========================================================================
	// Step 1: Validate the job against metadata
	// ========================================================================

	if job.FileID == "" {
		return queue.Permanent(errors.New("Missing fileId"))
	}
	if job.UserID == "" {
		return queue.Permanent(errors.New("Missing userId"))
	}

	node, err := w.files.GetFile(ctx, job.FileID)
	if metadata.IsNotFound(err) {
		return queue.Permanent(errors.New("File not found"))
	}
	if err != nil {
		return fmt.Errorf("get file %s: %w", job.FileID, err)
	}
	if node.OwnerID != job.UserID || node.Kind != metadata.KindImage {
		return queue.Permanent(errors.New("File not found"))
	}

	// ========================================================================
	// Step 2: Load and decode the original
	// ========================================================================

	data, err := content.ReadAll(ctx, w.blobs, node.LocalPath)
	if errors.Is(err, content.ErrContentNotFound) {
		return queue.Permanent(fmt.Errorf("File not found: %w", err))
	}
	if err != nil {
		return fmt.Errorf("read original %s: %w", node.LocalPath, err)
	}

	src, err := Decode(data, w.config.MaxPixels)
	if err != nil {
		return queue.Permanent(err)
	}

	// ========================================================================
	// Step 3: Write each width independently
	// ========================================================================

	var errs []error
	for _, width := range w.config.Widths {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		encoded, err := Encode(Resize(src.Image, width), src.MIME)
		if err != nil {
			errs = append(errs, fmt.Errorf("width %d: %w", width, err))
			continue
		}

		key := service.ThumbnailKey(node.LocalPath, width)
		if err := w.blobs.WriteContent(ctx, key, encoded); err != nil {
			errs = append(errs, fmt.Errorf("width %d: %w", width, err))
			continue
		}
		w.metrics.RecordThumbnail(width, int64(len(encoded)))
	}

	return errors.Join(errs...)
}
