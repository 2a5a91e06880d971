package metrics

import "time"

// Job outcomes reported through ThumbnailMetrics.RecordJob.
const (
	JobSucceeded = "success"
	JobRetried   = "retry"
	JobDead      = "dead"
)

// ThumbnailMetrics provides observability for the thumbnail worker.
type ThumbnailMetrics interface {
	// RecordJob records a processed job.
	//
	// Parameters:
	//   - outcome: JobSucceeded, JobRetried or JobDead
	//   - duration: Time spent on the delivery
	RecordJob(outcome string, duration time.Duration)

	// RecordThumbnail records one written variant.
	//
	// Parameters:
	//   - width: Target width in pixels
	//   - bytes: Encoded size
	RecordThumbnail(width int, bytes int64)
}

type noopThumbnailMetrics struct{}

// NewNoopThumbnailMetrics returns a ThumbnailMetrics that discards everything.
func NewNoopThumbnailMetrics() ThumbnailMetrics {
	return noopThumbnailMetrics{}
}

func (noopThumbnailMetrics) RecordJob(string, time.Duration) {}
func (noopThumbnailMetrics) RecordThumbnail(int, int64)      {}
