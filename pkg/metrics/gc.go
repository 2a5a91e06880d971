package metrics

import "time"

// GCMetrics provides observability for the orphaned blob collector.
type GCMetrics interface {
	// RecordRun records one collection pass.
	//
	// Parameters:
	//   - scanned: Blobs inspected
	//   - removed: Blobs deleted
	//   - bytes: Bytes reclaimed
	//   - duration: Time taken by the pass
	//   - err: Error that aborted the pass, nil on success
	RecordRun(scanned, removed int, bytes int64, duration time.Duration, err error)
}

type noopGCMetrics struct{}

// NewNoopGCMetrics returns a GCMetrics that discards everything.
func NewNoopGCMetrics() GCMetrics {
	return noopGCMetrics{}
}

func (noopGCMetrics) RecordRun(int, int, int64, time.Duration, error) {}
