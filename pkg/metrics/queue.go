package metrics

// QueueMetrics provides observability for the thumbnail job queue.
type QueueMetrics interface {
	// RecordEnqueue counts enqueue attempts; err is nil on success.
	RecordEnqueue(err error)

	// SetDepth publishes the current queue occupancy.
	SetDepth(ready, inFlight, dead int64)
}

type noopQueueMetrics struct{}

// NewNoopQueueMetrics returns a QueueMetrics that discards everything.
func NewNoopQueueMetrics() QueueMetrics {
	return noopQueueMetrics{}
}

func (noopQueueMetrics) RecordEnqueue(error)          {}
func (noopQueueMetrics) SetDepth(int64, int64, int64) {}
