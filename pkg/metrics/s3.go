package metrics

import "time"

// S3Metrics provides observability for the S3 blob store.
type S3Metrics interface {
	// ObserveOperation records one S3 API call (PutObject, GetObject, ...).
	ObserveOperation(operation string, duration time.Duration, err error)

	// RecordBytes records payload bytes moved by an operation
	// ("read" or "write").
	RecordBytes(operation string, bytes int64)
}

type noopS3Metrics struct{}

// NewNoopS3Metrics returns an S3Metrics that discards everything.
func NewNoopS3Metrics() S3Metrics {
	return noopS3Metrics{}
}

func (noopS3Metrics) ObserveOperation(string, time.Duration, error) {}
func (noopS3Metrics) RecordBytes(string, int64)                     {}
