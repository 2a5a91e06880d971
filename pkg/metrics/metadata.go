package metrics

import "time"

// MetadataMetrics provides observability for metadata store operations.
//
// Stores take it as an optional dependency:
//
//	store, err := badger.NewBadgerMetadataStore(ctx, badger.BadgerMetadataStoreConfig{
//	    DBPath:  path,
//	    Metrics: prometheus.NewMetadataMetrics("badger"),
//	})
type MetadataMetrics interface {
	// RecordOperation records a completed store call.
	//
	// Parameters:
	//   - operation: Store method name (e.g. "GetFile", "ListFiles")
	//   - duration: Time taken
	//   - err: Error if the call failed, nil otherwise
	RecordOperation(operation string, duration time.Duration, err error)
}

type noopMetadataMetrics struct{}

// NewNoopMetadataMetrics returns a MetadataMetrics that discards everything.
func NewNoopMetadataMetrics() MetadataMetrics {
	return noopMetadataMetrics{}
}

func (noopMetadataMetrics) RecordOperation(string, time.Duration, error) {}
