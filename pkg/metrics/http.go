package metrics

import "time"

// HTTPMetrics provides observability for the HTTP adapter.
//
// This interface is optional. If not provided to the adapter, a no-op
// implementation is used with zero overhead.
type HTTPMetrics interface {
	// RecordRequest records a completed request.
	//
	// Parameters:
	//   - method: HTTP method
	//   - route: Route pattern (e.g., "/files/{id}"), never the raw path
	//   - status: Response status code
	//   - duration: Time taken to serve the request
	RecordRequest(method, route string, status int, duration time.Duration)

	// RecordRequestStart increments the in-flight request gauge.
	RecordRequestStart()

	// RecordRequestEnd decrements the in-flight request gauge.
	RecordRequestEnd()

	// RecordBytesTransferred records payload bytes.
	//
	// Parameters:
	//   - direction: "upload" or "download"
	//   - bytes: Number of bytes
	RecordBytesTransferred(direction string, bytes int64)
}

type noopHTTPMetrics struct{}

// NewNoopHTTPMetrics returns an HTTPMetrics that discards everything.
func NewNoopHTTPMetrics() HTTPMetrics {
	return noopHTTPMetrics{}
}

func (noopHTTPMetrics) RecordRequest(string, string, int, time.Duration) {}
func (noopHTTPMetrics) RecordRequestStart()                              {}
func (noopHTTPMetrics) RecordRequestEnd()                                {}
func (noopHTTPMetrics) RecordBytesTransferred(string, int64)             {}
