package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/marmos91/dittofiles/pkg/metrics"
	"github.com/marmos91/dittofiles/pkg/store/metadata"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopWhenDisabled(t *testing.T) {
	// Constructors must be usable before InitRegistry.
	if metrics.IsEnabled() {
		t.Skip("registry already initialized by another test")
	}
	NewHTTPMetrics().RecordRequest("GET", "/status", 200, time.Millisecond)
	NewThumbnailMetrics().RecordJob(metrics.JobSucceeded, time.Millisecond)
	NewQueueMetrics().SetDepth(1, 2, 3)
	NewGCMetrics().RecordRun(1, 1, 10, time.Millisecond, nil)
	NewMetadataMetrics("memory").RecordOperation("GetFile", time.Millisecond, nil)
	NewS3Metrics().RecordBytes("read", 1)
}

func TestHTTPMetrics(t *testing.T) {
	metrics.ResetRegistryForTesting()
	m := NewHTTPMetrics().(*httpMetrics)

	m.RecordRequest("GET", "/files/{id}", 404, 3*time.Millisecond)
	m.RecordRequest("GET", "/files/{id}", 404, 3*time.Millisecond)
	m.RecordBytesTransferred("upload", 512)
	m.RecordRequestStart()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/files/{id}", "404")))
	assert.Equal(t, 512.0, testutil.ToFloat64(m.bytesTransferred.WithLabelValues("upload")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsInFlight))

	m.RecordRequestEnd()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.requestsInFlight))
}

func TestQueueMetrics(t *testing.T) {
	metrics.ResetRegistryForTesting()
	m := NewQueueMetrics().(*queueMetrics)

	m.RecordEnqueue(nil)
	m.RecordEnqueue(errors.New("queue closed"))
	m.SetDepth(4, 1, 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.enqueueTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.enqueueTotal.WithLabelValues("error")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.depth.WithLabelValues("ready")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.depth.WithLabelValues("dead")))
}

func TestThumbnailAndGCMetrics(t *testing.T) {
	metrics.ResetRegistryForTesting()
	thumbs := NewThumbnailMetrics().(*thumbnailMetrics)
	gc := NewGCMetrics().(*gcMetrics)

	thumbs.RecordJob(metrics.JobDead, time.Second)
	thumbs.RecordThumbnail(250, 2048)
	gc.RecordRun(10, 3, 4096, time.Second, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(thumbs.jobsTotal.WithLabelValues("dead")))
	assert.Equal(t, 1.0, testutil.ToFloat64(thumbs.thumbnailsTotal.WithLabelValues("250")))
	assert.Equal(t, 3.0, testutil.ToFloat64(gc.blobsRemoved))
	assert.Equal(t, 4096.0, testutil.ToFloat64(gc.bytesReclaimed))

	families, err := metrics.GetRegistry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetadataMetrics(t *testing.T) {
	metrics.ResetRegistryForTesting()
	m := NewMetadataMetrics("badger").(*metadataMetrics)

	m.RecordOperation("GetFile", time.Millisecond, nil)
	m.RecordOperation("GetFile", time.Millisecond, metadata.NewNotFoundError("file", "f1"))
	m.RecordOperation("CreateFile", time.Millisecond, errors.New("disk full"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("badger", "GetFile", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("badger", "GetFile", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("badger", "CreateFile", "error")))
}

func TestS3Metrics(t *testing.T) {
	metrics.ResetRegistryForTesting()
	m := NewS3Metrics().(*s3Metrics)

	m.ObserveOperation("PutObject", 20*time.Millisecond, nil)
	m.ObserveOperation("GetObject", 20*time.Millisecond, errors.New("timeout"))
	m.RecordBytes("write", 1024)
	m.RecordBytes("write", 1024)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("PutObject", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("GetObject", "error")))
	assert.Equal(t, 2048.0, testutil.ToFloat64(m.bytesTransferred.WithLabelValues("write")))
}
