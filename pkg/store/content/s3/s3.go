package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/dittofiles/pkg/metrics"
	"github.com/marmos91/dittofiles/pkg/store/content"
)

// S3ContentStore implements content.ContentStore using Amazon S3 or
// S3-compatible storage.
//
// Each blob is one object. The object key is the blob ID with an optional
// prefix, so uploads and their thumbnails sit side by side:
//
//	KeyPrefix: "dittofiles/"
//	ID:        "5f0c..."      -> "dittofiles/5f0c..."
//	Thumbnail: "5f0c..._250"  -> "dittofiles/5f0c..._250"
//
// PutObject replaces objects atomically, which gives the whole-blob write
// semantics the interface requires.
//
// Thread Safety:
// Safe for concurrent use. Concurrent writes to the same ID are
// last-write-wins.
type S3ContentStore struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	metrics   metrics.S3Metrics
}

// S3ContentStoreConfig contains configuration for the S3 content store.
type S3ContentStoreConfig struct {
	// Client is the configured S3 client
	Client *s3.Client

	// Bucket is the S3 bucket name. It must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys
	KeyPrefix string

	// Metrics records S3 calls and bytes moved. Nil disables collection.
	Metrics metrics.S3Metrics
}

// NewS3ContentStore creates a new S3-based content store.
//
// The bucket must already exist; this function only verifies access.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - cfg: S3 configuration
//
// Returns:
//   - *S3ContentStore: Initialized S3 content store
//   - error: If the client or bucket is missing, or the bucket is unreachable
func NewS3ContentStore(ctx context.Context, cfg S3ContentStoreConfig) (*S3ContentStore, error) {
	// ========================================================================
	// Step 1: Check context before S3 operations
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 2: Validate configuration
	// ========================================================================

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	// ========================================================================
	// Step 3: Verify bucket access
	// ========================================================================

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	m := cfg.Metrics
	if m == nil {
		m = metrics.NewNoopS3Metrics()
	}

	return &S3ContentStore{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		metrics:   m,
	}, nil
}

// getObjectKey returns the full S3 object key for a blob ID.
func (s *S3ContentStore) getObjectKey(id string) string {
	return s.keyPrefix + id
}

// isNotFound reports whether err is S3's answer for a missing object.
// GetObject returns NoSuchKey; HeadObject has no body and returns NotFound.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}

// observe records one S3 call. A missing object is an answer, not a
// failure, and is reported as success.
func (s *S3ContentStore) observe(operation string, start time.Time, err error) {
	if err != nil && isNotFound(err) {
		err = nil
	}
	s.metrics.ObserveOperation(operation, time.Since(start), err)
}

// meteredBody counts bytes read from a GetObject body and reports them on
// Close.
type meteredBody struct {
	io.ReadCloser
	metrics metrics.S3Metrics
	n       int64
}

func (b *meteredBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	b.n += int64(n)
	return n, err
}

func (b *meteredBody) Close() error {
	b.metrics.RecordBytes("read", b.n)
	return b.ReadCloser.Close()
}

func (s *S3ContentStore) WriteContent(ctx context.Context, id string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := content.ValidateID(id); err != nil {
		return err
	}

	start := time.Now()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.getObjectKey(id)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	s.observe("PutObject", start, err)
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", id, err)
	}
	s.metrics.RecordBytes("write", int64(len(data)))
	return nil
}

// ReadContent downloads the object. The caller must close the returned body.
func (s *S3ContentStore) ReadContent(ctx context.Context, id string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := content.ValidateID(id); err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.getObjectKey(id)),
	})
	s.observe("GetObject", start, err)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}

	return &meteredBody{ReadCloser: result.Body, metrics: s.metrics}, nil
}

func (s *S3ContentStore) GetContentSize(ctx context.Context, id string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := content.ValidateID(id); err != nil {
		return 0, err
	}

	start := time.Now()
	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.getObjectKey(id)),
	})
	s.observe("HeadObject", start, err)
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
		}
		return 0, fmt.Errorf("failed to head object: %w", err)
	}

	if result.ContentLength == nil {
		return 0, fmt.Errorf("content length not available for %s", id)
	}
	return *result.ContentLength, nil
}

func (s *S3ContentStore) ContentExists(ctx context.Context, id string) (bool, error) {
	_, err := s.GetContentSize(ctx, id)
	if errors.Is(err, content.ErrContentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes the object. S3 reports success for missing keys, which
// matches the interface contract.
func (s *S3ContentStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := content.ValidateID(id); err != nil {
		return err
	}

	start := time.Now()
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.getObjectKey(id)),
	})
	s.observe("DeleteObject", start, err)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete object %s: %w", id, err)
	}
	return nil
}

// List pages through every object under the key prefix.
func (s *S3ContentStore) List(ctx context.Context) ([]content.ContentInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if s.keyPrefix != "" {
		input.Prefix = aws.String(s.keyPrefix)
	}
	paginator := s3.NewListObjectsV2Paginator(s.client, input)

	result := []content.ContentInfo{}
	for paginator.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		page, err := paginator.NextPage(ctx)
		s.observe("ListObjectsV2", start, err)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			id := strings.TrimPrefix(aws.ToString(obj.Key), s.keyPrefix)
			if id == "" || strings.Contains(id, "/") {
				// Not one of ours: nested keys are never written by this store.
				continue
			}

			result = append(result, content.ContentInfo{
				ID:      id,
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
	}
	return result, nil
}

func (s *S3ContentStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("bucket %q unreachable: %w", s.bucket, err)
	}
	return nil
}

// Close is a no-op; the S3 client has no resources to release.
func (s *S3ContentStore) Close() error {
	return nil
}
