package testing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/dittofiles/pkg/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPolicy keeps backoffs short so retry tests run quickly.
var testPolicy = queue.RetryPolicy{
	MaxAttempts:    3,
	InitialBackoff: 20 * time.Millisecond,
	MaxBackoff:     80 * time.Millisecond,
}

// QueueTestSuite is a conformance test suite for queue.Queue implementations.
//
// Usage:
//
//	func TestMyQueue(t *testing.T) {
//	    suite := &testing.QueueTestSuite{
//	        NewQueue: func(t *testing.T, policy queue.RetryPolicy) queue.Queue {
//	            return myqueue.New(policy)
//	        },
//	    }
//	    suite.Run(t)
//	}
type QueueTestSuite struct {
	// NewQueue creates a fresh, empty queue using the given retry policy.
	NewQueue func(t *testing.T, policy queue.RetryPolicy) queue.Queue
}

// Run executes all tests in the suite.
func (suite *QueueTestSuite) Run(t *testing.T) {
	t.Run("FIFO", suite.testFIFO)
	t.Run("Enqueue_AssignsID", suite.testAssignsID)
	t.Run("Dequeue_BlocksUntilEnqueue", suite.testDequeueBlocks)
	t.Run("Dequeue_ContextCancelled", suite.testDequeueCancelled)
	t.Run("Ack", suite.testAck)
	t.Run("Ack_Twice", suite.testAckTwice)
	t.Run("Nack_RetriesWithBackoff", suite.testNackRetries)
	t.Run("Nack_KeepsSequence", suite.testNackKeepsSequence)
	t.Run("Nack_DeadLetterAfterMaxAttempts", suite.testDeadLetterAfterMax)
	t.Run("Nack_PermanentSkipsRetry", suite.testPermanent)
	t.Run("Close_WakesConsumers", suite.testCloseWakes)
	t.Run("ConcurrentConsumers", suite.testConcurrentConsumers)
}

func (suite *QueueTestSuite) newQueue(t *testing.T) queue.Queue {
	t.Helper()
	q := suite.NewQueue(t, testPolicy)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

// dequeue fails the test if no job arrives within a second.
func dequeue(t *testing.T, q queue.Queue) *queue.Delivery {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	return d
}

func enqueue(t *testing.T, q queue.Queue, fileID string) queue.Job {
	t.Helper()
	job, err := q.Enqueue(context.Background(), queue.Job{UserID: "user-1", FileID: fileID})
	require.NoError(t, err)
	return job
}

func (suite *QueueTestSuite) testFIFO(t *testing.T) {
	q := suite.newQueue(t)

	for i := 0; i < 5; i++ {
		enqueue(t, q, fmt.Sprintf("file-%d", i))
	}

	for i := 0; i < 5; i++ {
		d := dequeue(t, q)
		assert.Equal(t, fmt.Sprintf("file-%d", i), d.Job.FileID)
		assert.Equal(t, 1, d.Attempt)
		require.NoError(t, q.Ack(context.Background(), d))
	}
}

func (suite *QueueTestSuite) testAssignsID(t *testing.T) {
	q := suite.newQueue(t)

	job := enqueue(t, q, "file-1")
	assert.NotEmpty(t, job.ID)

	explicit, err := q.Enqueue(context.Background(), queue.Job{ID: "job-42", UserID: "u", FileID: "f"})
	require.NoError(t, err)
	assert.Equal(t, "job-42", explicit.ID)

	assert.Equal(t, job.ID, dequeue(t, q).Job.ID)
	assert.Equal(t, "job-42", dequeue(t, q).Job.ID)
}

func (suite *QueueTestSuite) testDequeueBlocks(t *testing.T) {
	q := suite.newQueue(t)

	got := make(chan *queue.Delivery, 1)
	go func() {
		d, err := q.Dequeue(context.Background())
		if err == nil {
			got <- d
		}
	}()

	select {
	case <-got:
		t.Fatal("Dequeue returned before anything was enqueued")
	case <-time.After(50 * time.Millisecond):
	}

	enqueue(t, q, "file-1")

	select {
	case d := <-got:
		assert.Equal(t, "file-1", d.Job.FileID)
	case <-time.After(2 * time.Second):
		t.Fatal("Dequeue did not wake up after Enqueue")
	}
}

func (suite *QueueTestSuite) testDequeueCancelled(t *testing.T) {
	q := suite.newQueue(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func (suite *QueueTestSuite) testAck(t *testing.T) {
	q := suite.newQueue(t)
	ctx := context.Background()

	enqueue(t, q, "file-1")

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, queue.Stats{Ready: 1}, stats)

	d := dequeue(t, q)
	stats, err = q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, queue.Stats{InFlight: 1}, stats)

	require.NoError(t, q.Ack(ctx, d))
	stats, err = q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, queue.Stats{}, stats)
}

func (suite *QueueTestSuite) testAckTwice(t *testing.T) {
	q := suite.newQueue(t)
	ctx := context.Background()

	enqueue(t, q, "file-1")
	d := dequeue(t, q)

	require.NoError(t, q.Ack(ctx, d))
	assert.ErrorIs(t, q.Ack(ctx, d), queue.ErrUnknownDelivery)

	_, err := q.Nack(ctx, d, errors.New("late"))
	assert.ErrorIs(t, err, queue.ErrUnknownDelivery)
}

func (suite *QueueTestSuite) testNackRetries(t *testing.T) {
	q := suite.newQueue(t)
	ctx := context.Background()

	enqueue(t, q, "file-1")
	d := dequeue(t, q)

	failedAt := time.Now()
	dead, err := q.Nack(ctx, d, errors.New("blob store unavailable"))
	require.NoError(t, err)
	assert.False(t, dead)

	retry := dequeue(t, q)
	assert.GreaterOrEqual(t, time.Since(failedAt), testPolicy.InitialBackoff)
	assert.Equal(t, d.Job, retry.Job)
	assert.Equal(t, 2, retry.Attempt)
	assert.Equal(t, "blob store unavailable", retry.LastError)
}

func (suite *QueueTestSuite) testNackKeepsSequence(t *testing.T) {
	q := suite.newQueue(t)
	ctx := context.Background()

	enqueue(t, q, "first")
	enqueue(t, q, "second")

	d := dequeue(t, q)
	require.Equal(t, "first", d.Job.FileID)
	_, err := q.Nack(ctx, d, errors.New("transient"))
	require.NoError(t, err)

	// Once both are due, the retried job comes first again.
	time.Sleep(2 * testPolicy.InitialBackoff)

	assert.Equal(t, "first", dequeue(t, q).Job.FileID)
	assert.Equal(t, "second", dequeue(t, q).Job.FileID)
}

func (suite *QueueTestSuite) testDeadLetterAfterMax(t *testing.T) {
	q := suite.newQueue(t)
	ctx := context.Background()

	job := enqueue(t, q, "file-1")

	for attempt := 1; attempt <= testPolicy.MaxAttempts; attempt++ {
		d := dequeue(t, q)
		require.Equal(t, attempt, d.Attempt)

		dead, err := q.Nack(ctx, d, errors.New("decode failed"))
		require.NoError(t, err)
		assert.Equal(t, attempt == testPolicy.MaxAttempts, dead, "attempt %d", attempt)
	}

	letters, err := q.DeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, job, letters[0].Job)
	assert.Equal(t, testPolicy.MaxAttempts, letters[0].Attempts)
	assert.Equal(t, "decode failed", letters[0].Reason)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, queue.Stats{Dead: 1}, stats)
}

func (suite *QueueTestSuite) testPermanent(t *testing.T) {
	q := suite.newQueue(t)
	ctx := context.Background()

	enqueue(t, q, "file-1")
	d := dequeue(t, q)

	dead, err := q.Nack(ctx, d, queue.Permanent(errors.New("File not found")))
	require.NoError(t, err)
	assert.True(t, dead)

	letters, err := q.DeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, 1, letters[0].Attempts)
	assert.Contains(t, letters[0].Reason, "File not found")
}

func (suite *QueueTestSuite) testCloseWakes(t *testing.T) {
	q := suite.NewQueue(t, testPolicy)

	errs := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background())
		errs <- err
	}()

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, q.Close())

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, queue.ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not wake the blocked consumer")
	}

	_, err := q.Enqueue(context.Background(), queue.Job{FileID: "f"})
	assert.ErrorIs(t, err, queue.ErrClosed)
	assert.NoError(t, q.Close(), "Close must be idempotent")
}

func (suite *QueueTestSuite) testConcurrentConsumers(t *testing.T) {
	q := suite.newQueue(t)

	const jobs = 50
	for i := 0; i < jobs; i++ {
		enqueue(t, q, fmt.Sprintf("file-%d", i))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				mu.Lock()
				done := len(seen) == jobs
				mu.Unlock()
				if done {
					return
				}

				pollCtx, pollCancel := context.WithTimeout(ctx, 100*time.Millisecond)
				d, err := q.Dequeue(pollCtx)
				pollCancel()
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					continue
				}

				mu.Lock()
				seen[d.Job.FileID]++
				mu.Unlock()
				_ = q.Ack(ctx, d)
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, jobs)
	for id, n := range seen {
		assert.Equal(t, 1, n, "job %s delivered %d times", id, n)
	}
}
