// Package memory implements an in-process job queue.
//
// Jobs are lost when the process exits. Use the badger queue when uploads
// must not lose their thumbnail jobs across restarts.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittofiles/pkg/queue"
)

type item struct {
	job       queue.Job
	seq       uint64
	attempt   int
	readyAt   time.Time
	lastError string
}

// MemoryQueue implements queue.Queue with slices and maps guarded by a mutex.
type MemoryQueue struct {
	mu sync.Mutex

	// ready is kept sorted by seq.
	ready    []*item
	inFlight map[uint64]*item
	dead     []queue.DeadLetter

	seq    uint64
	policy queue.RetryPolicy
	now    func() time.Time

	// notify wakes one blocked Dequeue when a job becomes available.
	notify chan struct{}
	closed chan struct{}
	once   sync.Once
}

// NewMemoryQueue creates an empty queue. Zero policy fields take defaults.
func NewMemoryQueue(policy queue.RetryPolicy) *MemoryQueue {
	return &MemoryQueue{
		inFlight: make(map[uint64]*item),
		policy:   policy.WithDefaults(),
		now:      time.Now,
		notify:   make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}
}

func (q *MemoryQueue) isClosed() bool {
	select {
	case <-q.closed:
		return true
	default:
		return false
	}
}

func (q *MemoryQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job queue.Job) (queue.Job, error) {
	if err := ctx.Err(); err != nil {
		return queue.Job{}, err
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	q.mu.Lock()
	if q.isClosed() {
		q.mu.Unlock()
		return queue.Job{}, queue.ErrClosed
	}
	q.seq++
	q.ready = append(q.ready, &item{job: job, seq: q.seq, readyAt: q.now()})
	q.mu.Unlock()

	q.signal()
	return job, nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*queue.Delivery, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		q.mu.Lock()
		if q.isClosed() {
			q.mu.Unlock()
			return nil, queue.ErrClosed
		}
		d, wait := q.takeDue()
		more := d != nil && q.hasDue()
		q.mu.Unlock()

		if d != nil {
			// Pass the wakeup on so other consumers see the remaining jobs.
			if more {
				q.signal()
			}
			return d, nil
		}

		var timer *time.Timer
		var fire <-chan time.Time
		if wait > 0 {
			timer = time.NewTimer(wait)
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)
			return nil, ctx.Err()
		case <-q.closed:
			stopTimer(timer)
			return nil, queue.ErrClosed
		case <-q.notify:
		case <-fire:
		}
		stopTimer(timer)
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// takeDue pops the lowest-seq due item. When nothing is due it returns the
// time until the earliest backoff expires, or 0 if the queue is empty.
// Must be called with mu held.
func (q *MemoryQueue) takeDue() (*queue.Delivery, time.Duration) {
	now := q.now()
	var wait time.Duration

	for i, it := range q.ready {
		if !it.readyAt.After(now) {
			q.ready = append(q.ready[:i], q.ready[i+1:]...)
			it.attempt++
			q.inFlight[it.seq] = it
			return &queue.Delivery{
				Job:       it.job,
				Attempt:   it.attempt,
				Seq:       it.seq,
				LastError: it.lastError,
			}, 0
		}
		if until := it.readyAt.Sub(now); wait == 0 || until < wait {
			wait = until
		}
	}
	return nil, wait
}

// hasDue must be called with mu held.
func (q *MemoryQueue) hasDue() bool {
	now := q.now()
	for _, it := range q.ready {
		if !it.readyAt.After(now) {
			return true
		}
	}
	return false
}

func (q *MemoryQueue) Ack(ctx context.Context, d *queue.Delivery) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.isClosed() {
		return queue.ErrClosed
	}
	if _, ok := q.inFlight[d.Seq]; !ok {
		return queue.ErrUnknownDelivery
	}
	delete(q.inFlight, d.Seq)
	return nil
}

func (q *MemoryQueue) Nack(ctx context.Context, d *queue.Delivery, cause error) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	q.mu.Lock()
	if q.isClosed() {
		q.mu.Unlock()
		return false, queue.ErrClosed
	}
	it, ok := q.inFlight[d.Seq]
	if !ok {
		q.mu.Unlock()
		return false, queue.ErrUnknownDelivery
	}
	delete(q.inFlight, d.Seq)

	reason := ""
	if cause != nil {
		reason = cause.Error()
	}

	if q.policy.ShouldDeadLetter(it.attempt, cause) {
		q.dead = append(q.dead, queue.DeadLetter{
			Job:      it.job,
			Attempts: it.attempt,
			Reason:   reason,
			FailedAt: q.now(),
		})
		q.mu.Unlock()
		return true, nil
	}

	it.lastError = reason
	it.readyAt = q.now().Add(q.policy.Backoff(it.attempt))
	q.insertReady(it)
	q.mu.Unlock()

	// A waiting consumer recomputes its timer against the new readyAt.
	q.signal()
	return false, nil
}

// insertReady keeps ready ordered by seq. Must be called with mu held.
func (q *MemoryQueue) insertReady(it *item) {
	i := sort.Search(len(q.ready), func(i int) bool { return q.ready[i].seq > it.seq })
	q.ready = append(q.ready, nil)
	copy(q.ready[i+1:], q.ready[i:])
	q.ready[i] = it
}

func (q *MemoryQueue) DeadLetters(ctx context.Context) ([]queue.DeadLetter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]queue.DeadLetter, len(q.dead))
	copy(out, q.dead)
	return out, nil
}

func (q *MemoryQueue) Stats(ctx context.Context) (queue.Stats, error) {
	if err := ctx.Err(); err != nil {
		return queue.Stats{}, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	return queue.Stats{
		Ready:    int64(len(q.ready)),
		InFlight: int64(len(q.inFlight)),
		Dead:     int64(len(q.dead)),
	}, nil
}

// Close is idempotent.
func (q *MemoryQueue) Close() error {
	q.once.Do(func() {
		q.mu.Lock()
		close(q.closed)
		q.mu.Unlock()
	})
	return nil
}
