// Package badger implements a durable job queue on BadgerDB.
//
// Key layout (all values are JSON records):
//
//	q:r:<seq>  ready jobs, including those waiting out a backoff
//	q:i:<seq>  in-flight jobs
//	q:d:<seq>  dead letters
//	q:seq      Badger sequence for enqueue numbers
//
// Sequence numbers are zero-padded hex so a prefix scan yields FIFO order.
// Jobs left in flight by a crash are moved back to ready when the queue is
// opened, which makes delivery at-least-once across restarts.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/google/uuid"
	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/queue"
)

const (
	prefixReady    = "q:r:"
	prefixInFlight = "q:i:"
	prefixDead     = "q:d:"
	keySequence    = "q:seq"

	sequenceBandwidth = 100
)

func keyReady(seq uint64) []byte    { return []byte(fmt.Sprintf("%s%016x", prefixReady, seq)) }
func keyInFlight(seq uint64) []byte { return []byte(fmt.Sprintf("%s%016x", prefixInFlight, seq)) }
func keyDead(seq uint64) []byte     { return []byte(fmt.Sprintf("%s%016x", prefixDead, seq)) }

// record is the persisted form of a queued job.
type record struct {
	Job       queue.Job `json:"job"`
	Seq       uint64    `json:"seq"`
	Attempt   int       `json:"attempt"`
	ReadyAt   time.Time `json:"ready_at"`
	LastError string    `json:"last_error,omitempty"`
}

// BadgerQueueConfig configures the durable queue.
type BadgerQueueConfig struct {
	// DBPath is the directory where BadgerDB stores the queue
	DBPath string `mapstructure:"db_path"`

	// InMemory runs Badger without touching disk (tests)
	InMemory bool `mapstructure:"in_memory"`

	// PollInterval bounds how long Dequeue sleeps without a wakeup.
	// Default: 1s
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// BadgerQueue implements queue.Queue on BadgerDB.
//
// Thread Safety:
// Concurrent consumers race on the same ready key inside Badger
// transactions; the loser gets ErrConflict and rescans.
type BadgerQueue struct {
	db     *badgerdb.DB
	seq    *badgerdb.Sequence
	policy queue.RetryPolicy
	poll   time.Duration
	now    func() time.Time

	// lifecycle is held for reading by every database operation and for
	// writing by Close, so the database is never closed under a transaction.
	lifecycle sync.RWMutex
	notify    chan struct{}
	closed    chan struct{}
	once      sync.Once
}

// NewBadgerQueue opens (or creates) a durable queue and requeues jobs left
// in flight by a previous process.
//
// Parameters:
//   - ctx: Context for cancellation
//   - cfg: Storage configuration
//   - policy: Retry policy; zero fields take defaults
//
// Returns:
//   - *BadgerQueue: Opened queue
//   - error: If the database cannot be opened or recovered
func NewBadgerQueue(ctx context.Context, cfg BadgerQueueConfig, policy queue.RetryPolicy) (*BadgerQueue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badgerdb.Options
	if cfg.InMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.DBPath == "" {
			return nil, fmt.Errorf("badger queue: db_path is required")
		}
		opts = badgerdb.DefaultOptions(cfg.DBPath)
	}
	opts = opts.WithLoggingLevel(badgerdb.WARNING)
	opts = opts.WithCompression(options.None)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue database at %s: %w", cfg.DBPath, err)
	}

	seq, err := db.GetSequence([]byte(keySequence), sequenceBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to lease queue sequence: %w", err)
	}

	poll := cfg.PollInterval
	if poll <= 0 {
		poll = time.Second
	}

	q := &BadgerQueue{
		db:     db,
		seq:    seq,
		policy: policy.WithDefaults(),
		poll:   poll,
		now:    time.Now,
		notify: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}

	recovered, err := q.requeueInFlight()
	if err != nil {
		_ = seq.Release()
		_ = db.Close()
		return nil, fmt.Errorf("failed to recover in-flight jobs: %w", err)
	}
	if recovered > 0 {
		logger.Info("Queue: requeued %d in-flight job(s) from previous run", recovered)
	}

	return q, nil
}

// requeueInFlight moves every in-flight record back to ready.
func (q *BadgerQueue) requeueInFlight() (int, error) {
	count := 0
	err := q.db.Update(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefixInFlight)

		it := txn.NewIterator(opts)
		defer it.Close()

		var records []record
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			rec, err := decodeItem(it.Item())
			if err != nil {
				return err
			}
			records = append(records, rec)
		}

		now := q.now()
		for _, rec := range records {
			rec.ReadyAt = now
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := txn.Delete(keyInFlight(rec.Seq)); err != nil {
				return err
			}
			if err := txn.Set(keyReady(rec.Seq), data); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

func decodeItem(item *badgerdb.Item) (record, error) {
	var rec record
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return record{}, fmt.Errorf("failed to decode queue record %s: %w", item.Key(), err)
	}
	return rec, nil
}

func (q *BadgerQueue) isClosed() bool {
	select {
	case <-q.closed:
		return true
	default:
		return false
	}
}

func (q *BadgerQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// acquire takes the read side of the lifecycle lock, failing once closed.
func (q *BadgerQueue) acquire() error {
	q.lifecycle.RLock()
	if q.isClosed() {
		q.lifecycle.RUnlock()
		return queue.ErrClosed
	}
	return nil
}

func (q *BadgerQueue) release() {
	q.lifecycle.RUnlock()
}

func (q *BadgerQueue) Enqueue(ctx context.Context, job queue.Job) (queue.Job, error) {
	if err := ctx.Err(); err != nil {
		return queue.Job{}, err
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	if err := q.acquire(); err != nil {
		return queue.Job{}, err
	}
	defer q.release()

	next, err := q.seq.Next()
	if err != nil {
		return queue.Job{}, fmt.Errorf("failed to allocate queue sequence: %w", err)
	}

	rec := record{Job: job, Seq: next + 1, ReadyAt: q.now()}
	data, err := json.Marshal(rec)
	if err != nil {
		return queue.Job{}, err
	}

	if err := q.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(keyReady(rec.Seq), data)
	}); err != nil {
		return queue.Job{}, fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}

	q.signal()
	return job, nil
}

func (q *BadgerQueue) Dequeue(ctx context.Context) (*queue.Delivery, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		d, wait, err := q.takeDue()
		if errors.Is(err, badgerdb.ErrConflict) {
			// Another consumer claimed the same job; rescan.
			continue
		}
		if err != nil {
			return nil, err
		}
		if d != nil {
			return d, nil
		}

		if wait <= 0 || wait > q.poll {
			wait = q.poll
		}
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-q.closed:
			timer.Stop()
			return nil, queue.ErrClosed
		case <-q.notify:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// takeDue claims the lowest-seq due job. When none is due it returns the
// time until the earliest backoff expires (0 if the queue is empty).
func (q *BadgerQueue) takeDue() (*queue.Delivery, time.Duration, error) {
	if err := q.acquire(); err != nil {
		return nil, 0, err
	}
	defer q.release()

	var delivery *queue.Delivery
	var wait time.Duration

	err := q.db.Update(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefixReady)

		it := txn.NewIterator(opts)
		defer it.Close()

		now := q.now()
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			rec, err := decodeItem(it.Item())
			if err != nil {
				return err
			}

			if rec.ReadyAt.After(now) {
				if until := rec.ReadyAt.Sub(now); wait == 0 || until < wait {
					wait = until
				}
				continue
			}

			rec.Attempt++
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := txn.Delete(keyReady(rec.Seq)); err != nil {
				return err
			}
			if err := txn.Set(keyInFlight(rec.Seq), data); err != nil {
				return err
			}

			delivery = &queue.Delivery{
				Job:       rec.Job,
				Attempt:   rec.Attempt,
				Seq:       rec.Seq,
				LastError: rec.LastError,
			}
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return delivery, wait, nil
}

func (q *BadgerQueue) Ack(ctx context.Context, d *queue.Delivery) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := q.acquire(); err != nil {
		return err
	}
	defer q.release()

	return q.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(keyInFlight(d.Seq)); err == badgerdb.ErrKeyNotFound {
			return queue.ErrUnknownDelivery
		} else if err != nil {
			return err
		}
		return txn.Delete(keyInFlight(d.Seq))
	})
}

func (q *BadgerQueue) Nack(ctx context.Context, d *queue.Delivery, cause error) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := q.acquire(); err != nil {
		return false, err
	}
	defer q.release()

	reason := ""
	if cause != nil {
		reason = cause.Error()
	}

	dead := false
	err := q.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyInFlight(d.Seq))
		if err == badgerdb.ErrKeyNotFound {
			return queue.ErrUnknownDelivery
		}
		if err != nil {
			return err
		}

		rec, err := decodeItem(item)
		if err != nil {
			return err
		}
		if err := txn.Delete(keyInFlight(d.Seq)); err != nil {
			return err
		}

		if q.policy.ShouldDeadLetter(rec.Attempt, cause) {
			dead = true
			data, err := json.Marshal(queue.DeadLetter{
				Job:      rec.Job,
				Attempts: rec.Attempt,
				Reason:   reason,
				FailedAt: q.now(),
			})
			if err != nil {
				return err
			}
			return txn.Set(keyDead(rec.Seq), data)
		}

		rec.LastError = reason
		rec.ReadyAt = q.now().Add(q.policy.Backoff(rec.Attempt))
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(keyReady(rec.Seq), data)
	})
	if err != nil {
		return false, err
	}

	if !dead {
		q.signal()
	}
	return dead, nil
}

func (q *BadgerQueue) DeadLetters(ctx context.Context) ([]queue.DeadLetter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.acquire(); err != nil {
		return nil, err
	}
	defer q.release()

	result := []queue.DeadLetter{}
	err := q.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefixDead)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			var dl queue.DeadLetter
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &dl)
			}); err != nil {
				return err
			}
			result = append(result, dl)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (q *BadgerQueue) Stats(ctx context.Context) (queue.Stats, error) {
	if err := ctx.Err(); err != nil {
		return queue.Stats{}, err
	}
	if err := q.acquire(); err != nil {
		return queue.Stats{}, err
	}
	defer q.release()

	var stats queue.Stats
	err := q.db.View(func(txn *badgerdb.Txn) error {
		stats.Ready = countPrefix(txn, prefixReady)
		stats.InFlight = countPrefix(txn, prefixInFlight)
		stats.Dead = countPrefix(txn, prefixDead)
		return nil
	})
	return stats, err
}

func countPrefix(txn *badgerdb.Txn, prefix string) int64 {
	opts := badgerdb.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(prefix)

	it := txn.NewIterator(opts)
	defer it.Close()

	var n int64
	for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
		n++
	}
	return n
}

// Close wakes blocked consumers, waits for running operations, then closes
// the database. Idempotent.
func (q *BadgerQueue) Close() error {
	var err error
	q.once.Do(func() {
		close(q.closed)

		q.lifecycle.Lock()
		defer q.lifecycle.Unlock()

		if releaseErr := q.seq.Release(); releaseErr != nil {
			err = fmt.Errorf("failed to release queue sequence: %w", releaseErr)
		}
		if closeErr := q.db.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close queue database: %w", closeErr)
		}
	})
	return err
}
