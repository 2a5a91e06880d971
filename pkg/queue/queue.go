// Package queue defines the at-least-once job queue feeding the thumbnail
// worker.
//
// A job is delivered to one consumer at a time. The consumer either acks it
// (done) or nacks it with a cause. Nacked jobs are redelivered after an
// exponential backoff until the retry policy gives up, at which point they
// move to the dead-letter set. Causes wrapping ErrPermanent skip the retry
// budget and go straight to dead letters.
//
// Among jobs that are due, delivery is FIFO by enqueue sequence. A retried
// job keeps its original sequence number, so it does not lose its place
// once its backoff expires.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrClosed is returned by every operation once the queue is closed.
	ErrClosed = errors.New("queue closed")

	// ErrPermanent marks failures that retrying cannot fix. Wrap it (or use
	// Permanent) in the cause passed to Nack.
	ErrPermanent = errors.New("permanent failure")

	// ErrUnknownDelivery is returned by Ack and Nack for deliveries that are
	// not in flight (already acked, or redelivered after a restart).
	ErrUnknownDelivery = errors.New("unknown delivery")
)

// Permanent wraps err so Nack dead-letters the job without retrying.
func Permanent(err error) error {
	if err == nil {
		return ErrPermanent
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Job asks for thumbnails of one uploaded image.
type Job struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	FileID string `json:"file_id"`
}

// Delivery is a job handed to a consumer.
type Delivery struct {
	Job Job

	// Attempt counts deliveries of this job, starting at 1.
	Attempt int

	// Seq is the enqueue sequence number; it identifies the delivery for
	// Ack and Nack.
	Seq uint64

	// LastError is the cause of the previous failed attempt, if any.
	LastError string
}

// DeadLetter is a job the queue gave up on.
type DeadLetter struct {
	Job      Job       `json:"job"`
	Attempts int       `json:"attempts"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}

// Stats is a point-in-time view of queue occupancy.
type Stats struct {
	// Ready counts jobs waiting for delivery, including those in backoff.
	Ready int64

	// InFlight counts delivered jobs not yet acked or nacked.
	InFlight int64

	// Dead counts dead-lettered jobs.
	Dead int64
}

// RetryPolicy bounds redelivery of failed jobs.
type RetryPolicy struct {
	// MaxAttempts is the total number of deliveries before a job is
	// dead-lettered. Default: 5
	MaxAttempts int `mapstructure:"max_attempts" validate:"omitempty,gte=1"`

	// InitialBackoff is the delay after the first failure. Default: 1s
	InitialBackoff time.Duration `mapstructure:"initial_backoff" validate:"omitempty,gt=0"`

	// MaxBackoff caps the exponential delay. Default: 1m
	MaxBackoff time.Duration `mapstructure:"max_backoff" validate:"omitempty,gt=0"`
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: time.Second,
		MaxBackoff:     time.Minute,
	}
}

// WithDefaults fills zero fields from DefaultRetryPolicy.
func (p RetryPolicy) WithDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = def.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = def.MaxBackoff
	}
	return p
}

// Backoff returns the delay before redelivering a job whose attempt-th
// delivery failed: InitialBackoff * 2^(attempt-1), capped at MaxBackoff.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxBackoff || delay <= 0 {
			return p.MaxBackoff
		}
	}
	if delay > p.MaxBackoff {
		return p.MaxBackoff
	}
	return delay
}

// ShouldDeadLetter reports whether a delivery that failed with cause is out
// of retries.
func (p RetryPolicy) ShouldDeadLetter(attempt int, cause error) bool {
	return errors.Is(cause, ErrPermanent) || attempt >= p.MaxAttempts
}

// Queue is the job queue abstraction.
//
// Implementations:
//   - memory: in-process, lost on restart
//   - badger: durable; in-flight jobs are redelivered after a restart
//
// All implementations must be safe for concurrent use.
type Queue interface {
	// Enqueue adds a job. An empty Job.ID is replaced by a fresh UUID.
	// Returns the stored job.
	Enqueue(ctx context.Context, job Job) (Job, error)

	// Dequeue blocks until a job is due, the context ends, or the queue is
	// closed.
	Dequeue(ctx context.Context) (*Delivery, error)

	// Ack marks a delivery as done.
	Ack(ctx context.Context, d *Delivery) error

	// Nack reports a failed delivery. The job is rescheduled with backoff,
	// or dead-lettered when the policy gives up; dead reports which.
	Nack(ctx context.Context, d *Delivery, cause error) (dead bool, err error)

	// DeadLetters lists dead-lettered jobs.
	DeadLetters(ctx context.Context) ([]DeadLetter, error)

	// Stats returns current occupancy.
	Stats(ctx context.Context) (Stats, error)

	// Close wakes blocked consumers with ErrClosed and releases resources.
	Close() error
}
