// Package queue provides the bounded FIFO job queue feeding the processor.
package queue

import (
	"context"

	"github.com/evekb/killfeed/internal/domain/job"
	apperrors "github.com/evekb/killfeed/internal/errors"
)

// DefaultCapacity matches the queue depth the system was tuned with.
const DefaultCapacity = 100

// Queue is a bounded, ordered, many-producer single-consumer job queue.
// Producers choose between a non-blocking enqueue that sheds load when the
// queue is full and a blocking enqueue that suspends until space is available.
type Queue struct {
	ch chan job.Job
}

// New creates a queue with the given capacity. Non-positive capacities fall
// back to DefaultCapacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{ch: make(chan job.Job, capacity)}
}

// TryEnqueue attempts a non-blocking enqueue. When the queue is full the job
// is dropped and a queue_full error is returned; the caller decides whether
// that is worth more than a log line.
func (q *Queue) TryEnqueue(j job.Job) error {
	if err := j.Validate(); err != nil {
		return err
	}
	select {
	case q.ch <- j:
		return nil
	default:
		return apperrors.QueueFull("job queue is full, dropping " + string(j.Kind))
	}
}

// Enqueue blocks until the job is accepted or the context is canceled.
func (q *Queue) Enqueue(ctx context.Context, j job.Job) error {
	if err := j.Validate(); err != nil {
		return err
	}
	select {
	case q.ch <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue blocks until a job is available or the context is canceled.
// The boolean is false when the wait was interrupted by cancellation.
func (q *Queue) Dequeue(ctx context.Context) (job.Job, bool) {
	select {
	case j := <-q.ch:
		return j, true
	case <-ctx.Done():
		return job.Job{}, false
	}
}

// Len returns the number of jobs currently waiting.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *Queue) Cap() int { return cap(q.ch) }
