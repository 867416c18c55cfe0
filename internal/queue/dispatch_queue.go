package queue

import (
	"context"

	"github.com/medscribe/notequeue/internal/domain"
)

// DispatchQueue is a bounded FIFO between request handlers and dispatch workers.
// There is no priority scheduling: jobs leave in the order they were accepted.
type DispatchQueue struct {
	jobs chan Job
}

func New(capacity int) *DispatchQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &DispatchQueue{jobs: make(chan Job, capacity)}
}

// Enqueue is non-blocking: if the buffer is full, ErrQueueFull is returned
// immediately rather than blocking the caller.
func (q *DispatchQueue) Enqueue(job Job) error {
	select {
	case q.jobs <- job:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Dequeue blocks until a job is available or ctx is cancelled.
// Returns (Job{}, false) when ctx is cancelled (graceful shutdown signal).
func (q *DispatchQueue) Dequeue(ctx context.Context) (Job, bool) {
	select {
	case job := <-q.jobs:
		return job, true
	case <-ctx.Done():
		return Job{}, false
	}
}

// Depth returns the number of jobs waiting for a worker.
func (q *DispatchQueue) Depth() int {
	return len(q.jobs)
}

func (q *DispatchQueue) Capacity() int {
	return cap(q.jobs)
}
