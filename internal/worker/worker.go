package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/medscribe/notequeue/internal/queue"
)

// Worker is a single goroutine that continuously pulls jobs from the
// dispatch queue and runs them through the shared Dispatcher.
type Worker struct {
	id     int
	q      *queue.DispatchQueue
	d      *Dispatcher
	logger *zap.Logger
}

func NewWorker(id int, q *queue.DispatchQueue, d *Dispatcher, logger *zap.Logger) *Worker {
	return &Worker{id: id, q: q, d: d, logger: logger}
}

// Run blocks until ctx is cancelled, processing one job per iteration.
//
// A job already taken off the queue runs on a context detached from ctx, so
// shutdown lets it reach a terminal status (bounded by the per-call
// timeouts) instead of failing it half way.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started")
	for {
		job, ok := w.q.Dequeue(ctx)
		if !ok {
			w.logger.Info("worker stopping")
			return
		}
		w.d.Process(context.WithoutCancel(ctx), job)
	}
}
