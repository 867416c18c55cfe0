package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/medscribe/notequeue/internal/queue"
)

// Pool manages the lifecycle of all dispatch workers.
// Its size is the global cap on concurrent calls to the external services.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
}

// NewPool creates size identical workers sharing one dispatcher.
func NewPool(size int, q *queue.DispatchQueue, d *Dispatcher, logger *zap.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	workers := make([]*Worker, size)
	for i := range workers {
		workers[i] = NewWorker(i, q, d, logger.With(zap.Int("worker_id", i)))
	}
	return &Pool{workers: workers}
}

// Start launches all workers as goroutines.
// The provided ctx is forwarded to every worker; cancelling it
// triggers a graceful shutdown of the entire pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned after ctx is cancelled.
// Call this after cancelling the context to ensure in-flight jobs finish.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) Size() int {
	return len(p.workers)
}
