package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/medscribe/notequeue/internal/domain"
	"github.com/medscribe/notequeue/internal/queue"
)

// Snapshotter is the part of the queue service the monitor needs.
type Snapshotter interface {
	Snapshot(ctx context.Context) (*queue.Ranking, error)
	DispatchDepth() int
}

// MonitorWorker periodically snapshots the active set for the gauges and
// reports entries that have sat in queued for too long.
//
// It does not requeue anything. An entry stranded by a crash between insert
// and dispatch stays queued until its owner regenerates it.
type MonitorWorker struct {
	src        Snapshotter
	interval   time.Duration
	staleAfter time.Duration
	observe    func(counts map[domain.Status]int, dispatchDepth int)
	now        func() time.Time
	logger     *zap.Logger
}

func NewMonitorWorker(
	src Snapshotter,
	interval, staleAfter time.Duration,
	observe func(map[domain.Status]int, int),
	logger *zap.Logger,
) *MonitorWorker {
	if observe == nil {
		observe = func(map[domain.Status]int, int) {}
	}
	return &MonitorWorker{
		src: src, interval: interval, staleAfter: staleAfter,
		observe: observe, now: time.Now, logger: logger,
	}
}

// Run ticks every interval until ctx is cancelled.
func (mw *MonitorWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(mw.interval)
	defer ticker.Stop()

	mw.logger.Info("queue monitor started", zap.Duration("interval", mw.interval))

	for {
		select {
		case <-ctx.Done():
			mw.logger.Info("queue monitor stopping")
			return
		case <-ticker.C:
			mw.poll(ctx)
		}
	}
}

// poll returns the number of stale queued entries it reported.
func (mw *MonitorWorker) poll(ctx context.Context) int {
	ranking, err := mw.src.Snapshot(ctx)
	if err != nil {
		mw.logger.Error("queue monitor snapshot error", zap.Error(err))
		return 0
	}

	mw.observe(ranking.CountByStatus(), mw.src.DispatchDepth())

	cutoff := mw.now().Add(-mw.staleAfter)
	stale := 0
	for _, e := range ranking.Ordered() {
		if e.Status == domain.StatusQueued && e.CreatedAt.Before(cutoff) {
			stale++
			mw.logger.Warn("queue entry stuck in queued, owner must regenerate",
				zap.String("entry_id", e.ID),
				zap.String("note", e.Note.String()),
				zap.Time("created_at", e.CreatedAt),
			)
		}
	}
	return stale
}
