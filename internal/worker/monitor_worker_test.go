package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medscribe/notequeue/internal/domain"
	"github.com/medscribe/notequeue/internal/queue"
)

type fakeSnapshotter struct {
	entries []*domain.QueueEntry
	depth   int
	err     error
}

func (f *fakeSnapshotter) Snapshot(context.Context) (*queue.Ranking, error) {
	if f.err != nil {
		return nil, f.err
	}
	return queue.Rank(f.entries), nil
}

func (f *fakeSnapshotter) DispatchDepth() int { return f.depth }

func TestMonitorWorker_PollObservesAndFlagsStale(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeSnapshotter{
		depth: 2,
		entries: []*domain.QueueEntry{
			{ID: "old", Seq: 1, Status: domain.StatusQueued, CreatedAt: now.Add(-time.Hour)},
			{ID: "fresh", Seq: 2, Status: domain.StatusQueued, CreatedAt: now.Add(-time.Minute)},
			{ID: "running", Seq: 3, Status: domain.StatusInProgress, CreatedAt: now.Add(-time.Hour)},
		},
	}

	var gotCounts map[domain.Status]int
	var gotDepth int
	mw := NewMonitorWorker(src, time.Second, 10*time.Minute, func(c map[domain.Status]int, d int) {
		gotCounts, gotDepth = c, d
	}, zap.NewNop())
	mw.now = func() time.Time { return now }

	stale := mw.poll(context.Background())

	assert.Equal(t, 1, stale, "only the old queued entry is stale")
	assert.Equal(t, 2, gotCounts[domain.StatusQueued])
	assert.Equal(t, 1, gotCounts[domain.StatusInProgress])
	assert.Equal(t, 2, gotDepth)
}

func TestMonitorWorker_SnapshotErrorSkipsObserve(t *testing.T) {
	called := false
	mw := NewMonitorWorker(&fakeSnapshotter{err: errors.New("db down")}, time.Second, time.Minute,
		func(map[domain.Status]int, int) { called = true }, zap.NewNop())

	assert.Zero(t, mw.poll(context.Background()))
	assert.False(t, called)
}

func TestMonitorWorker_RunStopsOnCancel(t *testing.T) {
	mw := NewMonitorWorker(&fakeSnapshotter{}, 5*time.Millisecond, time.Minute, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		mw.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		require.FailNow(t, "monitor did not stop after cancel")
	}
}
