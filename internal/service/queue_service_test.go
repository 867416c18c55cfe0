package service_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medscribe/notequeue/internal/domain"
	"github.com/medscribe/notequeue/internal/notestore"
	"github.com/medscribe/notequeue/internal/queue"
	"github.com/medscribe/notequeue/internal/repository"
	"github.com/medscribe/notequeue/internal/service"
)

type fixture struct {
	svc      *service.QueueService
	repo     *repository.MockEntryRepository
	store    *notestore.MockStore
	q        *queue.DispatchQueue
	enqueued []domain.NoteKind
}

func newFixture(t *testing.T, capacity int) *fixture {
	t.Helper()
	f := &fixture{
		repo:  repository.NewMockEntryRepository(),
		store: notestore.NewMockStore(),
		q:     queue.New(capacity),
	}
	reg := notestore.NewRegistry()
	reg.Register(domain.NoteKindOnDemandSmartNote, f.store)
	f.svc = service.NewQueueService(f.repo, reg, f.q, nil, zap.NewNop(), service.Hooks{
		OnEnqueued: func(k domain.NoteKind) { f.enqueued = append(f.enqueued, k) },
	})
	return f
}

func smartNote(id string) domain.NoteRef {
	return domain.NoteRef{Kind: domain.NoteKindOnDemandSmartNote, ID: id}
}

func (f *fixture) enqueue(t *testing.T, noteID, owner string) *domain.QueueEntry {
	t.Helper()
	f.store.Put(noteID, notestore.Params{})
	e, err := f.svc.Enqueue(context.Background(), domain.EnqueueRequest{
		Note: smartNote(noteID), OwnerID: owner, Text: "patient reports headache",
	})
	require.NoError(t, err)
	return e
}

func (f *fixture) finish(t *testing.T, id string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.Transition(ctx, id, domain.StatusInProgress)
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, id, domain.StatusDone)
	require.NoError(t, err)
}

func TestEnqueue_CreatesQueuedEntryAndDispatches(t *testing.T) {
	f := newFixture(t, 10)

	e := f.enqueue(t, "N1", "doctor-a")

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, domain.StatusQueued, e.Status)
	assert.Equal(t, 1, f.q.Depth())
	assert.Equal(t, 1, f.svc.DispatchDepth())
	assert.Equal(t, []domain.NoteKind{domain.NoteKindOnDemandSmartNote}, f.enqueued)

	job, ok := f.q.Dequeue(context.Background())
	require.True(t, ok)
	assert.Equal(t, e.ID, job.EntryID)
	assert.Equal(t, "patient reports headache", job.Text)
}

func TestEnqueue_Rejections(t *testing.T) {
	f := newFixture(t, 10)
	f.store.Put("N1", notestore.Params{})
	ctx := context.Background()

	tests := []struct {
		name string
		req  domain.EnqueueRequest
		want error
	}{
		{"missing note", domain.EnqueueRequest{Note: smartNote("nope"), OwnerID: "a", Text: "x"}, domain.ErrNotFound},
		{"empty note id", domain.EnqueueRequest{Note: smartNote(""), OwnerID: "a", Text: "x"}, domain.ErrNotFound},
		{"unknown kind", domain.EnqueueRequest{Note: domain.NoteRef{Kind: "memo", ID: "N1"}, OwnerID: "a", Text: "x"}, domain.ErrUnknownNoteKind},
		{"unregistered kind", domain.EnqueueRequest{Note: domain.NoteRef{Kind: domain.NoteKindAppointmentSummary, ID: "N1"}, OwnerID: "a", Text: "x"}, domain.ErrUnknownNoteKind},
		{"empty text", domain.EnqueueRequest{Note: smartNote("N1"), OwnerID: "a", Text: "  "}, domain.ErrEmptyNoteText},
		{"no owner", domain.EnqueueRequest{Note: smartNote("N1"), Text: "x"}, domain.ErrInvalidOwner},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Enqueue(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Zero(t, f.repo.Len(), "rejected requests must not create entries")
	assert.Zero(t, f.q.Depth())
}

func TestEnqueue_QueueFullRemovesEntry(t *testing.T) {
	f := newFixture(t, 1)
	f.enqueue(t, "N1", "doctor-a")

	f.store.Put("N2", notestore.Params{})
	_, err := f.svc.Enqueue(context.Background(), domain.EnqueueRequest{
		Note: smartNote("N2"), OwnerID: "doctor-a", Text: "x",
	})

	assert.ErrorIs(t, err, domain.ErrQueueFull)
	assert.Equal(t, 1, f.repo.Len())
	_, err = f.svc.LatestEntry(context.Background(), smartNote("N2"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListActiveForOwner_PositionsAcrossOwners(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	e1 := f.enqueue(t, "N1", "doctor-a")
	e2 := f.enqueue(t, "N2", "doctor-b")

	a, err := f.svc.ListActiveForOwner(ctx, "doctor-a")
	require.NoError(t, err)
	require.Len(t, a, 1)
	assert.Equal(t, e1.ID, a[0].EntryID)
	assert.Equal(t, 1, a[0].Position)
	assert.Equal(t, 2, a[0].Total)

	b, err := f.svc.ListActiveForOwner(ctx, "doctor-b")
	require.NoError(t, err)
	require.Len(t, b, 1)
	assert.Equal(t, e2.ID, b[0].EntryID)
	assert.Equal(t, 2, b[0].Position)
	assert.Equal(t, 2, b[0].Total)

	f.finish(t, e1.ID)

	a, err = f.svc.ListActiveForOwner(ctx, "doctor-a")
	require.NoError(t, err)
	assert.Empty(t, a)
	assert.NotNil(t, a)

	b, err = f.svc.ListActiveForOwner(ctx, "doctor-b")
	require.NoError(t, err)
	require.Len(t, b, 1)
	assert.Equal(t, 1, b[0].Position)
	assert.Equal(t, 1, b[0].Total)
}

func TestListActiveForOwner_InProgressStillCounts(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	e1 := f.enqueue(t, "N1", "doctor-a")
	f.enqueue(t, "N2", "doctor-b")
	_, err := f.svc.Transition(ctx, e1.ID, domain.StatusInProgress)
	require.NoError(t, err)

	b, err := f.svc.ListActiveForOwner(ctx, "doctor-b")
	require.NoError(t, err)
	require.Len(t, b, 1)
	assert.Equal(t, 2, b[0].Position)
}

func TestListActiveForOwner_RequiresOwner(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.svc.ListActiveForOwner(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidOwner)
}

func TestConcurrentEnqueue_PositionsArePermutation(t *testing.T) {
	const n = 50
	f := newFixture(t, n)
	ctx := context.Background()
	for i := 0; i < n; i++ {
		f.store.Put(fmt.Sprintf("N%d", i), notestore.Params{})
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Enqueue(ctx, domain.EnqueueRequest{
				Note: smartNote(fmt.Sprintf("N%d", i)), OwnerID: fmt.Sprintf("doctor-%d", i%5), Text: "x",
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	var positions []int
	for o := 0; o < 5; o++ {
		list, err := f.svc.ListActiveForOwner(ctx, fmt.Sprintf("doctor-%d", o))
		require.NoError(t, err)
		for _, p := range list {
			assert.Equal(t, n, p.Total)
			positions = append(positions, p.Position)
		}
	}
	sort.Ints(positions)
	require.Len(t, positions, n)
	for i, p := range positions {
		assert.Equal(t, i+1, p)
	}
}

func TestTransition_IllegalLeavesEntryUnchanged(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	e := f.enqueue(t, "N1", "doctor-a")

	_, err := f.svc.Transition(ctx, e.ID, domain.StatusDone)
	assert.ErrorIs(t, err, domain.ErrStateViolation)

	got, err := f.repo.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQueued, got.Status)
	assert.Equal(t, e.UpdatedAt, got.UpdatedAt)
}

func TestTransition_TerminalIsFinal(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	e := f.enqueue(t, "N1", "doctor-a")
	f.finish(t, e.ID)

	for _, to := range []domain.Status{domain.StatusQueued, domain.StatusInProgress, domain.StatusFailed} {
		_, err := f.svc.Transition(ctx, e.ID, to)
		assert.ErrorIs(t, err, domain.ErrStateViolation, "done -> %s", to)
	}
}

func TestTransition_MissingEntry(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.svc.Transition(context.Background(), "ghost", domain.StatusInProgress)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegenerate_CreatesNewEntryAndKeepsHistory(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	first := f.enqueue(t, "N1", "doctor-a")
	f.finish(t, first.ID)

	second, err := f.svc.Regenerate(ctx, domain.EnqueueRequest{
		Note: smartNote("N1"), OwnerID: "doctor-a", Text: "updated transcript",
	})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, domain.StatusQueued, second.Status)
	assert.Greater(t, second.Seq, first.Seq)

	prior, err := f.repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, prior.Status)

	status, err := f.svc.GetLatestStatus(ctx, smartNote("N1"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQueued, status)
}

func TestGetLatestStatus_NoEntries(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.svc.GetLatestStatus(context.Background(), smartNote("N1"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteQueueEntry(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	queued := f.enqueue(t, "N1", "doctor-a")
	running := f.enqueue(t, "N2", "doctor-a")
	_, err := f.svc.Transition(ctx, running.ID, domain.StatusInProgress)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteQueueEntry(ctx, queued.ID))
	_, err = f.repo.GetByID(ctx, queued.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, f.svc.DeleteQueueEntry(ctx, running.ID), domain.ErrEntryInProgress)
	assert.ErrorIs(t, f.svc.DeleteQueueEntry(ctx, "ghost"), domain.ErrNotFound)

	// The refused entry keeps its position.
	list, err := f.svc.ListActiveForOwner(ctx, "doctor-a")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, running.ID, list[0].EntryID)
	assert.Equal(t, 1, list[0].Position)
}

func TestDeleteAllForNote_RemovesEveryStatus(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	done := f.enqueue(t, "N1", "doctor-a")
	f.finish(t, done.ID)
	running := f.enqueue(t, "N1", "doctor-a")
	_, err := f.svc.Transition(ctx, running.ID, domain.StatusInProgress)
	require.NoError(t, err)
	f.enqueue(t, "N1", "doctor-a")
	other := f.enqueue(t, "N2", "doctor-a")

	n, err := f.svc.DeleteAllForNote(ctx, smartNote("N1"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = f.svc.LatestEntry(ctx, smartNote("N1"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	snap, err := f.svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Total())
	pos, ok := snap.Position(other.ID)
	assert.True(t, ok)
	assert.Equal(t, 1, pos)
}
