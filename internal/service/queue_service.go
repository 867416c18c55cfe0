package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medscribe/notequeue/internal/domain"
	"github.com/medscribe/notequeue/internal/notestore"
	"github.com/medscribe/notequeue/internal/notify"
	"github.com/medscribe/notequeue/internal/queue"
	"github.com/medscribe/notequeue/internal/repository"
)

// Hooks carries optional callbacks injected by main.
type Hooks struct {
	OnEnqueued func(kind domain.NoteKind)
}

// QueueService is the single entry point for queue work: it creates entries,
// hands them to the dispatcher, and answers position and status queries.
// HTTP handlers and workers depend on this service, not on each other.
type QueueService struct {
	repo     repository.EntryRepository
	notes    *notestore.Registry
	q        *queue.DispatchQueue
	notifier notify.Notifier
	logger   *zap.Logger
	hooks    Hooks
}

func NewQueueService(
	repo repository.EntryRepository,
	notes *notestore.Registry,
	q *queue.DispatchQueue,
	notifier notify.Notifier,
	logger *zap.Logger,
	hooks Hooks,
) *QueueService {
	if hooks.OnEnqueued == nil {
		hooks.OnEnqueued = func(domain.NoteKind) {}
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &QueueService{repo: repo, notes: notes, q: q, notifier: notifier, logger: logger, hooks: hooks}
}

// Enqueue persists a new queued entry and hands it to the dispatcher.
// It returns as soon as the hand-off is accepted; generation runs later.
func (s *QueueService) Enqueue(ctx context.Context, req domain.EnqueueRequest) (*domain.QueueEntry, error) {
	return s.submit(ctx, req, "enqueue")
}

// Regenerate always creates a new entry. Earlier entries for the note,
// terminal or not, are left untouched as an audit trail.
func (s *QueueService) Regenerate(ctx context.Context, req domain.EnqueueRequest) (*domain.QueueEntry, error) {
	return s.submit(ctx, req, "regenerate")
}

func (s *QueueService) submit(ctx context.Context, req domain.EnqueueRequest, op string) (*domain.QueueEntry, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	store, err := s.notes.Lookup(req.Note.Kind)
	if err != nil {
		return nil, err
	}
	exists, err := store.Exists(ctx, req.Note.ID)
	if err != nil {
		return nil, fmt.Errorf("check note: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: note %s", domain.ErrNotFound, req.Note)
	}

	e := &domain.QueueEntry{
		ID:      uuid.New().String(),
		Note:    req.Note,
		OwnerID: req.OwnerID,
		Status:  domain.StatusQueued,
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("persist queue entry: %w", err)
	}

	log := s.logger.With(
		zap.String("op", op),
		zap.String("entry_id", e.ID),
		zap.String("note", req.Note.String()),
	)

	if err := s.q.Enqueue(queue.Job{
		EntryID: e.ID,
		Note:    e.Note,
		OwnerID: e.OwnerID,
		Text:    req.Text,
	}); err != nil {
		// Never leave a queued row that no worker will pick up.
		if delErr := s.repo.Delete(ctx, e.ID); delErr != nil {
			log.Error("failed to remove undispatched entry", zap.Error(delErr))
		}
		log.Warn("dispatch queue full, entry rejected", zap.Error(err))
		return nil, err
	}

	s.hooks.OnEnqueued(e.Note.Kind)
	s.notifier.Signal(ctx, notify.Event{
		Kind:    notify.EventEntryQueued,
		EntryID: e.ID,
		Note:    e.Note,
		OwnerID: e.OwnerID,
		Status:  e.Status,
	})
	log.Info("queue entry created")
	return e, nil
}

// DeleteQueueEntry removes one entry. In-progress entries are refused
// because the dispatcher is still writing to them.
func (s *QueueService) DeleteQueueEntry(ctx context.Context, entryID string) error {
	e, err := s.repo.GetByID(ctx, entryID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, entryID); err != nil {
		return err
	}

	s.notifier.Signal(ctx, notify.Event{
		Kind:    notify.EventEntriesRemoved,
		EntryID: e.ID,
		Note:    e.Note,
		OwnerID: e.OwnerID,
	})
	s.logger.Info("queue entry deleted", zap.String("entry_id", entryID))
	return nil
}

// DeleteAllForNote is the cascade run when a note is deleted. It removes
// every entry for the note regardless of status; a dispatcher still working
// on one of them will find its row gone and stop.
func (s *QueueService) DeleteAllForNote(ctx context.Context, note domain.NoteRef) (int64, error) {
	n, err := s.repo.DeleteAllFor(ctx, note)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.notifier.Signal(ctx, notify.Event{Kind: notify.EventEntriesRemoved, Note: note})
	}
	s.logger.Info("queue entries deleted for note", zap.String("note", note.String()), zap.Int64("count", n))
	return n, nil
}

// Transition applies a status change through the state machine and a
// conditional store update. Illegal transitions leave the entry unchanged.
func (s *QueueService) Transition(ctx context.Context, entryID string, to domain.Status) (*domain.QueueEntry, error) {
	e, err := s.repo.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	from := e.Status
	if !domain.CanTransition(from, to) {
		err := fmt.Errorf("%w: %s -> %s", domain.ErrStateViolation, from, to)
		s.logger.Warn("rejected status transition", zap.String("entry_id", entryID), zap.Error(err))
		return nil, err
	}

	updated, err := s.repo.TransitionStatus(ctx, entryID, from, to)
	if errors.Is(err, domain.ErrStateViolation) {
		s.logger.Warn("lost status transition race", zap.String("entry_id", entryID), zap.Error(err))
	}
	return updated, err
}

// ListActiveForOwner returns the owner's active entries with their live
// position among all active entries, ascending by position.
//
// Positions and the total come from one ListActive snapshot, so they are
// consistent with each other but may be stale by the time the caller reads
// them. They are recomputed on every call and never stored.
func (s *QueueService) ListActiveForOwner(ctx context.Context, ownerID string) ([]domain.QueuePosition, error) {
	if ownerID == "" {
		return nil, domain.ErrInvalidOwner
	}
	active, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active entries: %w", err)
	}

	positions := queue.Rank(active).ForOwner(ownerID)
	if positions == nil {
		positions = []domain.QueuePosition{}
	}
	return positions, nil
}

// GetLatestStatus returns the status of the most recent entry for the note.
func (s *QueueService) GetLatestStatus(ctx context.Context, note domain.NoteRef) (domain.Status, error) {
	e, err := s.LatestEntry(ctx, note)
	if err != nil {
		return "", err
	}
	return e.Status, nil
}

// LatestEntry returns the authoritative (most recent) entry for the note.
func (s *QueueService) LatestEntry(ctx context.Context, note domain.NoteRef) (*domain.QueueEntry, error) {
	return s.repo.FindLatestFor(ctx, note)
}

// Snapshot ranks the whole active set. Used by the monitor and the JSON
// metrics endpoint.
func (s *QueueService) Snapshot(ctx context.Context) (*queue.Ranking, error) {
	active, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active entries: %w", err)
	}
	return queue.Rank(active), nil
}

// DispatchDepth reports how many accepted jobs are waiting for a worker.
func (s *QueueService) DispatchDepth() int {
	return s.q.Depth()
}
