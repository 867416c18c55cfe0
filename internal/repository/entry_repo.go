package repository

import (
	"context"

	"github.com/medscribe/notequeue/internal/domain"
)

// EntryRepository defines all persistence operations for queue entries.
// The pgx implementation is in pg_entry_repo.go.
// Tests use a hand-written mock (mock_entry_repo.go).
type EntryRepository interface {
	// Create inserts a new queued entry. The store assigns ID, Seq and
	// timestamps and writes them back onto e.
	Create(ctx context.Context, e *domain.QueueEntry) error
	GetByID(ctx context.Context, id string) (*domain.QueueEntry, error)
	FindLatestFor(ctx context.Context, note domain.NoteRef) (*domain.QueueEntry, error)

	// ListActive returns every queued or in-progress entry in canonical order,
	// read from a single snapshot.
	ListActive(ctx context.Context) ([]*domain.QueueEntry, error)

	// TransitionStatus sets status=to only if the row is currently in from.
	// Returns ErrStateViolation when the row exists in another status and
	// ErrNotFound when it does not exist.
	TransitionStatus(ctx context.Context, id string, from, to domain.Status) (*domain.QueueEntry, error)

	// Delete removes a single entry unless it is in progress.
	Delete(ctx context.Context, id string) error
	DeleteAllFor(ctx context.Context, note domain.NoteRef) (int64, error)
}
