package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medscribe/notequeue/internal/domain"
)

const entryColumns = `id, seq, note_kind, note_id, owner_id, status, created_at, updated_at`

type pgEntryRepository struct {
	pool *pgxpool.Pool
}

// NewPgEntryRepository returns an EntryRepository backed by PostgreSQL.
//
// Ordering comes from the identity column seq, not from created_at, so two
// inserts in the same microsecond still have a strict order.
func NewPgEntryRepository(pool *pgxpool.Pool) EntryRepository {
	return &pgEntryRepository{pool: pool}
}

func (r *pgEntryRepository) Create(ctx context.Context, e *domain.QueueEntry) error {
	// created_at and updated_at both default to clock_timestamp() so every
	// later transition is stamped by the same clock.
	err := r.pool.QueryRow(ctx, `
		INSERT INTO queue_entries (id, note_kind, note_id, owner_id, status)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING seq, created_at, updated_at`,
		e.ID, e.Note.Kind, e.Note.ID, e.OwnerID, e.Status,
	).Scan(&e.Seq, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert queue entry: %w", err)
	}
	return nil
}

func (r *pgEntryRepository) GetByID(ctx context.Context, id string) (*domain.QueueEntry, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM queue_entries WHERE id = $1`, id)

	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get queue entry: %w", err)
	}
	return e, nil
}

func (r *pgEntryRepository) FindLatestFor(ctx context.Context, note domain.NoteRef) (*domain.QueueEntry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE note_kind = $1 AND note_id = $2
		ORDER BY seq DESC
		LIMIT 1`, note.Kind, note.ID)

	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find latest queue entry: %w", err)
	}
	return e, nil
}

// ListActive is a single statement and therefore reads one MVCC snapshot:
// an entry that changes status mid-scan is seen either before or after the
// change, never twice or not at all.
func (r *pgEntryRepository) ListActive(ctx context.Context) ([]*domain.QueueEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE status IN ('queued', 'in_progress')
		ORDER BY seq ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list active queue entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (r *pgEntryRepository) TransitionStatus(ctx context.Context, id string, from, to domain.Status) (*domain.QueueEntry, error) {
	if !domain.CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrStateViolation, from, to)
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE queue_entries
		SET status = $3, updated_at = clock_timestamp()
		WHERE id = $1 AND status = $2
		RETURNING `+entryColumns, id, from, to)

	e, err := scanEntry(row)
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("transition queue entry: %w", err)
	}

	// Nothing matched: either the row is gone or someone else moved it first.
	current, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("%w: entry %s is %s, expected %s", domain.ErrStateViolation, id, current.Status, from)
}

func (r *pgEntryRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM queue_entries WHERE id = $1 AND status <> 'in_progress'`, id)
	if err != nil {
		return fmt.Errorf("delete queue entry: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return domain.ErrEntryInProgress
}

func (r *pgEntryRepository) DeleteAllFor(ctx context.Context, note domain.NoteRef) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM queue_entries WHERE note_kind = $1 AND note_id = $2`, note.Kind, note.ID)
	if err != nil {
		return 0, fmt.Errorf("delete queue entries for note: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ---- helpers ----

// scanEntry reads a single queue entry row from any pgx row type.
func scanEntry(row pgx.Row) (*domain.QueueEntry, error) {
	var e domain.QueueEntry
	err := row.Scan(
		&e.ID, &e.Seq, &e.Note.Kind, &e.Note.ID, &e.OwnerID,
		&e.Status, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanEntries(rows pgx.Rows) ([]*domain.QueueEntry, error) {
	var result []*domain.QueueEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
