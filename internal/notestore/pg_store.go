package notestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medscribe/notequeue/internal/domain"
)

// tables maps each kind to its table. Table names are never taken from input.
var tables = map[domain.NoteKind]string{
	domain.NoteKindOnDemandSmartNote:  "on_demand_smart_notes",
	domain.NoteKindAppointmentSummary: "appointment_summaries",
}

// PgStore reads and writes one note table.
type PgStore struct {
	pool  *pgxpool.Pool
	kind  domain.NoteKind
	table string
}

func NewPgStore(pool *pgxpool.Pool, kind domain.NoteKind) (*PgStore, error) {
	table, ok := tables[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownNoteKind, kind)
	}
	return &PgStore{pool: pool, kind: kind, table: table}, nil
}

// RegisterPgStores registers a PgStore for every known note kind.
func RegisterPgStores(reg *Registry, pool *pgxpool.Pool) error {
	for kind := range tables {
		s, err := NewPgStore(pool, kind)
		if err != nil {
			return err
		}
		reg.Register(kind, s)
	}
	return nil
}

func (s *PgStore) Exists(ctx context.Context, noteID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+s.table+` WHERE id = $1)`, noteID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check %s exists: %w", s.kind, err)
	}
	return exists, nil
}

func (s *PgStore) GetProcessingParameters(ctx context.Context, noteID string) (Params, error) {
	var p Params
	err := s.pool.QueryRow(ctx, `
		SELECT ai_context, environment, language, result
		FROM `+s.table+` WHERE id = $1`, noteID,
	).Scan(&p.AIContext, &p.Environment, &p.Language, &p.CurrentResult)
	if errors.Is(err, pgx.ErrNoRows) {
		return Params{}, domain.ErrNotFound
	}
	if err != nil {
		return Params{}, fmt.Errorf("get %s parameters: %w", s.kind, err)
	}
	return p, nil
}

func (s *PgStore) WriteResult(ctx context.Context, noteID, result string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+s.table+` SET result = $1, updated_at = NOW() WHERE id = $2`, result, noteID)
	if err != nil {
		return fmt.Errorf("write %s result: %w", s.kind, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *PgStore) AppendResultHistory(ctx context.Context, noteID, previousResult, editedBy string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO note_result_history (note_kind, note_id, previous_result, edited_by)
		VALUES ($1,$2,$3,$4)`, s.kind, noteID, previousResult, editedBy)
	if err != nil {
		return fmt.Errorf("append %s result history: %w", s.kind, err)
	}
	return nil
}

// compile-time check that PgStore implements Store
var _ Store = (*PgStore)(nil)
