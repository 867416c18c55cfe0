package repository_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medscribe/notequeue/internal/db"
	"github.com/medscribe/notequeue/internal/domain"
	"github.com/medscribe/notequeue/internal/repository"
)

// Every behaviour below must hold for both the Postgres store and the mock,
// since service and worker tests rely on the mock standing in for Postgres.
func repositories(t *testing.T) map[string]func(t *testing.T) repository.EntryRepository {
	repos := map[string]func(t *testing.T) repository.EntryRepository{
		"mock": func(*testing.T) repository.EntryRepository { return repository.NewMockEntryRepository() },
	}

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		return repos
	}
	require.NoError(t, db.Migrate(dsn, "file://../../migrations"))
	repos["postgres"] = func(t *testing.T) repository.EntryRepository {
		pool, err := pgxpool.New(context.Background(), dsn)
		require.NoError(t, err)
		t.Cleanup(pool.Close)
		_, err = pool.Exec(context.Background(), `TRUNCATE queue_entries`)
		require.NoError(t, err)
		return repository.NewPgEntryRepository(pool)
	}
	return repos
}

func newEntry(noteID, owner string) *domain.QueueEntry {
	return &domain.QueueEntry{
		ID:      uuid.New().String(),
		Note:    domain.NoteRef{Kind: domain.NoteKindAppointmentSummary, ID: noteID},
		OwnerID: owner,
		Status:  domain.StatusQueued,
	}
}

func TestEntryRepository(t *testing.T) {
	for name, open := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("create assigns increasing seq", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()
				a, b := newEntry("N1", "o"), newEntry("N2", "o")
				require.NoError(t, repo.Create(ctx, a))
				require.NoError(t, repo.Create(ctx, b))

				assert.Greater(t, b.Seq, a.Seq)
				assert.False(t, a.CreatedAt.IsZero())
				assert.False(t, a.UpdatedAt.Before(a.CreatedAt))

				got, err := repo.GetByID(ctx, a.ID)
				require.NoError(t, err)
				assert.Equal(t, a.Note, got.Note)
				assert.Equal(t, domain.StatusQueued, got.Status)
			})

			t.Run("get missing", func(t *testing.T) {
				_, err := open(t).GetByID(context.Background(), uuid.New().String())
				assert.ErrorIs(t, err, domain.ErrNotFound)
			})

			t.Run("conditional transition", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()
				e := newEntry("N1", "o")
				require.NoError(t, repo.Create(ctx, e))

				updated, err := repo.TransitionStatus(ctx, e.ID, domain.StatusQueued, domain.StatusInProgress)
				require.NoError(t, err)
				assert.Equal(t, domain.StatusInProgress, updated.Status)
				assert.False(t, updated.UpdatedAt.Before(e.CreatedAt))

				_, err = repo.TransitionStatus(ctx, e.ID, domain.StatusQueued, domain.StatusInProgress)
				assert.ErrorIs(t, err, domain.ErrStateViolation)

				_, err = repo.TransitionStatus(ctx, uuid.New().String(), domain.StatusQueued, domain.StatusInProgress)
				assert.ErrorIs(t, err, domain.ErrNotFound)
			})

			t.Run("only one concurrent claim wins", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()
				e := newEntry("N1", "o")
				require.NoError(t, repo.Create(ctx, e))

				var wg sync.WaitGroup
				var mu sync.Mutex
				wins := 0
				for i := 0; i < 10; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						if _, err := repo.TransitionStatus(ctx, e.ID, domain.StatusQueued, domain.StatusInProgress); err == nil {
							mu.Lock()
							wins++
							mu.Unlock()
						}
					}()
				}
				wg.Wait()
				assert.Equal(t, 1, wins)
			})

			t.Run("list active is ordered and excludes terminal", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()
				var ids []string
				for i := 0; i < 4; i++ {
					e := newEntry(fmt.Sprintf("N%d", i), "o")
					require.NoError(t, repo.Create(ctx, e))
					ids = append(ids, e.ID)
				}
				_, err := repo.TransitionStatus(ctx, ids[1], domain.StatusQueued, domain.StatusInProgress)
				require.NoError(t, err)
				_, err = repo.TransitionStatus(ctx, ids[1], domain.StatusInProgress, domain.StatusFailed)
				require.NoError(t, err)
				_, err = repo.TransitionStatus(ctx, ids[2], domain.StatusQueued, domain.StatusInProgress)
				require.NoError(t, err)

				active, err := repo.ListActive(ctx)
				require.NoError(t, err)
				got := make([]string, len(active))
				for i, e := range active {
					got[i] = e.ID
				}
				assert.Equal(t, []string{ids[0], ids[2], ids[3]}, got)
			})

			t.Run("find latest follows seq", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()
				first, second := newEntry("N1", "o"), newEntry("N1", "o")
				require.NoError(t, repo.Create(ctx, first))
				require.NoError(t, repo.Create(ctx, second))

				latest, err := repo.FindLatestFor(ctx, first.Note)
				require.NoError(t, err)
				assert.Equal(t, second.ID, latest.ID)

				_, err = repo.FindLatestFor(ctx, domain.NoteRef{Kind: domain.NoteKindAppointmentSummary, ID: "none"})
				assert.ErrorIs(t, err, domain.ErrNotFound)
			})

			t.Run("delete refuses in progress", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()
				e := newEntry("N1", "o")
				require.NoError(t, repo.Create(ctx, e))
				_, err := repo.TransitionStatus(ctx, e.ID, domain.StatusQueued, domain.StatusInProgress)
				require.NoError(t, err)

				assert.ErrorIs(t, repo.Delete(ctx, e.ID), domain.ErrEntryInProgress)
				assert.ErrorIs(t, repo.Delete(ctx, uuid.New().String()), domain.ErrNotFound)

				n, err := repo.DeleteAllFor(ctx, e.Note)
				require.NoError(t, err)
				assert.Equal(t, int64(1), n)
				_, err = repo.GetByID(ctx, e.ID)
				assert.ErrorIs(t, err, domain.ErrNotFound)
			})
		})
	}
}
