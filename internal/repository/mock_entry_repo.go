package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/medscribe/notequeue/internal/domain"
)

// MockEntryRepository is a hand-written, in-memory implementation of
// EntryRepository used in unit tests. No mock-generation library needed.
//
// It keeps the same guarantees as the Postgres store: strictly increasing
// Seq, conditional status updates, and snapshot reads under one lock.
type MockEntryRepository struct {
	mu      sync.RWMutex
	entries map[string]*domain.QueueEntry
	seq     int64

	// Now stamps created_at / updated_at. Tests may replace it with a fake clock.
	Now func() time.Time

	// Optional error overrides, set in tests to simulate failure paths.
	CreateErr     error
	ListActiveErr error
}

func NewMockEntryRepository() *MockEntryRepository {
	return &MockEntryRepository{
		entries: make(map[string]*domain.QueueEntry),
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *MockEntryRepository) Create(_ context.Context, e *domain.QueueEntry) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[e.ID]; exists {
		return fmt.Errorf("insert queue entry: duplicate id %s", e.ID)
	}
	m.seq++
	now := m.Now()
	e.Seq = m.seq
	e.CreatedAt = now
	e.UpdatedAt = now
	clone := *e
	m.entries[e.ID] = &clone
	return nil
}

func (m *MockEntryRepository) GetByID(_ context.Context, id string) (*domain.QueueEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *e
	return &clone, nil
}

func (m *MockEntryRepository) FindLatestFor(_ context.Context, note domain.NoteRef) (*domain.QueueEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *domain.QueueEntry
	for _, e := range m.entries {
		if e.Note != note {
			continue
		}
		if latest == nil || latest.Before(e) {
			latest = e
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	clone := *latest
	return &clone, nil
}

func (m *MockEntryRepository) ListActive(_ context.Context) ([]*domain.QueueEntry, error) {
	if m.ListActiveErr != nil {
		return nil, m.ListActiveErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.QueueEntry
	for _, e := range m.entries {
		if e.Status.IsActive() {
			clone := *e
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Before(result[j]) })
	return result, nil
}

func (m *MockEntryRepository) TransitionStatus(_ context.Context, id string, from, to domain.Status) (*domain.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if e.Status != from {
		return nil, fmt.Errorf("%w: entry %s is %s, expected %s", domain.ErrStateViolation, id, e.Status, from)
	}
	if err := e.Transition(to, m.Now()); err != nil {
		return nil, err
	}
	clone := *e
	return &clone, nil
}

func (m *MockEntryRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return domain.ErrNotFound
	}
	if e.Status == domain.StatusInProgress {
		return domain.ErrEntryInProgress
	}
	delete(m.entries, id)
	return nil
}

func (m *MockEntryRepository) DeleteAllFor(_ context.Context, note domain.NoteRef) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, e := range m.entries {
		if e.Note == note {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

// SetStatus forces an entry into a status without checking the state machine.
// Test helper only.
func (m *MockEntryRepository) SetStatus(id string, status domain.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok {
		e.Status = status
		e.UpdatedAt = m.Now()
	}
}

// Len returns the number of stored entries, terminal ones included.
func (m *MockEntryRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

var _ EntryRepository = (*MockEntryRepository)(nil)
