package notestore

import (
	"context"
	"sync"

	"github.com/medscribe/notequeue/internal/domain"
)

// HistoryRecord is one AppendResultHistory call captured by MockStore.
type HistoryRecord struct {
	NoteID         string
	PreviousResult string
	EditedBy       string
}

// MockStore is an in-memory Store for tests.
type MockStore struct {
	mu      sync.Mutex
	notes   map[string]Params
	writes  []string
	history []HistoryRecord

	// Optional error overrides.
	ParamsErr  error
	WriteErr   error
	HistoryErr error
}

func NewMockStore() *MockStore {
	return &MockStore{notes: make(map[string]Params)}
}

// Put seeds a note.
func (m *MockStore) Put(noteID string, p Params) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes[noteID] = p
}

func (m *MockStore) Exists(_ context.Context, noteID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.notes[noteID]
	return ok, nil
}

func (m *MockStore) GetProcessingParameters(_ context.Context, noteID string) (Params, error) {
	if m.ParamsErr != nil {
		return Params{}, m.ParamsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.notes[noteID]
	if !ok {
		return Params{}, domain.ErrNotFound
	}
	return p, nil
}

func (m *MockStore) WriteResult(_ context.Context, noteID, result string) error {
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.notes[noteID]
	if !ok {
		return domain.ErrNotFound
	}
	p.CurrentResult = result
	m.notes[noteID] = p
	m.writes = append(m.writes, noteID)
	return nil
}

func (m *MockStore) AppendResultHistory(_ context.Context, noteID, previousResult, editedBy string) error {
	if m.HistoryErr != nil {
		return m.HistoryErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, HistoryRecord{NoteID: noteID, PreviousResult: previousResult, EditedBy: editedBy})
	return nil
}

// Writes returns the note IDs passed to successful WriteResult calls.
func (m *MockStore) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.writes...)
}

func (m *MockStore) History() []HistoryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]HistoryRecord(nil), m.history...)
}

// Result returns the note's current stored result.
func (m *MockStore) Result(noteID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notes[noteID].CurrentResult
}

var _ Store = (*MockStore)(nil)
