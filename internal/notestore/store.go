// Package notestore is the queue's narrow view of the note tables owned by
// the note CRUD layer: existence checks, processing parameters, and the
// result write-back.
package notestore

import (
	"context"
	"fmt"
	"sync"

	"github.com/medscribe/notequeue/internal/domain"
)

// Params are the note-type specific inputs for one generation call.
type Params struct {
	AIContext     string
	Environment   string
	Language      string
	CurrentResult string
}

// Store is implemented once per note kind.
type Store interface {
	Exists(ctx context.Context, noteID string) (bool, error)
	GetProcessingParameters(ctx context.Context, noteID string) (Params, error)
	WriteResult(ctx context.Context, noteID, result string) error
	AppendResultHistory(ctx context.Context, noteID, previousResult, editedBy string) error
}

// Registry resolves a NoteKind to its Store.
type Registry struct {
	mu     sync.RWMutex
	stores map[domain.NoteKind]Store
}

func NewRegistry() *Registry {
	return &Registry{stores: make(map[domain.NoteKind]Store)}
}

func (r *Registry) Register(kind domain.NoteKind, s Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[kind] = s
}

// Lookup returns ErrUnknownNoteKind when no store is registered for kind.
func (r *Registry) Lookup(kind domain.NoteKind) (Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownNoteKind, kind)
	}
	return s, nil
}
