package domain

import (
	"fmt"
	"strings"
	"time"
)

// NoteKind discriminates which note table a queue entry points at.
// Several note types share one queue.
type NoteKind string

const (
	NoteKindOnDemandSmartNote  NoteKind = "OnDemandSmartNote"
	NoteKindAppointmentSummary NoteKind = "AppointmentSummary"
)

func (k NoteKind) IsValid() bool {
	switch k {
	case NoteKindOnDemandSmartNote, NoteKindAppointmentSummary:
		return true
	}
	return false
}

// NoteRef is the tagged reference {kind, id} to the note being processed.
type NoteRef struct {
	Kind NoteKind `json:"kind"`
	ID   string   `json:"id"`
}

func (r NoteRef) String() string {
	return fmt.Sprintf("%s/%s", r.Kind, r.ID)
}

// QueueEntry is one submitted unit of note-processing work.
//
// Seq is assigned by the store at insertion and is strictly increasing, so
// (Seq, ID) is the canonical queue order. CreatedAt is informational only.
type QueueEntry struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	Note      NoteRef   `json:"note"`
	OwnerID   string    `json:"owner_id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transition moves the entry to the given status if the state machine allows
// it. On an illegal transition the entry is left untouched.
func (e *QueueEntry) Transition(to Status, at time.Time) error {
	if !CanTransition(e.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrStateViolation, e.Status, to)
	}
	e.Status = to
	e.UpdatedAt = at
	return nil
}

// Before reports whether e precedes other in canonical queue order.
func (e *QueueEntry) Before(other *QueueEntry) bool {
	if e.Seq != other.Seq {
		return e.Seq < other.Seq
	}
	return e.ID < other.ID
}

// QueuePosition is one row of an owner's live queue view.
type QueuePosition struct {
	EntryID  string  `json:"entry_id"`
	Note     NoteRef `json:"note"`
	Status   Status  `json:"status"`
	Position int     `json:"position"`
	Total    int     `json:"total"`
}

// EnqueueRequest is the inbound payload for enqueue and regenerate.
type EnqueueRequest struct {
	Note    NoteRef `json:"-"`
	OwnerID string  `json:"-"`
	Text    string  `json:"text"`
}

func (r *EnqueueRequest) Validate() error {
	if !r.Note.Kind.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownNoteKind, r.Note.Kind)
	}
	if r.Note.ID == "" {
		return fmt.Errorf("%w: empty note id", ErrNotFound)
	}
	if r.OwnerID == "" {
		return ErrInvalidOwner
	}
	if strings.TrimSpace(r.Text) == "" {
		return ErrEmptyNoteText
	}
	return nil
}
