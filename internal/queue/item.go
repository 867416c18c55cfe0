package queue

import "github.com/medscribe/notequeue/internal/domain"

// Job is the hand-off from the coordinator to the dispatcher.
// The entry itself lives in the store; the note text travels only in memory
// so it is never persisted twice.
type Job struct {
	EntryID string
	Note    domain.NoteRef
	OwnerID string
	Text    string
}
