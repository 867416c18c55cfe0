package queue

import (
	"sort"

	"github.com/medscribe/notequeue/internal/domain"
)

// Ranking is a position snapshot over one read of the active set.
type Ranking struct {
	positions map[string]int
	ordered   []*domain.QueueEntry
}

// Rank orders the active entries canonically and assigns 1-based positions.
//
// Non-active entries in the input are ignored, as are duplicate IDs after the
// first occurrence. All positions come from this single slice, so they always
// form a permutation of 1..Total.
func Rank(entries []*domain.QueueEntry) *Ranking {
	seen := make(map[string]struct{}, len(entries))
	active := make([]*domain.QueueEntry, 0, len(entries))
	for _, e := range entries {
		if e == nil || !e.Status.IsActive() {
			continue
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		active = append(active, e)
	}

	sort.SliceStable(active, func(i, j int) bool { return active[i].Before(active[j]) })

	positions := make(map[string]int, len(active))
	for i, e := range active {
		positions[e.ID] = i + 1
	}
	return &Ranking{positions: positions, ordered: active}
}

// Total is the size of the active set.
func (r *Ranking) Total() int {
	return len(r.ordered)
}

// Position returns the entry's 1-based rank, or false if it is not active.
func (r *Ranking) Position(entryID string) (int, bool) {
	p, ok := r.positions[entryID]
	return p, ok
}

// ForOwner returns the owner's active entries with positions, ascending.
func (r *Ranking) ForOwner(ownerID string) []domain.QueuePosition {
	total := r.Total()
	var out []domain.QueuePosition
	for i, e := range r.ordered {
		if e.OwnerID != ownerID {
			continue
		}
		out = append(out, domain.QueuePosition{
			EntryID:  e.ID,
			Note:     e.Note,
			Status:   e.Status,
			Position: i + 1,
			Total:    total,
		})
	}
	return out
}

// CountByStatus tallies the snapshot per status.
func (r *Ranking) CountByStatus() map[domain.Status]int {
	counts := make(map[domain.Status]int, 2)
	for _, s := range domain.ActiveStatuses() {
		counts[s] = 0
	}
	for _, e := range r.ordered {
		counts[e.Status]++
	}
	return counts
}

// Ordered returns the active entries in canonical order.
func (r *Ranking) Ordered() []*domain.QueueEntry {
	return r.ordered
}
