package domain

// Status tracks the lifecycle of a queue entry.
//
//	queued -> in_progress -> done
//	                      -> failed
//
// done and failed are terminal. Regeneration creates a new entry instead of
// reviving a terminal one.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

var transitions = map[Status][]Status{
	StatusQueued:     {StatusInProgress},
	StatusInProgress: {StatusDone, StatusFailed},
}

func (s Status) IsValid() bool {
	switch s {
	case StatusQueued, StatusInProgress, StatusDone, StatusFailed:
		return true
	}
	return false
}

// IsActive reports whether entries in this status count toward queue positions.
func (s Status) IsActive() bool {
	return s == StatusQueued || s == StatusInProgress
}

func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// CanTransition reports whether to is a legal successor of from.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ActiveStatuses lists the statuses that make up the active set.
func ActiveStatuses() []Status {
	return []Status{StatusQueued, StatusInProgress}
}
