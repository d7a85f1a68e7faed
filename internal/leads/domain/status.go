package domain

import (
	"time"

	"listing_leads_backend/platform/apperr"
)

// Status is the lead lifecycle state.
type Status string

const (
	StatusNew        Status = "new"
	StatusContacted  Status = "contacted"
	StatusInProgress Status = "in-progress"
	StatusClosed     Status = "closed"
	StatusLost       Status = "lost"
)

var knownStatuses = map[Status]struct{}{
	StatusNew:        {},
	StatusContacted:  {},
	StatusInProgress: {},
	StatusClosed:     {},
	StatusLost:       {},
}

// terminalStatuses are states where no further follow-up should occur.
var terminalStatuses = map[Status]bool{
	StatusClosed: true,
	StatusLost:   true,
}

// ParseStatus validates a raw status value.
func ParseStatus(raw string) (Status, bool) {
	_, ok := knownStatuses[Status(raw)]
	return Status(raw), ok
}

// IsTerminal returns true for closed and lost.
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// TransitionTo moves the lead to next. Moving to closed stamps ClosedAt once;
// a lead that is already stamped keeps its original value.
func (l *Lead) TransitionTo(next Status, now time.Time) error {
	if _, ok := knownStatuses[next]; !ok {
		return apperr.Validation("invalid lead status: " + string(next))
	}
	l.Status = next
	if next == StatusClosed && l.ClosedAt == nil {
		closedAt := now
		l.ClosedAt = &closedAt
	}
	l.UpdatedAt = now
	return nil
}
